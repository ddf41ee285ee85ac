package services

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"gorm.io/datatypes"

	"github.com/soaringjerry/stsportal/internal/models"
)

const OtherPleaseSpecify = "Other (please specify)"

var (
	GenderOptions = []string{"M", "F", "prefer_not_answer", "not_listed"}
	JobRoles      = []string{
		"Case Manager",
		"Front-Line Clinician",
		"Clinical Supervisor",
		"Leadership",
		"Regional Leadership",
		"Peer Support Specialist",
		"Community Support Associate",
		"Medical Staff",
		OtherPleaseSpecify,
	}
	AreasOfResponsibility = []string{
		"Developmental/Intellectual Disabilities",
		"Adult Mental Health Services",
		"Children's Services",
		"Crisis Response Services",
		"Substance Use Services",
		"Administrative/Financial Services",
		"Multi-Team",
		OtherPleaseSpecify,
	}
)

const (
	minAge, maxAge           = 18, 65
	maxYearsInService        = 30
	minExposure, maxExposure = 0, 100
)

// DemographicsInput is the participant's answer set. Pointers distinguish
// "not answered" from zero.
type DemographicsInput struct {
	Gender                string   `json:"gender"`
	GenderOther           string   `json:"gender_other,omitempty"`
	Age                   *int     `json:"age,omitempty"`
	AgeOver65             bool     `json:"age_over_65,omitempty"`
	YearsInService        *int     `json:"years_in_service,omitempty"`
	YearsOver30           bool     `json:"years_over_30,omitempty"`
	JobRole               string   `json:"job_role"`
	JobRoleOther          string   `json:"job_role_other,omitempty"`
	AreasOfResponsibility []string `json:"areas_of_responsibility"`
	AreasOther            string   `json:"areas_of_responsibility_other,omitempty"`
	ExposureLevel         *int     `json:"exposure_level,omitempty"`
}

// BuildDemographics validates the answers and returns an unbound record.
// The "over" flags store the cap value alongside the flag.
func BuildDemographics(in DemographicsInput) (*models.DemographicsRecord, error) {
	var missing []string
	req := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}
	gender := strings.TrimSpace(in.Gender)
	req(gender != "", "gender")
	req(gender != "not_listed" || strings.TrimSpace(in.GenderOther) != "", "gender_other")
	req(in.Age != nil || in.AgeOver65, "age")
	req(in.YearsInService != nil || in.YearsOver30, "years_in_service")
	req(strings.TrimSpace(in.JobRole) != "", "job_role")
	req(in.JobRole != OtherPleaseSpecify || strings.TrimSpace(in.JobRoleOther) != "", "job_role_other")
	req(len(in.AreasOfResponsibility) > 0, "areas_of_responsibility")
	req(!slices.Contains(in.AreasOfResponsibility, OtherPleaseSpecify) || strings.TrimSpace(in.AreasOther) != "",
		"areas_of_responsibility_other")
	req(in.ExposureLevel != nil, "exposure_level")
	if len(missing) > 0 {
		return nil, NewIncompleteResponseError("Demographics", missing)
	}

	if !slices.Contains(GenderOptions, gender) {
		return nil, NewInvalidError("unknown gender option")
	}
	if !slices.Contains(JobRoles, in.JobRole) {
		return nil, NewInvalidError("unknown job role")
	}
	seen := map[string]bool{}
	for _, a := range in.AreasOfResponsibility {
		if !slices.Contains(AreasOfResponsibility, a) {
			return nil, NewInvalidError(fmt.Sprintf("unknown area of responsibility %q", a))
		}
		if seen[a] {
			return nil, NewInvalidError(fmt.Sprintf("duplicate area of responsibility %q", a))
		}
		seen[a] = true
	}
	age := maxAge
	if !in.AgeOver65 {
		age = *in.Age
		if age < minAge || age > maxAge {
			return nil, NewInvalidError(fmt.Sprintf("age must be between %d and %d", minAge, maxAge))
		}
	}
	years := maxYearsInService
	if !in.YearsOver30 {
		years = *in.YearsInService
		if years < 0 || years > maxYearsInService {
			return nil, NewInvalidError(fmt.Sprintf("years in service must be between 0 and %d", maxYearsInService))
		}
	}
	if *in.ExposureLevel < minExposure || *in.ExposureLevel > maxExposure {
		return nil, NewInvalidError("exposure level must be between 0 and 100")
	}
	areas, err := json.Marshal(in.AreasOfResponsibility)
	if err != nil {
		return nil, err
	}
	rec := &models.DemographicsRecord{
		Gender:                gender,
		Age:                   age,
		AgeOver65:             in.AgeOver65,
		YearsInService:        years,
		YearsOver30:           in.YearsOver30,
		JobRole:               in.JobRole,
		AreasOfResponsibility: datatypes.JSON(areas),
		ExposureLevel:         *in.ExposureLevel,
	}
	if gender == "not_listed" {
		rec.GenderOther = strings.TrimSpace(in.GenderOther)
	}
	if in.JobRole == OtherPleaseSpecify {
		rec.JobRoleOther = strings.TrimSpace(in.JobRoleOther)
	}
	if seen[OtherPleaseSpecify] {
		rec.AreasOther = strings.TrimSpace(in.AreasOther)
	}
	return rec, nil
}

// ParseAreas decodes the stored areas column. Stored data predates input
// validation, so malformed values are reported rather than trusted. Some
// legacy rows hold the array encoded a second time as a JSON string.
func ParseAreas(raw datatypes.JSON) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var areas []string
	err := json.Unmarshal(raw, &areas)
	if err == nil {
		return areas, nil
	}
	var inner string
	if json.Unmarshal(raw, &inner) != nil {
		return nil, err
	}
	if ierr := json.Unmarshal([]byte(inner), &areas); ierr != nil {
		return nil, ierr
	}
	return areas, nil
}
