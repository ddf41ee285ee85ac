package models

import (
	"time"

	"gorm.io/datatypes"
)

// CollaborativeStatus is the lifecycle label an administrator puts on a collaborative.
type CollaborativeStatus string

const (
	CollaborativeActive    CollaborativeStatus = "active"
	CollaborativeUpcoming  CollaborativeStatus = "upcoming"
	CollaborativeCompleted CollaborativeStatus = "completed"
)

func (s CollaborativeStatus) Valid() bool {
	switch s {
	case CollaborativeActive, CollaborativeUpcoming, CollaborativeCompleted:
		return true
	}
	return false
}

// Collaborative is a multi-agency learning program that groups teams and
// defines the four assessment windows.
type Collaborative struct {
	ID                string              `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name              string              `gorm:"size:255;not null" json:"name"`
	Description       string              `gorm:"type:text" json:"description,omitempty"`
	StartDate         time.Time           `json:"start_date"`
	EndDate           time.Time           `json:"end_date"`
	BaselineStart     *time.Time          `json:"baseline_start,omitempty"`
	BaselineEnd       *time.Time          `json:"baseline_end,omitempty"`
	EndlineStart      *time.Time          `json:"endline_start,omitempty"`
	EndlineEnd        *time.Time          `json:"endline_end,omitempty"`
	Followup6MoStart  *time.Time          `gorm:"column:followup_6mo_start" json:"followup_6mo_start,omitempty"`
	Followup6MoEnd    *time.Time          `gorm:"column:followup_6mo_end" json:"followup_6mo_end,omitempty"`
	Followup12MoStart *time.Time          `gorm:"column:followup_12mo_start" json:"followup_12mo_start,omitempty"`
	Followup12MoEnd   *time.Time          `gorm:"column:followup_12mo_end" json:"followup_12mo_end,omitempty"`
	Status            CollaborativeStatus `gorm:"size:16;index;not null;default:active" json:"status"`
	CreatedAt         time.Time           `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Window returns the optional start/end pair configured for a timepoint.
func (c *Collaborative) Window(tp Timepoint) (start, end *time.Time) {
	switch tp {
	case TimepointBaseline:
		return c.BaselineStart, c.BaselineEnd
	case TimepointEndline:
		return c.EndlineStart, c.EndlineEnd
	case TimepointFollowup6Mo:
		return c.Followup6MoStart, c.Followup6MoEnd
	case TimepointFollowup12Mo:
		return c.Followup12MoStart, c.Followup12MoEnd
	}
	return nil, nil
}

// SetWindow replaces the start/end pair for a timepoint.
func (c *Collaborative) SetWindow(tp Timepoint, start, end *time.Time) {
	switch tp {
	case TimepointBaseline:
		c.BaselineStart, c.BaselineEnd = start, end
	case TimepointEndline:
		c.EndlineStart, c.EndlineEnd = start, end
	case TimepointFollowup6Mo:
		c.Followup6MoStart, c.Followup6MoEnd = start, end
	case TimepointFollowup12Mo:
		c.Followup12MoStart, c.Followup12MoEnd = start, end
	}
}

// Team is one agency team enrolled in a collaborative.
type Team struct {
	ID                  string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CollaborativeID     string       `gorm:"type:varchar(36);index;not null" json:"collaborative_id"`
	AgencyName          string       `gorm:"size:255;not null" json:"agency_name"`
	TeamName            string       `gorm:"size:255" json:"team_name,omitempty"`
	PrimaryContactName  string       `gorm:"size:255" json:"primary_contact_name,omitempty"`
	PrimaryContactEmail string       `gorm:"size:255" json:"primary_contact_email,omitempty"`
	EstimatedStaffCount *int         `json:"estimated_staff_count,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
	Codes               []AccessCode `gorm:"foreignKey:TeamID" json:"codes,omitempty"`
}

// DisplayName is the team name when present, otherwise the agency name.
func (t *Team) DisplayName() string {
	if t.TeamName != "" {
		return t.TeamName
	}
	return t.AgencyName
}

// AccessCode grants entry to one team's assessment at one timepoint.
type AccessCode struct {
	ID        string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TeamID    string     `gorm:"type:varchar(36);index;not null" json:"team_id"`
	Code      string     `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Timepoint Timepoint  `gorm:"size:16;not null" json:"timepoint"`
	Active    bool       `gorm:"not null" json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (AccessCode) TableName() string { return "team_codes" }

// AssessmentSession is one anonymous participant's run through the four
// instruments. It never carries identifying data.
type AssessmentSession struct {
	ID                   string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccessCodeID         string     `gorm:"column:team_code_id;type:varchar(36);index;not null" json:"team_code_id"`
	Timepoint            Timepoint  `gorm:"size:16;not null" json:"timepoint"`
	DemographicsComplete bool       `gorm:"not null;default:false" json:"demographics_complete"`
	StssComplete         bool       `gorm:"not null;default:false" json:"stss_complete"`
	ProqolComplete       bool       `gorm:"not null;default:false" json:"proqol_complete"`
	StsioaComplete       bool       `gorm:"column:stsioa_complete;not null;default:false" json:"stsioa_complete"`
	IsComplete           bool       `gorm:"not null;default:false" json:"is_complete"`
	StartedAt            time.Time  `gorm:"index" json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	AbandonedAt          *time.Time `json:"abandoned_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (AssessmentSession) TableName() string { return "assessment_responses" }

// ItemResponses maps catalog item ids to raw answers.
type ItemResponses map[string]int

// StepRecord is an instrument submission that completes one session step.
type StepRecord interface {
	StepInstrument() Instrument
	BindSession(sessionID string, at time.Time)
}

type DemographicsRecord struct {
	ID                    string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SessionID             string         `gorm:"column:assessment_response_id;type:varchar(36);uniqueIndex;not null" json:"assessment_response_id"`
	Gender                string         `gorm:"size:32;not null" json:"gender"`
	GenderOther           string         `gorm:"size:255" json:"gender_other,omitempty"`
	Age                   int            `json:"age"`
	AgeOver65             bool           `gorm:"column:age_over_65" json:"age_over_65"`
	YearsInService        int            `json:"years_in_service"`
	YearsOver30           bool           `gorm:"column:years_over_30" json:"years_over_30"`
	JobRole               string         `gorm:"size:64;not null" json:"job_role"`
	JobRoleOther          string         `gorm:"size:255" json:"job_role_other,omitempty"`
	AreasOfResponsibility datatypes.JSON `json:"areas_of_responsibility"`
	AreasOther            string         `gorm:"column:areas_of_responsibility_other;size:255" json:"areas_of_responsibility_other,omitempty"`
	ExposureLevel         int            `json:"exposure_level"`
	CreatedAt             time.Time      `json:"created_at"`
}

func (DemographicsRecord) TableName() string { return "demographics" }

func (*DemographicsRecord) StepInstrument() Instrument { return InstrumentDemographics }

func (r *DemographicsRecord) BindSession(sessionID string, at time.Time) {
	r.SessionID, r.CreatedAt = sessionID, at
}

type StssRecord struct {
	ID             string                            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SessionID      string                            `gorm:"column:assessment_response_id;type:varchar(36);uniqueIndex;not null" json:"assessment_response_id"`
	Responses      datatypes.JSONType[ItemResponses] `json:"responses"`
	IntrusionScore int                               `json:"intrusion_score"`
	AvoidanceScore int                               `json:"avoidance_score"`
	ArousalScore   int                               `json:"arousal_score"`
	TotalScore     int                               `json:"total_score"`
	CreatedAt      time.Time                         `json:"created_at"`
}

func (StssRecord) TableName() string { return "stss_responses" }

func (*StssRecord) StepInstrument() Instrument { return InstrumentStss }

func (r *StssRecord) BindSession(sessionID string, at time.Time) {
	r.SessionID, r.CreatedAt = sessionID, at
}

type ProqolRecord struct {
	ID                          string                            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SessionID                   string                            `gorm:"column:assessment_response_id;type:varchar(36);uniqueIndex;not null" json:"assessment_response_id"`
	Responses                   datatypes.JSONType[ItemResponses] `json:"responses"`
	CompassionSatisfactionScore int                               `json:"compassion_satisfaction_score"`
	BurnoutScore                int                               `json:"burnout_score"`
	SecondaryTraumaScore        int                               `json:"secondary_trauma_score"`
	CreatedAt                   time.Time                         `json:"created_at"`
}

func (ProqolRecord) TableName() string { return "proqol_responses" }

func (*ProqolRecord) StepInstrument() Instrument { return InstrumentProqol }

func (r *ProqolRecord) BindSession(sessionID string, at time.Time) {
	r.SessionID, r.CreatedAt = sessionID, at
}

type StsioaRecord struct {
	ID                 string                            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SessionID          string                            `gorm:"column:assessment_response_id;type:varchar(36);uniqueIndex;not null" json:"assessment_response_id"`
	Responses          datatypes.JSONType[ItemResponses] `json:"responses"`
	Domain1Score       int                               `gorm:"column:domain_1_score" json:"domain_1_score"`
	Domain2Score       int                               `gorm:"column:domain_2_score" json:"domain_2_score"`
	Domain3Score       int                               `gorm:"column:domain_3_score" json:"domain_3_score"`
	Domain4Score       int                               `gorm:"column:domain_4_score" json:"domain_4_score"`
	Domain5Score       int                               `gorm:"column:domain_5_score" json:"domain_5_score"`
	Domain6Score       int                               `gorm:"column:domain_6_score" json:"domain_6_score"`
	TotalScore         int                               `json:"total_score"`
	NotApplicableCount int                               `json:"not_applicable_count"`
	CreatedAt          time.Time                         `json:"created_at"`
}

func (StsioaRecord) TableName() string { return "stsioa_responses" }

func (*StsioaRecord) StepInstrument() Instrument { return InstrumentStsioa }

func (r *StsioaRecord) BindSession(sessionID string, at time.Time) {
	r.SessionID, r.CreatedAt = sessionID, at
}

// DomainScores returns the six domain sums in catalog order.
func (r *StsioaRecord) DomainScores() []int {
	return []int{r.Domain1Score, r.Domain2Score, r.Domain3Score, r.Domain4Score, r.Domain5Score, r.Domain6Score}
}

// SetDomainScores is the inverse of DomainScores; extra values are ignored.
func (r *StsioaRecord) SetDomainScores(d []int) {
	dst := []*int{&r.Domain1Score, &r.Domain2Score, &r.Domain3Score, &r.Domain4Score, &r.Domain5Score, &r.Domain6Score}
	for i := range dst {
		if i < len(d) {
			*dst[i] = d[i]
		}
	}
}

// Role is an administrator's permission level.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleAgencyAdmin Role = "agency_admin"
	RoleTeamLeader  Role = "team_leader"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAgencyAdmin, RoleTeamLeader:
		return true
	}
	return false
}

// User is an administrator account. Participants never have one.
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PassHash  string    `gorm:"column:password_hash;not null" json:"-"`
	Role      Role      `gorm:"size:32;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string { return "user_profiles" }

// RevokedToken keeps a signed-out JWT unusable until it would have expired.
type RevokedToken struct {
	TokenHash string    `gorm:"primaryKey;size:64" json:"-"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (RevokedToken) TableName() string { return "token_blacklist" }
