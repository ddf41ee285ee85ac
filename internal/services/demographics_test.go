package services

import (
	"testing"

	"gorm.io/datatypes"
)

func validDemographics() DemographicsInput {
	return DemographicsInput{
		Gender:                "F",
		Age:                   intp(34),
		YearsInService:        intp(6),
		JobRole:               "Case Manager",
		AreasOfResponsibility: []string{"Children's Services", "Crisis Response Services"},
		ExposureLevel:         intp(60),
	}
}

func TestBuildDemographics(t *testing.T) {
	rec, err := BuildDemographics(validDemographics())
	if err != nil {
		t.Fatalf("BuildDemographics: %v", err)
	}
	areas, err := ParseAreas(rec.AreasOfResponsibility)
	if err != nil || len(areas) != 2 {
		t.Fatalf("unexpected areas %v err=%v", areas, err)
	}
	if rec.Age != 34 || rec.ExposureLevel != 60 || rec.GenderOther != "" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestBuildDemographicsOverFlags(t *testing.T) {
	in := validDemographics()
	in.Age, in.AgeOver65 = nil, true
	in.YearsInService, in.YearsOver30 = nil, true
	rec, err := BuildDemographics(in)
	if err != nil {
		t.Fatalf("BuildDemographics: %v", err)
	}
	if rec.Age != 65 || !rec.AgeOver65 || rec.YearsInService != 30 || !rec.YearsOver30 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestBuildDemographicsMissing(t *testing.T) {
	in := validDemographics()
	in.Gender = "not_listed"
	in.ExposureLevel = nil
	in.JobRole = OtherPleaseSpecify
	_, err := BuildDemographics(in)
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorIncomplete {
		t.Fatalf("expected incomplete, got %v", err)
	}
	want := []string{"gender_other", "job_role_other", "exposure_level"}
	if len(se.Missing) != len(want) {
		t.Fatalf("expected missing %v, got %v", want, se.Missing)
	}
	for i := range want {
		if se.Missing[i] != want[i] {
			t.Fatalf("expected missing %v, got %v", want, se.Missing)
		}
	}
}

func TestBuildDemographicsInvalid(t *testing.T) {
	cases := []func(*DemographicsInput){
		func(in *DemographicsInput) { in.Age = intp(17) },
		func(in *DemographicsInput) { in.YearsInService = intp(31) },
		func(in *DemographicsInput) { in.ExposureLevel = intp(101) },
		func(in *DemographicsInput) { in.Gender = "X" },
		func(in *DemographicsInput) { in.JobRole = "Astronaut" },
		func(in *DemographicsInput) { in.AreasOfResponsibility = []string{"Multi-Team", "Multi-Team"} },
	}
	for i, mutate := range cases {
		in := validDemographics()
		mutate(&in)
		if _, err := BuildDemographics(in); !HasCode(err, ErrorInvalid) {
			t.Fatalf("case %d: expected invalid, got %v", i, err)
		}
	}
}

func TestParseAreasMalformed(t *testing.T) {
	if _, err := ParseAreas(datatypes.JSON(`{"oops":1}`)); err == nil {
		t.Fatalf("expected error for non-array areas")
	}
	areas, err := ParseAreas(nil)
	if err != nil || areas != nil {
		t.Fatalf("expected empty areas, got %v %v", areas, err)
	}

	areas, err = ParseAreas(datatypes.JSON("\"[\\\"Multi-Team\\\",\\\"Children's Services\\\"]\""))
	if err != nil || len(areas) != 2 || areas[0] != "Multi-Team" || areas[1] != "Children's Services" {
		t.Fatalf("double-encoded areas = %v %v", areas, err)
	}
	if _, err := ParseAreas(datatypes.JSON(`"not an array"`)); err == nil {
		t.Fatalf("expected error for string that is not an encoded array")
	}
}
