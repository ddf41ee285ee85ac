package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"
)

// ScoreRow is one session of a cohort export. Nil scores render as blank
// cells because the instrument was never submitted.
type ScoreRow struct {
	SessionID      string
	TeamName       string
	AgencyName     string
	Code           string
	Timepoint      string
	StartedAt      string
	CompletedAt    string
	Complete       bool
	Abandoned      bool
	JobRole        string
	Gender         string
	Age            *int
	YearsInService *int
	ExposureLevel  *int
	StssIntrusion  *int
	StssAvoidance  *int
	StssArousal    *int
	StssTotal      *int
	ProqolCS       *int
	ProqolBurnout  *int
	ProqolSTS      *int
	StsioaDomains  []int
	StsioaTotal    *int
	StsioaNA       *int
}

var scoreHeader = []string{
	"session_id", "team", "agency", "code", "timepoint", "started_at", "completed_at", "is_complete", "is_abandoned",
	"job_role", "gender", "age", "years_in_service", "exposure_level",
	"stss_intrusion", "stss_avoidance", "stss_arousal", "stss_total",
	"proqol_compassion_satisfaction", "proqol_burnout", "proqol_secondary_trauma",
	"stsioa_domain_1", "stsioa_domain_2", "stsioa_domain_3", "stsioa_domain_4", "stsioa_domain_5", "stsioa_domain_6",
	"stsioa_total", "stsioa_not_applicable",
}

// ExportScoreCSV renders one row per session with the stored scores.
func ExportScoreCSV(rows []ScoreRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write(scoreHeader)
	for _, r := range rows {
		rec := []string{
			r.SessionID, safeText(r.TeamName), safeText(r.AgencyName), r.Code, r.Timepoint, r.StartedAt, r.CompletedAt,
			strconv.FormatBool(r.Complete), strconv.FormatBool(r.Abandoned),
			r.JobRole, r.Gender, cell(r.Age), cell(r.YearsInService), cell(r.ExposureLevel),
			cell(r.StssIntrusion), cell(r.StssAvoidance), cell(r.StssArousal), cell(r.StssTotal),
			cell(r.ProqolCS), cell(r.ProqolBurnout), cell(r.ProqolSTS),
		}
		for i := 0; i < 6; i++ {
			if i < len(r.StsioaDomains) {
				rec = append(rec, itoa(r.StsioaDomains[i]))
			} else {
				rec = append(rec, "")
			}
		}
		rec = append(rec, cell(r.StsioaTotal), cell(r.StsioaNA))
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// safeText stops spreadsheet apps from evaluating admin-entered names as
// formulas.
func safeText(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}

type LongRow struct {
	SessionID   string
	Instrument  string
	ItemID      string
	RawValue    int
	ScoreValue  int
	SubmittedAt string
}

// ExportLongCSV renders item answers one per line. score_value applies
// reverse scoring; raw_value is what the respondent chose.
func ExportLongCSV(rows []LongRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"session_id", "instrument", "item_id", "raw_value", "score_value", "submitted_at"})
	for _, r := range rows {
		rec := []string{
			r.SessionID,
			r.Instrument,
			r.ItemID,
			itoa(r.RawValue),
			itoa(r.ScoreValue),
			r.SubmittedAt,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func cell(v *int) string {
	if v == nil {
		return ""
	}
	return itoa(*v)
}

func itoa(i int) string { return strconv.Itoa(i) }

func intp(v int) *int { return &v }
