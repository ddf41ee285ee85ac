package services

import (
	"encoding/csv"
	"strings"
	"testing"
)

func readCSV(b []byte) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(string(b)))
	return r.ReadAll()
}

func TestExportLongCSV(t *testing.T) {
	rows := []LongRow{
		{SessionID: "S1", Instrument: "proqol", ItemID: "1", RawValue: 4, ScoreValue: 2, SubmittedAt: "2024-01-01T00:00:00Z"},
		{SessionID: "S1", Instrument: "proqol", ItemID: "2", RawValue: 5, ScoreValue: 5, SubmittedAt: "2024-01-01T00:00:00Z"},
		{SessionID: "S2", Instrument: "stss", ItemID: "1", RawValue: 1, ScoreValue: 1, SubmittedAt: "2024-01-02T00:00:00Z"},
	}
	b, err := ExportLongCSV(rows)
	if err != nil {
		t.Fatalf("export long: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(recs) != 1+len(rows) {
		t.Fatalf("want %d rows, got %d", 1+len(rows), len(recs))
	}
	if got := strings.Join(recs[0], ","); got != "session_id,instrument,item_id,raw_value,score_value,submitted_at" {
		t.Fatalf("bad header: %s", got)
	}
	if got := strings.Join(recs[1], ","); got != "S1,proqol,1,4,2,2024-01-01T00:00:00Z" {
		t.Fatalf("bad row: %s", got)
	}
}

func TestExportScoreCSVBlanksMissingInstruments(t *testing.T) {
	rows := []ScoreRow{
		{SessionID: "S1", TeamName: "Alpha", Timepoint: "baseline", Complete: true,
			Age: intp(30), StssTotal: intp(51), StsioaDomains: []int{1, 2, 3, 4, 5, 6}, StsioaTotal: intp(21)},
		{SessionID: "S2", TeamName: "Alpha", Timepoint: "baseline"},
	}
	b, err := ExportScoreCSV(rows)
	if err != nil {
		t.Fatalf("export scores: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("want 3 rows, got %d", len(recs))
	}
	col := map[string]int{}
	for i, h := range recs[0] {
		col[h] = i
	}
	if len(recs[1]) != len(recs[0]) || len(recs[2]) != len(recs[0]) {
		t.Fatalf("rows must match header width")
	}
	if recs[1][col["stss_total"]] != "51" || recs[1][col["stsioa_domain_6"]] != "6" || recs[1][col["is_complete"]] != "true" {
		t.Fatalf("unexpected first row %v", recs[1])
	}
	for _, h := range []string{"age", "stss_total", "proqol_burnout", "stsioa_domain_1", "stsioa_total"} {
		if recs[2][col[h]] != "" {
			t.Fatalf("expected blank %s for unanswered session, got %q", h, recs[2][col[h]])
		}
	}
}

func TestExportScoreCSVEscapesFormulaNames(t *testing.T) {
	rows := []ScoreRow{
		{SessionID: "S1", TeamName: "=HYPERLINK(\"http://x\")", AgencyName: "+County"},
		{SessionID: "S2", TeamName: "-Night shift", AgencyName: "@Agency"},
		{SessionID: "S3", TeamName: "North Team", AgencyName: "County - East"},
	}
	b, err := ExportScoreCSV(rows)
	if err != nil {
		t.Fatalf("export scores: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	want := [][2]string{
		{"'=HYPERLINK(\"http://x\")", "'+County"},
		{"'-Night shift", "'@Agency"},
		{"North Team", "County - East"},
	}
	for i, w := range want {
		if recs[i+1][1] != w[0] || recs[i+1][2] != w[1] {
			t.Fatalf("row %d team/agency = %q/%q, want %q/%q", i+1, recs[i+1][1], recs[i+1][2], w[0], w[1])
		}
	}
}
