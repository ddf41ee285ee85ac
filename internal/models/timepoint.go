package models

import "strings"

// Timepoint is one of the four scheduled assessment waves.
type Timepoint string

const (
	TimepointBaseline     Timepoint = "baseline"
	TimepointEndline      Timepoint = "endline"
	TimepointFollowup6Mo  Timepoint = "followup_6mo"
	TimepointFollowup12Mo Timepoint = "followup_12mo"
)

// Timepoints lists the waves in chronological order.
var Timepoints = []Timepoint{TimepointBaseline, TimepointEndline, TimepointFollowup6Mo, TimepointFollowup12Mo}

var timepointAliases = map[string]Timepoint{
	"baseline":      TimepointBaseline,
	"endline":       TimepointEndline,
	"followup_6mo":  TimepointFollowup6Mo,
	"followup_12mo": TimepointFollowup12Mo,
	"6_month":       TimepointFollowup6Mo,
	"12_month":      TimepointFollowup12Mo,
	"6mo":           TimepointFollowup6Mo,
	"12mo":          TimepointFollowup12Mo,
}

// ParseTimepoint accepts the canonical names and the short aliases used by
// older admin screens, case-insensitively.
func ParseTimepoint(s string) (Timepoint, bool) {
	tp, ok := timepointAliases[strings.ToLower(strings.TrimSpace(s))]
	return tp, ok
}

// CodeSuffix is the trailing segment of generated access codes.
func (t Timepoint) CodeSuffix() string {
	switch t {
	case TimepointBaseline:
		return "BASELINE"
	case TimepointEndline:
		return "ENDLINE"
	case TimepointFollowup6Mo:
		return "6MO"
	case TimepointFollowup12Mo:
		return "12MO"
	}
	return strings.ToUpper(string(t))
}

func (t Timepoint) Valid() bool {
	_, ok := timepointAliases[string(t)]
	return ok && t == timepointAliases[string(t)]
}
