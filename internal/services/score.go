package services

import "github.com/soaringjerry/stsportal/internal/models"

// ReverseScore maps a raw Likert value to its reverse-scored value
// given the number of points in the scale. On a 5-point scale this is 6 - raw.
// raw is expected to be within [1, points]. Out-of-range values are clamped.
func ReverseScore(raw, points int) int {
	if points < 2 {
		return raw
	}
	if raw < 1 {
		raw = 1
	}
	if raw > points {
		raw = points
	}
	return (points + 1) - raw
}

type StssScores struct {
	Intrusion int `json:"intrusion"`
	Avoidance int `json:"avoidance"`
	Arousal   int `json:"arousal"`
	Total     int `json:"total"`
}

// ScoreStss validates all 17 items and sums the three subscales.
func ScoreStss(r models.ItemResponses) (StssScores, error) {
	if err := stssCatalog.validate(r); err != nil {
		return StssScores{}, err
	}
	sums, _ := stssCatalog.groupSums(r)
	s := StssScores{
		Intrusion: sums[StssIntrusion],
		Avoidance: sums[StssAvoidance],
		Arousal:   sums[StssArousal],
	}
	s.Total = s.Intrusion + s.Avoidance + s.Arousal
	return s, nil
}

type ProqolScores struct {
	CompassionSatisfaction int `json:"compassion_satisfaction"`
	Burnout                int `json:"burnout"`
	SecondaryTrauma        int `json:"secondary_trauma"`
}

// ScoreProqol validates all 30 items and sums each subscale after reverse
// scoring items 1, 4, 15, 17 and 29. There is no cross-subscale total.
func ScoreProqol(r models.ItemResponses) (ProqolScores, error) {
	if err := proqolCatalog.validate(r); err != nil {
		return ProqolScores{}, err
	}
	sums, _ := proqolCatalog.groupSums(r)
	return ProqolScores{
		CompassionSatisfaction: sums[ProqolCompassionSatisfaction],
		Burnout:                sums[ProqolBurnout],
		SecondaryTrauma:        sums[ProqolSecondaryTrauma],
	}, nil
}

// ProqolLevel buckets a subscale sum the way the published cut scores do.
func ProqolLevel(score int) string {
	switch {
	case score <= 22:
		return "low"
	case score <= 41:
		return "moderate"
	}
	return "high"
}

type StsioaScores struct {
	Domains       []int `json:"domains"`
	Total         int   `json:"total"`
	NotApplicable int   `json:"not_applicable"`
}

// ScoreStsioa validates all 40 items. Answers of 0 mean N/A and are left out
// of both the domain sums and the total.
func ScoreStsioa(r models.ItemResponses) (StsioaScores, error) {
	if err := stsioaCatalog.validate(r); err != nil {
		return StsioaScores{}, err
	}
	sums, na := stsioaCatalog.groupSums(r)
	s := StsioaScores{Domains: make([]int, len(stsioaCatalog.Groups)), NotApplicable: na}
	for i, g := range stsioaCatalog.Groups {
		s.Domains[i] = sums[g]
		s.Total += sums[g]
	}
	return s, nil
}
