package services

import (
	"sort"
	"strconv"

	"github.com/soaringjerry/stsportal/internal/models"
)

type ResponseOption struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

type CatalogItem struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Group   string `json:"group"`
	Reverse bool   `json:"reverse_scored,omitempty"`
}

// Catalog is the read-only definition of one scored instrument.
type Catalog struct {
	Key           models.Instrument `json:"key"`
	Name          string            `json:"name"`
	Groups        []string          `json:"groups"`
	GroupNames    map[string]string `json:"group_names"`
	Items         []CatalogItem     `json:"items"`
	Options       []ResponseOption  `json:"options"`
	Min           int               `json:"min"`
	Max           int               `json:"max"`
	NotApplicable bool              `json:"not_applicable"`
	Copyright     string            `json:"copyright,omitempty"`
}

// ItemIDs returns catalog item ids in display order.
func (c *Catalog) ItemIDs() []string {
	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ID
	}
	return ids
}

// GroupItems returns the item ids belonging to group in display order.
func (c *Catalog) GroupItems(group string) []string {
	var ids []string
	for _, it := range c.Items {
		if it.Group == group {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func (c *Catalog) validate(r models.ItemResponses) error {
	known := make(map[string]bool, len(c.Items))
	var missing []string
	for _, it := range c.Items {
		known[it.ID] = true
		if _, ok := r[it.ID]; !ok {
			missing = append(missing, it.ID)
		}
	}
	var unknown []string
	for id := range r {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return NewInvalidError(c.Name + ": unknown item " + unknown[0])
	}
	if len(missing) > 0 {
		return NewIncompleteResponseError(c.Name, missing)
	}
	for _, it := range c.Items {
		v := r[it.ID]
		if v == 0 && c.NotApplicable {
			continue
		}
		if v < c.Min || v > c.Max {
			return NewInvalidError(c.Name + ": item " + it.ID + " out of range")
		}
	}
	return nil
}

// groupSums sums each group after reverse scoring. Zero is skipped when the
// instrument allows N/A.
func (c *Catalog) groupSums(r models.ItemResponses) (map[string]int, int) {
	sums := make(map[string]int, len(c.Groups))
	na := 0
	for _, it := range c.Items {
		v := r[it.ID]
		if v == 0 && c.NotApplicable {
			na++
			continue
		}
		if it.Reverse {
			v = ReverseScore(v, c.Max)
		}
		sums[it.Group] += v
	}
	return sums, na
}

func numbered(texts []string, groupOf func(n int) string, reverse map[int]bool) []CatalogItem {
	items := make([]CatalogItem, len(texts))
	for i, text := range texts {
		n := i + 1
		items[i] = CatalogItem{ID: strconv.Itoa(n), Text: text, Group: groupOf(n), Reverse: reverse[n]}
	}
	return items
}

func memberOf(groups map[string][]int) func(int) string {
	idx := map[int]string{}
	for g, ns := range groups {
		for _, n := range ns {
			idx[n] = g
		}
	}
	return func(n int) string { return idx[n] }
}

const (
	StssIntrusion = "intrusion"
	StssAvoidance = "avoidance"
	StssArousal   = "arousal"

	ProqolCompassionSatisfaction = "compassion_satisfaction"
	ProqolBurnout                = "burnout"
	ProqolSecondaryTrauma        = "secondary_trauma"
)

var stssCatalog = &Catalog{
	Key:    models.InstrumentStss,
	Name:   "Secondary Traumatic Stress Scale",
	Groups: []string{StssIntrusion, StssAvoidance, StssArousal},
	GroupNames: map[string]string{
		StssIntrusion: "Intrusion",
		StssAvoidance: "Avoidance",
		StssArousal:   "Arousal",
	},
	Items: numbered([]string{
		"I felt emotionally numb.",
		"My heart started pounding when I thought about my work with clients.",
		"It seemed as if I was reliving the trauma(s) experienced by my client(s).",
		"I had trouble sleeping.",
		"I felt discouraged about the future.",
		"Reminders of my work with clients upset me.",
		"I had little interest in being around others.",
		"I felt jumpy.",
		"I was less active than usual.",
		"I thought about my work with clients when I didn't intend to.",
		"I had trouble concentrating.",
		"I avoided people, places, or things that reminded me of my work with clients.",
		"I had disturbing dreams about my work with clients.",
		"I wanted to avoid working with some clients.",
		"I was easily annoyed.",
		"I expected something bad to happen.",
		"I noticed gaps in my memory about client sessions.",
	}, memberOf(map[string][]int{
		StssIntrusion: {2, 3, 6, 10, 13},
		StssAvoidance: {1, 5, 7, 9, 12, 14, 17},
		StssArousal:   {4, 8, 11, 15, 16},
	}), nil),
	Options: []ResponseOption{
		{1, "Never"}, {2, "Rarely"}, {3, "Occasionally"}, {4, "Often"}, {5, "Very Often"},
	},
	Min:       1,
	Max:       5,
	Copyright: "Bride, B.E., Robinson, M.R., Yegidis, B., & Figley, C.R. (2004)",
}

var proqolCatalog = &Catalog{
	Key:    models.InstrumentProqol,
	Name:   "Professional Quality of Life Scale",
	Groups: []string{ProqolCompassionSatisfaction, ProqolBurnout, ProqolSecondaryTrauma},
	GroupNames: map[string]string{
		ProqolCompassionSatisfaction: "Compassion Satisfaction",
		ProqolBurnout:                "Burnout",
		ProqolSecondaryTrauma:        "Secondary Traumatic Stress",
	},
	Items: numbered([]string{
		"I am happy.",
		"I am preoccupied with more than one person I [help].",
		"I get satisfaction from being able to [help] people.",
		"I feel connected to others.",
		"I jump or am startled by unexpected sounds.",
		"I feel invigorated after working with those I [help].",
		"I find it difficult to separate my personal life from my life as a [helper].",
		"I am not as productive at work because I am losing sleep over traumatic experiences of a person I [help].",
		"I think that I might have been affected by the traumatic stress of those I [help].",
		"I feel trapped by my job as a [helper].",
		"Because of my [helping], I have felt \"on edge\" about various things.",
		"I like my work as a [helper].",
		"I feel depressed because of the traumatic experiences of the people I [help].",
		"I feel as though I am experiencing the trauma of someone I have [helped].",
		"I have beliefs that sustain me.",
		"I am pleased with how I am able to keep up with [helping] techniques and protocols.",
		"I am the person I always wanted to be.",
		"My work makes me feel satisfied.",
		"I feel worn out because of my work as a [helper].",
		"I have happy thoughts and feelings about those I [help] and how I could help them.",
		"I feel overwhelmed because my case [work] load seems endless.",
		"I believe I can make a difference through my work.",
		"I avoid certain activities or situations because they remind me of frightening experiences of the people I [help].",
		"I am proud of what I can do to [help].",
		"As a result of my [helping], I have intrusive, frightening thoughts.",
		"I feel \"bogged down\" by the system.",
		"I have thoughts that I am a \"success\" as a [helper].",
		"I can't recall important parts of my work with trauma victims.",
		"I am a very caring person.",
		"I am happy that I chose to do this work.",
	}, memberOf(map[string][]int{
		ProqolCompassionSatisfaction: {3, 6, 12, 16, 18, 20, 22, 24, 27, 30},
		ProqolBurnout:                {1, 4, 8, 10, 15, 17, 19, 21, 26, 29},
		ProqolSecondaryTrauma:        {2, 5, 7, 9, 11, 13, 14, 23, 25, 28},
	}), map[int]bool{1: true, 4: true, 15: true, 17: true, 29: true}),
	Options: []ResponseOption{
		{1, "Never"}, {2, "Rarely"}, {3, "Sometimes"}, {4, "Often"}, {5, "Very Often"},
	},
	Min:       1,
	Max:       5,
	Copyright: "Copyright © 2009 Beth Hudnall Stamm",
}

var stsioaDomains = []struct {
	name  string
	items []string
}{
	{"Resilience-Building Activities", []string{
		"Basic knowledge about STS",
		"Monitoring the impact of STS on professional well-being",
		"Maintaining positive focus on the core mission for which the organization exists",
		"A sense of hope (e.g., a belief in a client's potential for trauma recovery, healing and growth)",
		"Specific skills that enhance a worker's sense of professional competency",
		"Strong peer support among staff, supervisors and consultants",
		"Healthy coping strategies to deal with the psychological demands of the job",
	}},
	{"Staff Safety", []string{
		"The organization protects the physical safety of staff using strategies to reduce risk",
		"Staff in the organization are encouraged to not share graphic details of trauma stories unnecessarily with co-workers",
		"Periodically, the organization conducts a safety survey or forum that assesses worker perceptions of psychological safety",
		"Periodically, the organization conducts a safety survey or forum that assesses worker perceptions of physical safety",
		"Organizational leaders manage risk appropriately and protect workers as much as possible from dangerous clients",
		"The organization provides training on how to manage dangerous situations",
		"The organization has defined protocol for how to respond to staff when critical incidents occur",
	}},
	{"STS-Informed Policies", []string{
		"The organization has defined practices addressing the psychological safety of staff",
		"The organization has defined practices addressing the physical safety of staff",
		"The organization has defined procedures to promote resilience-building in staff",
		"The organization's strategic plan addresses ways to enhance staff resiliency",
		"The organization's strategic plan addresses ways to enhance staff safety",
		"The organization has a risk management policy in place to provide interventions to those who report high levels of STS",
	}},
	{"Leader Practices", []string{
		"Leadership actively encourages self-care",
		"Leadership models good self-care",
		"Staff provides input to leaders on ways the organization can improve its policies and practices regarding STS",
		"Supervisors promote safety and resilience to STS by routinely attending to the risks and signs of STS",
		"Supervisors address STS by referring those with high levels of disturbance to trained mental health professionals who can deliver services",
		"Supervisors promote safety and resilience to STS by offering consistent supervision that includes discussion of the effect of the work on the worker",
		"Supervisors promote safety and resilience to STS by offering additional supervision during times of high risk for STS",
		"Supervisors promote safety and resilience to STS by intentionally managing caseloads and case assignments with the dose of indirect trauma exposure in mind",
		"Leadership responds to STS as an occupational hazard and not a weakness",
	}},
	{"Routine Practices", []string{
		"The organization provides formal trainings on ways to enhance psychological safety",
		"The organization provides formal trainings on ways to enhance physical safety",
		"The organization provides formal trainings on enhancing resilience to STS",
		"The organization offers activities (besides trainings) that promote resilience to STS",
		"The organization discusses STS during new employee orientation",
		"The organization has regular opportunities to provide team and peer support to individuals with high levels of exposure",
		"The organization provides release time to allow employees to attend trainings focused on resilience building or STS management",
	}},
	{"Monitoring & Evaluation", []string{
		"The organization assesses the level of STS in the workplace",
		"The organization routinely monitors workforce trends (e.g. attrition, absenteeism) that may signify a lack of safety or an increase in STS",
		"The organization responds to what it learns through evaluation, monitoring and/or feedback in ways that promote safety and resilience",
		"The organization routinely seeks feedback from the workforce regarding psychosocial trends that may signify an increase in STS",
	}},
}

var stsioaCatalog = buildStsioaCatalog()

// STSI-OA items are keyed "1a".."6d": domain number plus letter.
func buildStsioaCatalog() *Catalog {
	c := &Catalog{
		Key:        models.InstrumentStsioa,
		Name:       "STS-Informed Organizational Assessment",
		GroupNames: map[string]string{},
		Options: []ResponseOption{
			{1, "Needs Attention"}, {2, "Planning Stage"}, {3, "Being Tested"},
			{4, "Ready for Spread"}, {5, "Fully Implemented"}, {0, "N/A - Not Applicable"},
		},
		Min:           1,
		Max:           5,
		NotApplicable: true,
		Copyright:     "© Copyright Sprang, G., Ross, L., Miller, B., Blackshear, K., Ascienzo, S. (2017)",
	}
	for d, dom := range stsioaDomains {
		group := strconv.Itoa(d + 1)
		c.Groups = append(c.Groups, group)
		c.GroupNames[group] = dom.name
		for i, text := range dom.items {
			c.Items = append(c.Items, CatalogItem{ID: group + string(rune('a'+i)), Text: text, Group: group})
		}
	}
	return c
}

// LookupCatalog returns the catalog for a scored instrument.
func LookupCatalog(key models.Instrument) (*Catalog, bool) {
	switch key {
	case models.InstrumentStss:
		return stssCatalog, true
	case models.InstrumentProqol:
		return proqolCatalog, true
	case models.InstrumentStsioa:
		return stsioaCatalog, true
	}
	return nil, false
}
