package services

import "github.com/soaringjerry/stsportal/internal/models"

// CronbachAlpha returns Cronbach's alpha for rows of item scores, one row per
// respondent. Variances are population variances, so identical items give
// exactly 1. Ragged rows, fewer than two items or a constant total score
// yield 0, and the result is clamped to [0, 1].
func CronbachAlpha(rows [][]float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	k := len(rows[0])
	if k < 2 {
		return 0
	}
	totals := make([]float64, len(rows))
	col := make([]float64, len(rows))
	var itemVar float64
	for j := 0; j < k; j++ {
		for i, row := range rows {
			if len(row) != k {
				return 0
			}
			col[i] = row[j]
			totals[i] += row[j]
		}
		itemVar += variance(col)
	}
	totalVar := variance(totals)
	if totalVar == 0 {
		return 0
	}
	kf := float64(k)
	return min(max(kf/(kf-1)*(1-itemVar/totalVar), 0), 1)
}

func variance(xs []float64) float64 {
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return ss / float64(len(xs))
}

// scaleAlpha computes alpha over the catalog items named by ids. Items the
// catalog marks as reverse-scored are flipped first. Only respondents who
// answered every item are counted; n reports how many that was. Alpha is 0
// when n < 2.
func scaleAlpha(c *Catalog, ids []string, responses []models.ItemResponses) (alpha float64, n int) {
	reverse := make(map[string]bool, len(c.Items))
	for _, it := range c.Items {
		if it.Reverse {
			reverse[it.ID] = true
		}
	}
	rows := make([][]float64, 0, len(responses))
	for _, r := range responses {
		if row, ok := scoredRow(r, ids, reverse, c.Max); ok {
			rows = append(rows, row)
		}
	}
	if len(rows) < 2 {
		return 0, len(rows)
	}
	return CronbachAlpha(rows), len(rows)
}

func scoredRow(r models.ItemResponses, ids []string, reverse map[string]bool, points int) ([]float64, bool) {
	row := make([]float64, len(ids))
	for i, id := range ids {
		v, ok := r[id]
		if !ok {
			return nil, false
		}
		if reverse[id] {
			v = ReverseScore(v, points)
		}
		row[i] = float64(v)
	}
	return row, true
}
