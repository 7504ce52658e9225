package analysis

import "github.com/KaramelBytes/chartloom-cli/internal/record"

// Aggregate groups seq by the stringified value of groupBy and returns one
// {name, value} record per group in first-seen order. value is the sum of
// sumField (coerced, non-numeric counts as 0) or, when sumField is empty, the
// number of rows in the group. Rows whose group field is missing or null are
// left out.
//
// Truncation to limit happens after every row is aggregated and keeps the
// groups discovered first, not the largest ones. limit <= 0 keeps all groups.
func Aggregate(seq record.Sequence, groupBy, sumField string, limit int) record.Sequence {
	var order []string
	totals := make(map[string]float64)
	for _, r := range seq {
		g, ok := r.Get(groupBy)
		if !ok || g.IsNull() {
			continue
		}
		key := g.String()
		if _, seen := totals[key]; !seen {
			order = append(order, key)
		}
		if sumField == "" {
			totals[key]++
			continue
		}
		v, _ := r.Get(sumField)
		totals[key] += v.Float()
	}
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	out := make(record.Sequence, 0, len(order))
	for _, key := range order {
		out = append(out, record.Of(
			record.DefaultCategoryField, key,
			record.DefaultValueField, totals[key],
		))
	}
	return out
}
