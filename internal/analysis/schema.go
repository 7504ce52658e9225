package analysis

import "github.com/KaramelBytes/chartloom-cli/internal/record"

// InferAxes picks chart axes from a single sample record, normally the first
// of the display sequence. The rest of the sequence is not consulted.
//
// X is the first field holding a string and Y the first holding a number,
// falling back to "name" and "value". A field literally called "name" or
// "value" always wins over the positional pick.
func InferAxes(sample record.Record) record.Axes {
	axes := record.Axes{X: record.DefaultCategoryField, Y: record.DefaultValueField}
	var haveX, haveY bool
	for _, k := range sample.Keys() {
		v, _ := sample.Get(k)
		if !haveX && v.IsString() {
			axes.X, haveX = k, true
		}
		if !haveY && v.IsNumber() {
			axes.Y, haveY = k, true
		}
	}
	if sample.Has(record.DefaultCategoryField) {
		axes.X = record.DefaultCategoryField
	}
	if sample.Has(record.DefaultValueField) {
		axes.Y = record.DefaultValueField
	}
	return axes
}

// GroupingFields chooses what an oversized sequence is grouped by: the first
// string field of the sample (else its first field) and, when present, the
// first numeric field to sum. An empty sum field means "count rows".
func GroupingFields(sample record.Record) (groupBy, sumField string) {
	keys := sample.Keys()
	for _, k := range keys {
		v, _ := sample.Get(k)
		if groupBy == "" && v.IsString() {
			groupBy = k
		}
		if sumField == "" && v.IsNumber() {
			sumField = k
		}
	}
	if groupBy == "" && len(keys) > 0 {
		groupBy = keys[0]
	}
	return groupBy, sumField
}
