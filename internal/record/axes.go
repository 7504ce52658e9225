package record

// Axes names the categorical (X) and numeric (Y) fields a chart plots.
type Axes struct {
	X string `json:"x"`
	Y string `json:"y"`
}

const (
	// DefaultCategoryField is the X fallback and the aggregation label field.
	DefaultCategoryField = "name"
	// DefaultValueField is the Y fallback and the aggregation value field.
	DefaultValueField = "value"
	// SyntheticField holds the presentation-only second series.
	SyntheticField = "uv"
)
