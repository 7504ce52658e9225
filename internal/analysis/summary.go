package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/KaramelBytes/chartloom-cli/internal/record"
)

// ErrEmptySequence is returned when a summary is requested for no data.
var ErrEmptySequence = errors.New("empty record sequence")

// Stats are the figures quoted in a dataset description.
type Stats struct {
	Category string  `json:"category"`
	Measure  string  `json:"measure"`
	Max      float64 `json:"max"`
	Min      float64 `json:"min"`
	Count    int     `json:"count"`
}

// Summarize computes max/min of the Y field over seq. Missing or non-numeric
// values count as 0.
func Summarize(seq record.Sequence, axes record.Axes) (Stats, error) {
	if len(seq) == 0 {
		return Stats{}, ErrEmptySequence
	}
	st := Stats{Category: axes.X, Measure: axes.Y, Max: math.Inf(-1), Min: math.Inf(1), Count: len(seq)}
	for _, r := range seq {
		v, _ := r.Get(axes.Y)
		f := v.Float()
		st.Max = math.Max(st.Max, f)
		st.Min = math.Min(st.Min, f)
	}
	return st, nil
}

// Sentence renders the stats as a short prose description.
func (s Stats) Sentence() string {
	return fmt.Sprintf(
		"This chart shows the distribution of **%s** values by **%s**. "+
			"In the displayed dataset the highest value is **%s** and the lowest is **%s**. "+
			"A total of **%d** data points were analyzed.",
		s.Measure, s.Category, record.FormatNumber(s.Max), record.FormatNumber(s.Min), s.Count)
}

// Describe is Summarize followed by Sentence.
func Describe(seq record.Sequence, axes record.Axes) (string, error) {
	st, err := Summarize(seq, axes)
	if err != nil {
		return "", err
	}
	return st.Sentence(), nil
}
