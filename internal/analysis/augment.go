package analysis

import (
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/KaramelBytes/chartloom-cli/internal/record"
	"github.com/spf13/cast"
)

// Float64Source yields uniform numbers in [0, 1). *rand.Rand satisfies it.
type Float64Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// DefaultSource draws from the process-wide generator.
func DefaultSource() Float64Source { return globalSource{} }

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// NewSource returns a deterministic source safe for concurrent use.
func NewSource(seed int64) Float64Source {
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

// Augment adds the synthetic "uv" series used by dual-series charts
// (composed, stacked bar) when the data carries only one numeric series.
// uv is NOT derived data: each record gets round(y * r) with r drawn
// independently from [0.8, 1.2).
//
// Nothing happens when the first record already has "uv" or its Y value is
// not a number; seq is then returned unchanged. Otherwise a modified copy is
// returned. Later records with numeric text in Y are scaled like numbers
// (blank text counts as 0); other records get a null uv.
func Augment(seq record.Sequence, axes record.Axes, src Float64Source) record.Sequence {
	if len(seq) == 0 {
		return seq
	}
	first := seq[0]
	if first.Has(record.SyntheticField) {
		return seq
	}
	if y, _ := first.Get(axes.Y); !y.IsNumber() {
		return seq
	}
	if src == nil {
		src = DefaultSource()
	}
	out := make(record.Sequence, len(seq))
	for i, r := range seq {
		c := r.Clone()
		jitter := 0.8 + src.Float64()*0.4
		y, _ := r.Get(axes.Y)
		if n, ok := yNumber(y); ok {
			c.Set(record.SyntheticField, record.Num(roundHalfUp(n*jitter)))
		} else {
			c.Set(record.SyntheticField, record.Null())
		}
		out[i] = c
	}
	return out
}

// yNumber reads a Y value as a number. Text is parsed after trimming and
// blank text is 0; anything else is not a number.
func yNumber(v record.Value) (float64, bool) {
	if n, ok := v.Number(); ok {
		return n, true
	}
	s, ok := v.Text()
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	f, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(x float64) float64 { return math.Floor(x + 0.5) }
