// Package pipeline wires extraction, aggregation, axis inference and
// description into the single path every input event takes.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/extract"
	"github.com/KaramelBytes/chartloom-cli/internal/logging"
	"github.com/KaramelBytes/chartloom-cli/internal/record"
)

// ErrNoData means the input produced no usable records. Callers surface it
// as a user-facing message; nothing downstream runs.
var ErrNoData = errors.New("no usable data")

// Kind identifies how raw input text is turned into records.
type Kind string

const (
	// KindJSON is editor or upload text holding a JSON array of objects.
	KindJSON Kind = "json"
	// KindCSV is delimited text with a header row.
	KindCSV Kind = "csv"
	// KindResponse is free-form AI output with JSON somewhere inside.
	KindResponse Kind = "ai"
)

// ParseKind maps a user-supplied name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindJSON, KindCSV, KindResponse:
		return k, nil
	case "response":
		return KindResponse, nil
	}
	return "", fmt.Errorf("unknown input kind %q (want json, csv or ai)", s)
}

// View is what the rendering layer consumes. Axes are authoritative: the
// renderer must not re-derive them from Data.
type View struct {
	Data        record.Sequence `json:"data"`
	Axes        record.Axes     `json:"axes"`
	Description string          `json:"description"`
	// SourceRows is the record count before aggregation.
	SourceRows int  `json:"sourceRows"`
	Aggregated bool `json:"aggregated"`
}

// Options tune a Pipeline.
type Options struct {
	// Threshold is the sequence length above which records are aggregated.
	Threshold int
	// Cap bounds the number of aggregated groups.
	Cap int
	// Synthetic enables the "uv" series for dual-series charts.
	Synthetic bool
	// Rand feeds the synthetic series. Nil uses the process-wide generator.
	Rand   analysis.Float64Source
	Logger *slog.Logger
}

// DefaultOptions mirrors the dashboard's fixed behavior.
func DefaultOptions() Options {
	return Options{
		Threshold: record.AggregationThreshold,
		Cap:       record.DisplayCap,
		Synthetic: true,
	}
}

// Pipeline turns record sequences into Views. It holds no per-run state and
// is safe for concurrent use when its Rand source is.
type Pipeline struct {
	opt Options
	log *slog.Logger

	infer    func(record.Record) record.Axes
	describe func(record.Sequence, record.Axes) (string, error)
}

// New builds a Pipeline. Zero Threshold or Cap fall back to the defaults.
func New(opt Options) *Pipeline {
	if opt.Threshold <= 0 {
		opt.Threshold = record.AggregationThreshold
	}
	if opt.Cap <= 0 {
		opt.Cap = record.DisplayCap
	}
	if opt.Rand == nil {
		opt.Rand = analysis.DefaultSource()
	}
	log := opt.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Pipeline{
		opt:      opt,
		log:      log,
		infer:    analysis.InferAxes,
		describe: analysis.Describe,
	}
}

// Run normalizes seq into a View. An empty seq, or one whose aggregation
// leaves nothing to show, yields ErrNoData without touching the later
// stages.
func (p *Pipeline) Run(seq record.Sequence) (View, error) {
	if len(seq) == 0 {
		return View{}, ErrNoData
	}
	view := View{SourceRows: len(seq)}
	display := seq
	if len(seq) > p.opt.Threshold {
		groupBy, sumField := analysis.GroupingFields(seq[0])
		display = analysis.Aggregate(seq, groupBy, sumField, p.opt.Cap)
		view.Aggregated = true
		p.log.Debug("aggregated records",
			"rows", len(seq), "group_by", groupBy, "sum_field", sumField, "groups", len(display))
	}
	if len(display) == 0 {
		return View{}, ErrNoData
	}
	view.Axes = p.infer(display[0])
	if p.opt.Synthetic {
		display = analysis.Augment(display, view.Axes, p.opt.Rand)
	}
	desc, err := p.describe(display, view.Axes)
	if err != nil {
		return View{}, fmt.Errorf("describe: %w", err)
	}
	view.Data = display
	view.Description = desc
	return view, nil
}

// RunText extracts records from text according to kind and runs them.
// Extraction failures are reported as ErrNoData.
func (p *Pipeline) RunText(kind Kind, text string) (View, error) {
	seq, err := p.Extract(kind, text)
	if err != nil {
		return View{}, err
	}
	return p.Run(seq)
}

// Extract is the text-to-records step of RunText.
func (p *Pipeline) Extract(kind Kind, text string) (record.Sequence, error) {
	switch kind {
	case KindJSON:
		seq, err := record.DecodeSequence([]byte(text))
		if err != nil {
			p.log.Debug("json input rejected", "error", err)
			return nil, fmt.Errorf("%w: %v", ErrNoData, err)
		}
		return seq, nil
	case KindCSV:
		res := extract.ParseCSVDetailed(text)
		if res.Skipped > 0 {
			p.log.Debug("dropped malformed csv rows", "skipped", res.Skipped, "kept", len(res.Records))
		}
		return res.Records, nil
	case KindResponse:
		cleaned, ok := extract.CleanResponse(text)
		if !ok {
			p.log.Debug("no json found in response", "chars", len(text))
			return nil, ErrNoData
		}
		seq, err := record.DecodeSequence([]byte(cleaned))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoData, err)
		}
		return seq, nil
	}
	return nil, fmt.Errorf("unknown input kind %q", kind)
}
