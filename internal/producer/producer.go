// Package producer supplies raw input events to the pipeline: uploaded
// files, pasted text and responses from an external AI responder.
package producer

import (
	"context"
	"fmt"
	"io"

	"github.com/KaramelBytes/chartloom-cli/internal/parser"
	"github.com/KaramelBytes/chartloom-cli/internal/pipeline"
	"github.com/KaramelBytes/chartloom-cli/internal/record"
	"github.com/KaramelBytes/chartloom-cli/internal/session"
)

// Input is one raw input event.
type Input struct {
	Kind pipeline.Kind
	Text string
	// Source names where the text came from (a path, "paste", "ai").
	Source string
	// Skipped counts CSV rows dropped while reading an upload.
	Skipped int
}

// Producer yields a single input event. Implementations may block on I/O
// and must honor ctx.
type Producer interface {
	Produce(ctx context.Context) (Input, error)
}

// TextProducer is the paste box: text used as-is.
type TextProducer struct {
	Kind pipeline.Kind
	Text string
}

func (p TextProducer) Produce(ctx context.Context) (Input, error) {
	if err := ctx.Err(); err != nil {
		return Input{}, err
	}
	kind := p.Kind
	if kind == "" {
		kind = pipeline.KindJSON
	}
	return Input{Kind: kind, Text: p.Text, Source: "paste"}, nil
}

// FileProducer reads an uploaded data file. A .json file must hold valid
// JSON; its object elements are decoded and re-encoded as indented JSON and
// anything else in the array is dropped. Other files are read as CSV. Either
// way the result is JSON text, as the editor would show it.
type FileProducer struct {
	Path string
	// Reader, when set, is read instead of opening Path.
	Reader   io.Reader
	MaxBytes int64
}

func (p FileProducer) Produce(ctx context.Context) (Input, error) {
	if err := ctx.Err(); err != nil {
		return Input{}, err
	}
	var (
		res parser.Result
		err error
	)
	if p.Reader != nil {
		res, err = parser.ParseReader(p.Path, p.Reader, p.MaxBytes)
	} else {
		res, err = parser.ParseFile(p.Path, p.MaxBytes)
	}
	if err != nil {
		return Input{}, err
	}
	if len(res.Records) == 0 {
		return Input{}, &parser.FileError{Path: p.Path, Err: fmt.Errorf("file empty or malformed: %w", pipeline.ErrNoData)}
	}
	text, err := record.MarshalPretty(res.Records)
	if err != nil {
		return Input{}, fmt.Errorf("encode records: %w", err)
	}
	return Input{Kind: pipeline.KindJSON, Text: string(text), Source: p.Path, Skipped: res.Skipped}, nil
}

// Apply runs one input event end to end: it reserves a sequence number,
// waits for p, runs the pipeline and commits the result to s. Producer and
// pipeline failures never reach the session. A slower, older event that
// finishes after a newer one is rejected with session.ErrStale. The sequence
// number reserved for the event is returned in every case.
func Apply(ctx context.Context, p Producer, pl *pipeline.Pipeline, s *session.Session) (pipeline.View, uint64, error) {
	seq := s.NextSeq()
	in, err := p.Produce(ctx)
	if err != nil {
		return pipeline.View{}, seq, fmt.Errorf("produce input: %w", err)
	}
	view, err := pl.RunText(in.Kind, in.Text)
	if err != nil {
		return pipeline.View{}, seq, err
	}
	if err := s.Commit(seq, view); err != nil {
		return pipeline.View{}, seq, err
	}
	return view, seq, nil
}
