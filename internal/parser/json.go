package parser

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/record"
)

type jsonParser struct{}

func (jsonParser) CanParse(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".json")
}

// Parse accepts any valid JSON. Only an array of objects yields records; other
// valid documents produce an empty result rather than an error.
func (jsonParser) Parse(content []byte) (Result, error) {
	text, err := decodeText(content)
	if err != nil {
		return Result{}, err
	}
	if !json.Valid(text) {
		return Result{}, ErrInvalidJSON
	}
	seq, err := record.DecodeSequence(text)
	if errors.Is(err, record.ErrNotArray) {
		return Result{Records: record.Sequence{}, Format: "json"}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Records: seq, Format: "json"}, nil
}
