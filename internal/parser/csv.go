package parser

import (
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/extract"
)

type csvParser struct{}

func (csvParser) CanParse(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".csv")
}

func (csvParser) Parse(content []byte) (Result, error) {
	text, err := decodeText(content)
	if err != nil {
		return Result{}, err
	}
	res := extract.ParseCSVDetailed(string(text))
	return Result{Records: res.Records, Format: "csv", Skipped: res.Skipped}, nil
}
