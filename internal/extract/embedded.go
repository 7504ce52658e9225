package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/record"
)

// CleanResponse pulls a JSON array out of free-form model output that may be
// wrapped in code fences or prose. It returns the array re-serialized as
// indented JSON (numbers in canonical form, the last of duplicate keys kept in
// the first key's position), or false when no usable data was found. There is
// no retry with other heuristics once the candidate fails to parse.
func CleanResponse(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	switch {
	case start >= 0 && end >= 0:
		if end < start {
			return "", false
		}
		cleaned = cleaned[start : end+1]
	default:
		objStart := strings.Index(cleaned, "{")
		objEnd := strings.LastIndex(cleaned, "}")
		if objStart >= 0 && objEnd > objStart && !strings.Contains(cleaned, "[") {
			cleaned = "[" + cleaned[objStart:objEnd+1] + "]"
		}
	}

	candidate := []byte(cleaned)
	if !json.Valid(candidate) {
		return "", false
	}
	var arr []byte
	switch firstByte(candidate) {
	case '[':
		arr = candidate
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(candidate, &obj); err != nil {
			return "", false
		}
		data, ok := obj["data"]
		if !ok || firstByte(data) != '[' {
			return "", false
		}
		arr = data
	default:
		return "", false
	}
	out, err := reserialize(arr)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// reserialize decodes every array element and encodes the array again.
// Objects keep their key order.
func reserialize(arr []byte) ([]byte, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(arr, &elems); err != nil {
		return nil, err
	}
	out := make([]any, len(elems))
	for i, e := range elems {
		if firstByte(e) == '{' {
			var r record.Record
			if err := r.UnmarshalJSON(e); err != nil {
				return nil, err
			}
			out[i] = r
			continue
		}
		var v record.Value
		if err := v.UnmarshalJSON(e); err != nil {
			return nil, err
		}
		out[i] = v
	}
	return record.MarshalPretty(out)
}

// ExtractRecords runs CleanResponse and decodes the result. An empty
// sequence means the response held no usable records.
func ExtractRecords(text string) record.Sequence {
	cleaned, ok := CleanResponse(text)
	if !ok {
		return record.Sequence{}
	}
	seq, err := record.DecodeSequence([]byte(cleaned))
	if err != nil {
		return record.Sequence{}
	}
	return seq
}

func firstByte(b []byte) byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
