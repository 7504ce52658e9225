package parser

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// decodeText returns content as NFC-normalized UTF-8 without a byte order
// mark. UTF-16 input is recognized by its BOM; anything else is taken as
// UTF-8. Normalizing keeps "İ" typed two ways from splitting a group.
func decodeText(content []byte) ([]byte, error) {
	t := transform.Chain(unicode.BOMOverride(unicode.UTF8.NewDecoder()), norm.NFC)
	out, _, err := transform.Bytes(t, content)
	if err != nil {
		return nil, fmt.Errorf("decode text: %w", err)
	}
	return out, nil
}
