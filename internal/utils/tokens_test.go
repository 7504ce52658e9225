package utils_test

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/chartloom-cli/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"short", "abc", 1},
		{"simple", "hello world", 2},
		{"multibyte counts runes", strings.Repeat("ğ", 8), 2},
		{"long", strings.Repeat("a", 4000), 1000},
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got != c.want {
			t.Errorf("%s: got %d want %d", c.name, got, c.want)
		}
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	text := strings.Repeat("abcd ", 1000)
	trunc, cut := utils.TruncateToTokenLimit(text, 250)
	if !cut || len([]rune(trunc)) != 1000 {
		t.Fatalf("cut=%v len=%d", cut, len(trunc))
	}
	if same, cut := utils.TruncateToTokenLimit("short", 250); cut || same != "short" {
		t.Fatalf("short text changed: %q %v", same, cut)
	}
	if empty, _ := utils.TruncateToTokenLimit("x", 0); empty != "" {
		t.Fatalf("zero limit should yield empty text")
	}
	// never splits a multi-byte character
	if got, _ := utils.TruncateToTokenLimit(strings.Repeat("ş", 10), 1); got != "şşşş" {
		t.Fatalf("got %q", got)
	}
}
