package utils

// Rough prompt-size estimation: 1 token ~= 4 characters.
const charsPerToken = 4

// CountTokens estimates the number of tokens in the given text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	// at least 1 token for any non-empty text
	tokens := len([]rune(text)) / charsPerToken
	if tokens == 0 {
		return 1
	}
	return tokens
}

// TruncateToTokenLimit cuts text to roughly limit tokens, on a rune boundary.
// The second result reports whether anything was cut.
func TruncateToTokenLimit(text string, limit int) (string, bool) {
	if limit <= 0 {
		return "", text != ""
	}
	runes := []rune(text)
	charLimit := limit * charsPerToken
	if charLimit >= len(runes) {
		return text, false
	}
	return string(runes[:charLimit]), true
}
