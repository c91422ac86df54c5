package textproc

import "unicode/utf8"

// ApproxTokens is a cheap token estimator (~4 chars ≈ 1 token), i.e. ceil(runes/4).
func ApproxTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
