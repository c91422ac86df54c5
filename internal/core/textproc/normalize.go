package textproc

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxBlankRun is the number of consecutive blank lines kept by CollapseBlankRuns.
const MaxBlankRun = 2

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	spaceRuns    = regexp.MustCompile(`[ \t]+`)

	quoteReplacer = strings.NewReplacer(
		"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u201b", "'",
		"\u201c", `"`, "\u201d", `"`, "\u201e", `"`, "\u201f", `"`,
	)
	zeroWidthReplacer = strings.NewReplacer(
		"\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "",
	)
)

// Normalize applies, in order, line-ending normalization, blank-run collapsing and
// cosmetic cleanup, then trims the result. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = NormalizeLineEndings(s)
	s = CollapseBlankRuns(s)
	s = Clean(s)
	return strings.TrimSpace(s)
}

// NormalizeLineEndings converts CRLF and lone CR to LF.
func NormalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// CollapseBlankRuns keeps at most MaxBlankRun consecutive blank lines.
// Blank lines are emitted empty.
func CollapseBlankRuns(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		if isBlank(line) {
			blanks++
			if blanks > MaxBlankRun {
				continue
			}
			out = append(out, "")
			continue
		}
		blanks = 0
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// Clean collapses whitespace runs, strips control and zero-width characters and
// straightens curly quotes, line by line.
func Clean(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = zeroWidthReplacer.Replace(line)
		line = controlChars.ReplaceAllString(line, "")
		line = quoteReplacer.Replace(line)
		line = spaceRuns.ReplaceAllString(line, " ")
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}

// isBlank treats lines made only of whitespace, control or zero-width runes as blank,
// so that Clean never turns a kept line into an extra blank one.
func isBlank(line string) bool {
	for _, r := range line {
		switch {
		case unicode.IsSpace(r), unicode.IsControl(r):
		case r == '\u200b', r == '\u200c', r == '\u200d', r == '\ufeff':
		default:
			return false
		}
	}
	return true
}
