package textproc

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// IntroductionTitle labels text that appears before the first heading.
const IntroductionTitle = "Introduction"

const (
	maxNumberedHeadingLen = 100
	maxCapsHeadingLen     = 80
	minCapsHeadingLetters = 3
)

var (
	markdownHeading = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	doubleUnderline = regexp.MustCompile(`^={3,}\s*$`)
	singleUnderline = regexp.MustCompile(`^-{3,}\s*$`)
	boldHeading     = regexp.MustCompile(`^(?:\*\*(.+?)\*\*|__(.+?)__):?$`)
	numberedHeading = regexp.MustCompile(`^\d+(?:\.\d+)*[.)]?\s+\p{Lu}`)
)

// Structure splits normalized text into heading-delimited sections in a single pass.
// Lines before the first heading go to an implicit level-0 "Introduction" section,
// which is dropped when it holds no text.
func Structure(text string) []models.Section {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		sections []models.Section
		current  *models.Section
	)

	start := func(title string, level int) {
		sections = append(sections, models.Section{Title: title, Level: level})
		current = &sections[len(sections)-1]
	}

	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if trimmed != "" {
			if title, level, skip, ok := headingAt(lines, i); ok {
				start(title, level)
				i += skip
				continue
			}
			if isUnderline(trimmed) {
				// a bare rule with no text above it
				continue
			}
		}

		if current == nil {
			if trimmed == "" {
				continue
			}
			start(IntroductionTitle, 0)
		}
		current.Lines = append(current.Lines, line)
	}

	out := sections[:0]
	for _, s := range sections {
		s.Content = strings.TrimSpace(strings.Join(s.Lines, "\n"))
		if s.Title == IntroductionTitle && s.Level == 0 && s.Content == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// headingAt reports whether lines[i] is a heading, returning its title, its level and
// how many following lines it consumes (the underline of a setext heading).
func headingAt(lines []string, i int) (title string, level, skip int, ok bool) {
	trimmed := strings.TrimSpace(lines[i])

	if m := markdownHeading.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[2]), len(m[1]) - 1, 0, true
	}

	if i+1 < len(lines) && !isUnderline(trimmed) {
		next := strings.TrimSpace(lines[i+1])
		switch {
		case doubleUnderline.MatchString(next):
			return trimmed, 1, 1, true
		case singleUnderline.MatchString(next):
			return trimmed, 2, 1, true
		}
	}

	if m := boldHeading.FindStringSubmatch(trimmed); m != nil {
		title = m[1]
		if title == "" {
			title = m[2]
		}
		return strings.TrimSpace(title), 3, 0, true
	}

	if isNumberedHeading(trimmed) {
		return trimmed, 4, 0, true
	}

	if isCapsHeading(trimmed) {
		return trimmed, 1, 0, true
	}

	return "", 0, 0, false
}

func isUnderline(s string) bool {
	s = strings.TrimSpace(s)
	return doubleUnderline.MatchString(s) || singleUnderline.MatchString(s)
}

func isNumberedHeading(s string) bool {
	if utf8.RuneCountInString(s) > maxNumberedHeadingLen || !numberedHeading.MatchString(s) {
		return false
	}
	return !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, ";") && !strings.HasSuffix(s, ",")
}

func isCapsHeading(s string) bool {
	if utf8.RuneCountInString(s) > maxCapsHeadingLen {
		return false
	}
	letters := 0
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= minCapsHeadingLetters
}
