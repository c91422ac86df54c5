package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLineEndings(t *testing.T) {
	assert.Equal(t, "a\nb\nc\n", NormalizeLineEndings("a\r\nb\rc\r\n"))
}

func TestCollapseBlankRuns(t *testing.T) {
	in := "one\n\n\n\n\ntwo\n \t \n\nthree"
	assert.Equal(t, "one\n\n\ntwo\n\n\nthree", CollapseBlankRuns(in))
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"whitespace runs", "Isolation   des \t combles  ", "Isolation des combles"},
		{"control characters", "Laine\x00 de\x07 verre\x1F", "Laine de verre"},
		{"curly quotes", "\u201cR\u00e9sistance\u201d l\u2019isolant", "\"R\u00e9sistance\" l'isolant"},
		{"zero width", "pare\u200b-\u200dvapeur\ufeff", "pare-vapeur"},
		{"tabs and newlines kept per line", "a\tb\nc  d", "a b\nc d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestNormalize_FullPipeline(t *testing.T) {
	in := "\r\n  TITRE\r\n\r\n\r\n\r\n\r\nLe \u201cR\u201d  vaut 7.\x0B\r\n"
	assert.Equal(t, "TITRE\n\n\nLe \"R\" vaut 7.", Normalize(in))
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"a\r\n\r\n\r\n\r\nb",
		"x\n\u200b\n\u200b\n\u200b\n\u200by",
		"  lead\t\ttrail  \n\x01\n\n\nz",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}
