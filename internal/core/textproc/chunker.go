package textproc

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// DefaultChunkSize is the chunk bound in characters.
const DefaultChunkSize = 1000

// FallbackSectionTitle labels chunks produced without any section structure.
const FallbackSectionTitle = "Document"

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`)

// Chunker turns normalized text and its sections into size-bounded chunks.
//
// ChunkSize: upper bound in characters (runes). A single sentence longer than the bound
// is still emitted whole.
type Chunker struct {
	ChunkSize int
}

// NewChunker returns a Chunker, falling back to DefaultChunkSize for non-positive sizes.
func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunker{ChunkSize: size}
}

// Chunk emits chunks with contiguous indices starting at 0. DocumentID, SourceType and
// ExtractionConfidence are left for the caller.
func (c *Chunker) Chunk(text string, sections []models.Section) []models.Chunk {
	if len(sections) == 0 {
		return c.fixedSize(text)
	}

	var out []models.Chunk
	for si, sec := range sections {
		if sec.Content == "" {
			continue
		}

		if utf8.RuneCountInString(sec.Content) <= c.ChunkSize {
			out = append(out, c.newChunk(len(out), sec.Content, sec.Title, sec.Level, models.ChunkMetadata{
				SectionIndex:      si,
				SectionChunkIndex: 0,
				IsCompleteSection: true,
			}))
			continue
		}

		for j, piece := range c.packSentences(sec.Content) {
			out = append(out, c.newChunk(len(out), piece, sec.Title, sec.Level, models.ChunkMetadata{
				SectionIndex:      si,
				SectionChunkIndex: j,
				IsCompleteSection: false,
			}))
		}
	}
	return out
}

// packSentences greedily packs sentences, flushing whenever the next one would overflow.
func (c *Chunker) packSentences(content string) []string {
	var (
		pieces []string
		buf    strings.Builder
		bufLen int
	)

	flush := func() {
		if bufLen > 0 {
			pieces = append(pieces, buf.String())
		}
		buf.Reset()
		bufLen = 0
	}

	for _, raw := range SplitSentences(content) {
		n := utf8.RuneCountInString(raw)
		if bufLen > 0 && bufLen+1+n > c.ChunkSize {
			flush()
		}
		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(raw)
		bufLen += n
	}
	flush()
	return pieces
}

// fixedSize cuts text into windows of at most ChunkSize runes.
func (c *Chunker) fixedSize(text string) []models.Chunk {
	runes := []rune(text)
	var out []models.Chunk
	for start := 0; start < len(runes); start += c.ChunkSize {
		end := min(start+c.ChunkSize, len(runes))
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece == "" {
			continue
		}
		out = append(out, c.newChunk(len(out), piece, FallbackSectionTitle, 0, models.ChunkMetadata{
			SectionIndex:      0,
			SectionChunkIndex: len(out),
		}))
	}
	return out
}

func (c *Chunker) newChunk(index int, content, title string, level int, meta models.ChunkMetadata) models.Chunk {
	return models.Chunk{
		Index:        index,
		Content:      content,
		TokenCount:   ApproxTokens(content),
		SectionTitle: &title,
		SectionLevel: &level,
		Metadata:     meta,
	}
}

// SplitSentences returns the trimmed, non-empty runs ending in '.', '!' or '?'.
// Trailing text without a terminator is kept as the last sentence.
func SplitSentences(content string) []string {
	var out []string
	for _, m := range sentencePattern.FindAllString(content, -1) {
		if s := strings.TrimSpace(m); s != "" {
			out = append(out, s)
		}
	}
	return out
}
