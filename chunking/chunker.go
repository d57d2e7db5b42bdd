package chunking

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/poiesic/hybridrag/core"
)

const (
	// DefaultSize is the default number of tokens per chunk.
	DefaultSize = 500
	// DefaultOverlap is the default number of tokens shared by adjacent chunks.
	DefaultOverlap = 50
)

// Config controls chunk size and overlap, both measured in tokens.
type Config struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// DefaultConfig returns a 500 token window with 50 tokens of overlap.
func DefaultConfig() Config {
	return Config{Size: DefaultSize, Overlap: DefaultOverlap}
}

// Validate requires 0 <= Overlap < Size.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrInvalidConfiguration, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap cannot be negative, got %d", core.ErrInvalidConfiguration, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than size %d", core.ErrInvalidConfiguration, c.Overlap, c.Size)
	}
	return nil
}

// Chunker splits text into overlapping token windows.
// A Chunker is immutable and safe for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// New validates cfg and returns a Chunker.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{size: cfg.Size, overlap: cfg.Overlap}, nil
}

// Size returns the window size in tokens.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of tokens shared by adjacent windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts text into chunks. pageStarts holds the byte offset where each
// page begins, in ascending order; a chunk is assigned the page containing
// its first token. The returned chunks carry Ordinal, PageNumber, Text and
// TokenCount but no IDs.
func (c *Chunker) Split(text string, pageStarts []int) []*core.Chunk {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]*core.Chunk, 0, len(tokens)/step+1)

	for pos := 0; ; pos += step {
		end := min(pos+c.size, len(tokens))
		first, last := tokens[pos], tokens[end-1]
		chunks = append(chunks, &core.Chunk{
			PageNumber: pageOf(first.Start, pageStarts),
			Ordinal:    len(chunks),
			Text:       text[first.Start:last.End],
			TokenCount: end - pos,
		})
		if end >= len(tokens) {
			break
		}
	}

	return chunks
}

// Token is a run of non-whitespace characters and its byte span in the source.
type Token struct {
	Start int
	End   int
}

// Tokenize returns the byte spans of every whitespace-separated token in text.
// It splits exactly where strings.Fields would.
func Tokenize(text string) []Token {
	var tokens []Token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Start: start, End: len(text)})
	}
	return tokens
}

// pageOf returns the 1-based page containing offset.
func pageOf(offset int, pageStarts []int) int {
	if len(pageStarts) == 0 {
		return 1
	}
	// Number of pages starting at or before offset.
	n := sort.Search(len(pageStarts), func(i int) bool { return pageStarts[i] > offset })
	return max(n, 1)
}

// PageSeparator joins page texts in JoinPages.
const PageSeparator = "\n\n"

// JoinPages concatenates per-page text and returns the byte offset where each
// page starts, suitable for Split.
func JoinPages(pages []string) (string, []int) {
	var b strings.Builder
	starts := make([]int, len(pages))
	for i, page := range pages {
		if i > 0 {
			b.WriteString(PageSeparator)
		}
		starts[i] = b.Len()
		b.WriteString(page)
	}
	return b.String(), starts
}
