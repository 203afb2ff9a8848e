package chunker

import (
	"fmt"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Config holds the splitter parameters. Sizes are measured in characters (runes).
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// Validate checks that the sizes describe a usable splitter
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// Chunker splits text into retrieval units
type Chunker interface {
	Split(text string) ([]string, error)
	Name() string
}

// Recursive splits text on the coarsest separator present, recursing into
// pieces that are still too long, then merges small pieces back up to
// ChunkSize while carrying up to ChunkOverlap characters between neighbours.
// Separators stay attached to the piece that follows them and every chunk is
// trimmed; blank chunks are dropped.
type Recursive struct {
	splitter textsplitter.RecursiveCharacter
}

// NewRecursive creates a recursive splitter. Empty Separators use DefaultSeparators.
func NewRecursive(config Config) (*Recursive, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(config.Separators) == 0 {
		config.Separators = DefaultSeparators
	}
	return &Recursive{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
			textsplitter.WithSeparators(config.Separators),
			textsplitter.WithKeepSeparator(true),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

func (r *Recursive) Name() string {
	return "recursive"
}

// Split returns the chunk texts in document order
func (r *Recursive) Split(text string) ([]string, error) {
	chunks, err := r.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	return chunks, nil
}
