package domain

import "strings"

// Supported document formats
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatTXT  = "txt"
)

// Chunk metadata keys
const (
	MetadataKeySource = "source"
	MetadataKeyChunk  = "chunk"
)

// Page is one unit of extracted text, a PDF page or a whole DOCX/TXT file
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Document is the text extracted from an uploaded file
type Document struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Pages    []Page `json:"pages"`
}

// Text merges all pages into a single string
func (d *Document) Text() string {
	parts := make([]string, len(d.Pages))
	for i, p := range d.Pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}

// Chunk is a span of document text used as the unit of embedding and retrieval
type Chunk struct {
	Index    int               `json:"index"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RetrievedChunk is a chunk returned by similarity search
type RetrievedChunk struct {
	Chunk
	Similarity float32 `json:"similarity"`
}
