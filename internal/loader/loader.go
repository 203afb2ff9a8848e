package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/liliang-cn/docqa/internal/domain"
	"go.uber.org/zap"
)

// Extractor turns a file on disk into pages of text
type Extractor func(path string) ([]domain.Page, error)

// Loader converts uploaded bytes into a Document, dispatching on file extension
type Loader struct {
	tempDir    string
	logger     *zap.Logger
	extractors map[string]Extractor
}

// New creates a loader that stages uploads in tempDir ("" means the OS default)
func New(tempDir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		tempDir: tempDir,
		logger:  logger,
		extractors: map[string]Extractor{
			domain.FormatPDF:  extractPDF,
			domain.FormatDOCX: extractDOCX,
			domain.FormatTXT:  extractTXT,
		},
	}
}

// DetectFormat maps a filename to a supported format
func DetectFormat(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return domain.FormatPDF, nil
	case ".docx":
		return domain.FormatDOCX, nil
	case ".txt":
		return domain.FormatTXT, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
}

// Load extracts text from content. The bytes are staged in a temporary file
// that is removed before Load returns, whatever the outcome.
func (l *Loader) Load(ctx context.Context, filename string, content []byte) (*domain.Document, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	if err := checkContent(format, content); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(l.tempDir, "docqa-*."+format)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			l.logger.Warn("Failed to remove temp file", zap.String("path", tmpPath), zap.Error(err))
		}
	}()

	_, err = tmp.Write(content)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	pages, err := l.extract(format, tmpPath)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{Filename: filename, Format: format, Pages: pages}
	if strings.TrimSpace(doc.Text()) == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyDocument, filename)
	}

	l.logger.Info("Document loaded",
		zap.String("filename", filename),
		zap.String("format", format),
		zap.Int("pages", len(pages)),
		zap.Int("bytes", len(content)),
	)
	return doc, nil
}

func (l *Loader) extract(format, path string) (pages []domain.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: %s extractor panicked: %v", domain.ErrInvalidDocument, format, r)
		}
	}()
	return l.extractors[format](path)
}

// checkContent rejects uploads whose bytes contradict their extension
func checkContent(format string, content []byte) error {
	switch format {
	case domain.FormatPDF:
		if !mimetype.Detect(content).Is("application/pdf") {
			return fmt.Errorf("%w: content is not a PDF", domain.ErrUnsupportedFormat)
		}
	case domain.FormatDOCX:
		if !isZip(mimetype.Detect(content)) {
			return fmt.Errorf("%w: content is not a DOCX container", domain.ErrUnsupportedFormat)
		}
	case domain.FormatTXT:
		if !utf8.Valid(content) {
			return fmt.Errorf("%w: text is not valid UTF-8", domain.ErrInvalidDocument)
		}
	}
	return nil
}

func isZip(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}
