package loader

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/liliang-cn/docqa/internal/domain"
)

const docxBodyPart = "word/document.xml"

var (
	docxHeaderPart = regexp.MustCompile(`^word/header[0-9]*\.xml$`)
	docxFooterPart = regexp.MustCompile(`^word/footer[0-9]*\.xml$`)
)

// extractDOCX flattens headers, the main document and footers, in that order.
// Every paragraph opens with a blank line, tabs and breaks are kept.
func extractDOCX(path string) ([]domain.Page, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open DOCX: %v", domain.ErrInvalidDocument, err)
	}
	defer zr.Close()

	var body *zip.File
	var headers, footers []*zip.File
	for _, f := range zr.File {
		switch {
		case f.Name == docxBodyPart:
			body = f
		case docxHeaderPart.MatchString(f.Name):
			headers = append(headers, f)
		case docxFooterPart.MatchString(f.Name):
			footers = append(footers, f)
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: %s not found", domain.ErrInvalidDocument, docxBodyPart)
	}

	var b strings.Builder
	parts := append(append(headers, body), footers...)
	for _, f := range parts {
		if err := writeDocxPart(&b, f); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", domain.ErrInvalidDocument, f.Name, err)
		}
	}
	return []domain.Page{{Number: 1, Text: b.String()}}, nil
}

func writeDocxPart(b *strings.Builder, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return docxText(b, rc)
}

func docxText(b *strings.Builder, r io.Reader) error {
	dec := xml.NewDecoder(r)
	inText := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			case "p":
				b.WriteString("\n\n")
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
}
