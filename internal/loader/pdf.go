package loader

import (
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/liliang-cn/docqa/internal/domain"
)

func extractPDF(path string) ([]domain.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open PDF: %v", domain.ErrInvalidDocument, err)
	}
	defer f.Close()

	var pages []domain.Page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read page %d: %v", domain.ErrInvalidDocument, i, err)
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return pages, nil
}
