package loader

import (
	"fmt"
	"os"

	"github.com/liliang-cn/docqa/internal/domain"
)

func extractTXT(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	return []domain.Page{{Number: 1, Text: string(data)}}, nil
}
