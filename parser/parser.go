package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-psdeals/models"
)

// ValidateRow ensures a result row carries the fields an export needs.
func ValidateRow(row *models.SearchResultRow) error {
	if row == nil {
		return fmt.Errorf("row is nil")
	}
	if strings.TrimSpace(row.Title) == "" {
		return fmt.Errorf("row missing title")
	}
	return nil
}

// NormalizeText trims the text and collapses internal runs of whitespace,
// which the store's markup spreads across indented lines.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// DedupeKey identifies a row for de-duplication: its detail link when
// present, otherwise its title.
func DedupeKey(row *models.SearchResultRow) string {
	if link := strings.TrimSpace(row.DetailLink); link != "" {
		return link
	}
	return "title:" + NormalizeText(row.Title)
}
