package tools

import (
	"strings"

	"github.com/temirov/news-digest/internal/news"
	"github.com/temirov/news-digest/internal/pipeline"
)

const emptyFieldReason = "is empty"

// validateItems checks the fields a tool needs before any request is built.
func validateItems(items []news.Item, requireDate bool) error {
	for index, item := range items {
		if strings.TrimSpace(item.Headline) == "" {
			return &pipeline.ValidationError{Field: "headline", Index: index, Reason: emptyFieldReason}
		}
		if strings.TrimSpace(item.URL) == "" {
			return &pipeline.ValidationError{Field: "url", Index: index, Reason: emptyFieldReason}
		}
		if requireDate && strings.TrimSpace(item.Date) == "" {
			return &pipeline.ValidationError{Field: "date", Index: index, Reason: emptyFieldReason}
		}
	}
	return nil
}
