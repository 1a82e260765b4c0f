package news

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	itemsObjectKey          = "items"
	codeFenceMarker         = "```"
	emptyItemsPayloadError  = "items payload is empty"
	decodeItemsErrorFormat  = "decode items: %w"
	unexpectedPayloadFormat = "items payload must be a JSON array or an object with %q"
)

// Topic carries the parameters injected once at the start of a run.
type Topic struct {
	Topic       string `json:"topic"`
	CurrentYear string `json:"current_year"`
}

// Vars exposes the topic parameters as template variables.
func (topic Topic) Vars() map[string]string {
	return map[string]string{
		"topic":        topic.Topic,
		"current_year": topic.CurrentYear,
	}
}

// Item is one fetched or summarized piece of news.
type Item struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Date     string `json:"date,omitempty"`
}

// Clone returns a copy of items so downstream stages never share a backing array with upstream ones.
func Clone(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return slices.Clone(items)
}

// DecodeItems parses a model reply holding either a JSON array of items or an object with an
// "items" array. Surrounding Markdown code fences are ignored.
func DecodeItems(raw string) ([]Item, error) {
	payload := stripCodeFence(raw)
	if payload == "" {
		return nil, errors.New(emptyItemsPayloadError)
	}

	if strings.HasPrefix(payload, "[") {
		var items []Item
		if err := json.Unmarshal([]byte(payload), &items); err != nil {
			return nil, fmt.Errorf(decodeItemsErrorFormat, err)
		}
		return Clone(items), nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &wrapper); err != nil {
		return nil, fmt.Errorf(decodeItemsErrorFormat, err)
	}
	itemsPayload, ok := wrapper[itemsObjectKey]
	if !ok {
		return nil, fmt.Errorf(unexpectedPayloadFormat, itemsObjectKey)
	}
	var items []Item
	if err := json.Unmarshal(itemsPayload, &items); err != nil {
		return nil, fmt.Errorf(decodeItemsErrorFormat, err)
	}
	return Clone(items), nil
}

// EncodeItems renders items as the JSON object handed to the next worker.
func EncodeItems(items []Item) (string, error) {
	encoded, err := json.Marshal(map[string][]Item{itemsObjectKey: Clone(items)})
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, codeFenceMarker) {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, codeFenceMarker)
	if newline := strings.Index(trimmed, "\n"); newline >= 0 {
		trimmed = trimmed[newline+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), codeFenceMarker)
	return strings.TrimSpace(trimmed)
}
