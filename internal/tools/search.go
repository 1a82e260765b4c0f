package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/temirov/news-digest/internal/pipeline"
)

const (
	SearchToolName        = "search"
	DefaultSearchEndpoint = "https://google.serper.dev/search"

	searchServiceName         = "search"
	searchAPIKeyHeader        = "X-API-KEY"
	defaultSearchKeySetting   = "search API key"
	searchStatusErrorFormat   = "unexpected status: %s"
	searchDecodeErrorFormat   = "decode response: %w"
	searchResponsePreviewSize = 512
)

// SearchResult is the search service response, passed on without interpretation.
type SearchResult map[string]any

// Searcher queries a Serper-compatible search API.
type Searcher struct {
	Endpoint   string
	APIKey     string
	KeySetting string
	HTTPClient *http.Client
}

func (s Searcher) Name() string { return SearchToolName }

func (s Searcher) Search(ctx context.Context, topic string) (SearchResult, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, pipeline.MissingSetting(settingName(s.KeySetting, defaultSearchKeySetting))
	}
	trimmedTopic := strings.TrimSpace(topic)
	if trimmedTopic == "" {
		return nil, &pipeline.ValidationError{Field: "topic", Index: -1, Reason: emptyFieldReason}
	}

	requestBytes, marshalErr := json.Marshal(map[string]string{"q": trimmedTopic})
	if marshalErr != nil {
		return nil, marshalErr
	}
	endpoint := strings.TrimSpace(s.Endpoint)
	if endpoint == "" {
		endpoint = DefaultSearchEndpoint
	}
	httpRequest, buildErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBytes))
	if buildErr != nil {
		return nil, pipeline.MalformedSetting("search endpoint", buildErr)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set(searchAPIKeyHeader, s.APIKey)

	httpResponse, httpErr := clientOrDefault(s.HTTPClient).Do(httpRequest)
	if httpErr != nil {
		return nil, &pipeline.TransportError{Service: searchServiceName, Err: httpErr}
	}
	defer func(closer io.ReadCloser) { _ = closer.Close() }(httpResponse.Body)

	bodyBytes, readErr := io.ReadAll(httpResponse.Body)
	if readErr != nil {
		return nil, &pipeline.TransportError{Service: searchServiceName, StatusCode: httpResponse.StatusCode, Err: readErr}
	}
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return nil, &pipeline.TransportError{
			Service:    searchServiceName,
			StatusCode: httpResponse.StatusCode,
			Err:        fmt.Errorf(searchStatusErrorFormat, preview(bodyBytes, searchResponsePreviewSize)),
		}
	}

	var result SearchResult
	if decodeErr := json.Unmarshal(bodyBytes, &result); decodeErr != nil {
		return nil, &pipeline.TransportError{Service: searchServiceName, StatusCode: httpResponse.StatusCode, Err: fmt.Errorf(searchDecodeErrorFormat, decodeErr)}
	}
	if result == nil {
		result = SearchResult{}
	}
	return result, nil
}

func clientOrDefault(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return http.DefaultClient
}

func settingName(configured string, fallback string) string {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return trimmed
	}
	return fallback
}

func preview(body []byte, limit int) string {
	runes := []rune(strings.TrimSpace(string(body)))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "…"
}
