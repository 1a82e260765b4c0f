package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	chatCompletionsPath           = "/chat/completions"
	completionPreviewLimit        = 512
	finishReasonLength            = "length"
	httpStatusErrorFormat         = "llm http error %d: %s"
	decodeCompletionErrorFormat   = "decode chat completion: %w (body=%s)"
	noChoicesErrorFormat          = "chat completion returned no choices (body=%s)"
	truncatedCompletionFormat     = "chat completion truncated before any content (body=%s)"
	refusalErrorFormat            = "chat completion refusal: %s"
	unsupportedContentErrorFormat = "unsupported message content: %s"
)

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	HTTPBaseURL string
	APIKey      string
	HTTPClient  *http.Client
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model               string          `json:"model"`
	Messages            []ChatMessage   `json:"messages"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Temperature         *float64        `json:"temperature,omitempty"`
	ResponseFormat      *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string             `json:"type"`
	JSONSchema *jsonSchemaWrapper `json:"json_schema,omitempty"`
}

type jsonSchemaWrapper struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict,omitempty"`
}

type completionMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Refusal json.RawMessage `json:"refusal,omitempty"`
}

type completionChoice struct {
	Message      completionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type ChatCompletionResponse struct {
	Choices []completionChoice `json:"choices"`
}

// CreateChatCompletion posts one request and returns the trimmed text of the first choice.
func (c Client) CreateChatCompletion(ctx context.Context, requestPayload ChatCompletionRequest) (string, error) {
	requestBytes, marshalErr := json.Marshal(requestPayload)
	if marshalErr != nil {
		return "", marshalErr
	}
	endpoint := strings.TrimRight(c.HTTPBaseURL, "/") + chatCompletionsPath
	httpRequest, buildErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBytes))
	if buildErr != nil {
		return "", buildErr
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+c.APIKey)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	httpResponse, httpErr := httpClient.Do(httpRequest)
	if httpErr != nil {
		return "", httpErr
	}
	defer func(closer io.ReadCloser) { _ = closer.Close() }(httpResponse.Body)

	bodyBytes, readErr := io.ReadAll(httpResponse.Body)
	if readErr != nil {
		return "", readErr
	}
	bodyPreview := truncateForLog(string(bodyBytes), completionPreviewLimit)
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return "", fmt.Errorf(httpStatusErrorFormat, httpResponse.StatusCode, bodyPreview)
	}

	var completion ChatCompletionResponse
	if decodeErr := json.Unmarshal(bodyBytes, &completion); decodeErr != nil {
		return "", fmt.Errorf(decodeCompletionErrorFormat, decodeErr, bodyPreview)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf(noChoicesErrorFormat, bodyPreview)
	}

	choice := completion.Choices[0]
	content, contentErr := messageText(choice.Message)
	if contentErr != nil {
		return "", contentErr
	}
	if content == "" && strings.EqualFold(strings.TrimSpace(choice.FinishReason), finishReasonLength) {
		return "", fmt.Errorf(truncatedCompletionFormat, bodyPreview)
	}
	return content, nil
}

// messageText accepts plain string content or a list of typed text parts.
func messageText(message completionMessage) (string, error) {
	if refusal := refusalText(message.Refusal); refusal != "" {
		return "", fmt.Errorf(refusalErrorFormat, refusal)
	}
	if len(message.Content) == 0 || string(message.Content) == "null" {
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(message.Content, &asString); err == nil {
		return strings.TrimSpace(asString), nil
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(message.Content, &parts); err != nil {
		return "", fmt.Errorf(unsupportedContentErrorFormat, truncateForLog(string(message.Content), 240))
	}
	fragments := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part.Text); trimmed != "" {
			fragments = append(fragments, trimmed)
		}
	}
	return strings.Join(fragments, "\n"), nil
}

func refusalText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var refusal string
	if err := json.Unmarshal(raw, &refusal); err == nil {
		return strings.TrimSpace(refusal)
	}
	return truncateForLog(strings.TrimSpace(string(raw)), 200)
}

func truncateForLog(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
