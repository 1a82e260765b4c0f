package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/temirov/news-digest/internal/news"
	"github.com/temirov/news-digest/internal/pipeline"
)

func recordingServer(t *testing.T, received *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if err := json.NewDecoder(request.Body).Decode(received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"items\":[]}"},"finish_reason":"stop"}]}`))
	}))
}

func TestAdapterSetsJSONSchemaResponseFormat(t *testing.T) {
	var received map[string]any
	server := recordingServer(t, &received)
	defer server.Close()

	adapter := Adapter{
		Client:       Client{HTTPBaseURL: server.URL, APIKey: "test"},
		DefaultModel: "gpt-test",
	}

	resp, err := adapter.Chat(context.Background(), pipeline.LLMRequest{
		SystemPrompt: "system",
		UserPrompt:   "user",
		MaxTokens:    128,
		JSONSchema:   news.ItemsSchema,
		SchemaName:   news.ItemsSchemaName,
	})
	if err != nil {
		t.Fatalf("adapter chat: %v", err)
	}
	if resp.RawText != `{"items":[]}` {
		t.Fatalf("unexpected response %q", resp.RawText)
	}

	if received["model"] != "gpt-test" {
		t.Fatalf("expected default model, got %v", received["model"])
	}
	if received["max_completion_tokens"] != float64(128) {
		t.Fatalf("unexpected max tokens %v", received["max_completion_tokens"])
	}
	rf, ok := received["response_format"].(map[string]any)
	if !ok {
		t.Fatalf("expected response_format in request, got %v", received["response_format"])
	}
	if rf["type"] != "json_schema" {
		t.Fatalf("expected type json_schema, got %v", rf["type"])
	}
	schemaPayload, ok := rf["json_schema"].(map[string]any)
	if !ok {
		t.Fatalf("expected json_schema payload, got %v", rf["json_schema"])
	}
	if schemaPayload["name"] != news.ItemsSchemaName {
		t.Fatalf("unexpected schema name: %v", schemaPayload["name"])
	}
}

func TestAdapterPlainRequest(t *testing.T) {
	var received map[string]any
	server := recordingServer(t, &received)
	defer server.Close()

	adapter := Adapter{
		Client:              Client{HTTPBaseURL: server.URL, APIKey: "test"},
		DefaultModel:        "gpt-test",
		DefaultTemp:         0.2,
		DefaultTokens:       64,
		SupportsTemperature: true,
	}
	if _, err := adapter.Chat(context.Background(), pipeline.LLMRequest{UserPrompt: "hello", Model: "gpt-override"}); err != nil {
		t.Fatalf("adapter chat: %v", err)
	}

	if _, present := received["response_format"]; present {
		t.Fatalf("expected no response_format without a schema")
	}
	if received["model"] != "gpt-override" {
		t.Fatalf("expected request model to win, got %v", received["model"])
	}
	if received["temperature"] != 0.2 {
		t.Fatalf("expected default temperature, got %v", received["temperature"])
	}
	if received["max_completion_tokens"] != float64(64) {
		t.Fatalf("expected default tokens, got %v", received["max_completion_tokens"])
	}
	messages, _ := received["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", messages)
	}
}

func TestAdapterOmitsTemperatureWhenUnsupported(t *testing.T) {
	var received map[string]any
	server := recordingServer(t, &received)
	defer server.Close()

	adapter := Adapter{Client: Client{HTTPBaseURL: server.URL, APIKey: "test"}, DefaultTemp: 0.7}
	if _, err := adapter.Chat(context.Background(), pipeline.LLMRequest{UserPrompt: "hello"}); err != nil {
		t.Fatalf("adapter chat: %v", err)
	}
	if _, present := received["temperature"]; present {
		t.Fatalf("expected temperature to be omitted")
	}
}
