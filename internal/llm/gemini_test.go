package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/temirov/news-digest/internal/news"
	"github.com/temirov/news-digest/internal/pipeline"
)

func TestGeminiRequiresAPIKey(t *testing.T) {
	client := Gemini{APIKeySetting: "GEMINI_API_KEY", DefaultModel: "gemini-test"}
	_, err := client.Chat(context.Background(), pipeline.LLMRequest{UserPrompt: "hello"})

	var configurationErr *pipeline.ConfigurationError
	if !errors.As(err, &configurationErr) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if configurationErr.Setting != "GEMINI_API_KEY" {
		t.Fatalf("unexpected setting %q", configurationErr.Setting)
	}
}

func TestGeminiConfigureAppliesRequest(t *testing.T) {
	client := Gemini{DefaultTemp: 0.4, DefaultTokens: 256}
	model := &genai.GenerativeModel{}

	client.configure(model, pipeline.LLMRequest{
		SystemPrompt: " be brief ",
		MaxTokens:    512,
		JSONSchema:   news.ItemsSchema,
	})

	if model.SystemInstruction == nil || len(model.SystemInstruction.Parts) != 1 {
		t.Fatalf("expected system instruction, got %+v", model.SystemInstruction)
	}
	if text, _ := model.SystemInstruction.Parts[0].(genai.Text); text != "be brief" {
		t.Fatalf("unexpected system instruction %q", text)
	}
	if model.Temperature == nil || *model.Temperature != float32(0.4) {
		t.Fatalf("expected default temperature, got %v", model.Temperature)
	}
	if model.MaxOutputTokens == nil || *model.MaxOutputTokens != 512 {
		t.Fatalf("expected request tokens, got %v", model.MaxOutputTokens)
	}
	if model.ResponseMIMEType != jsonMIMEType {
		t.Fatalf("expected json mime type, got %q", model.ResponseMIMEType)
	}
}

func TestGeminiConfigureLeavesDefaults(t *testing.T) {
	model := &genai.GenerativeModel{}
	Gemini{}.configure(model, pipeline.LLMRequest{UserPrompt: "hello"})

	if model.SystemInstruction != nil || model.Temperature != nil || model.MaxOutputTokens != nil {
		t.Fatalf("expected untouched model, got %+v", model)
	}
	if model.ResponseMIMEType != "" {
		t.Fatalf("expected no mime type, got %q", model.ResponseMIMEType)
	}
}

func TestResponseText(t *testing.T) {
	testCases := []struct {
		name     string
		response *genai.GenerateContentResponse
		want     string
		wantErr  bool
	}{
		{name: "nil response", wantErr: true},
		{name: "no candidates", response: &genai.GenerateContentResponse{}, wantErr: true},
		{
			name: "blocked prompt",
			response: &genai.GenerateContentResponse{
				PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
			},
			wantErr: true,
		},
		{
			name: "joins text parts",
			response: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: &genai.Content{Parts: []genai.Part{genai.Text(" [ "), genai.Text("] ")}}},
				},
			},
			want: "[\n]",
		},
		{
			name: "skips empty candidates",
			response: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{},
					{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"items":[]}`)}}},
				},
			},
			want: `{"items":[]}`,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got, err := responseText(testCase.response)
			if testCase.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != testCase.want {
				t.Fatalf("expected %q, got %q", testCase.want, got)
			}
		})
	}
}
