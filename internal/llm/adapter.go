package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/temirov/news-digest/internal/pipeline"
)

const (
	systemRole             = "system"
	userRole               = "user"
	jsonSchemaResponseType = "json_schema"
	defaultSchemaName      = "response"
)

// Adapter adapts pipeline.LLMRequest to the OpenAI-compatible HTTP client.
type Adapter struct {
	Client              Client
	DefaultModel        string
	DefaultTemp         float64
	DefaultTokens       int
	SupportsTemperature bool
}

func (a Adapter) Chat(ctx context.Context, req pipeline.LLMRequest) (pipeline.LLMResponse, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = a.DefaultModel
	}

	completionRequest := ChatCompletionRequest{
		Model: model,
		Messages: []ChatMessage{
			{Role: systemRole, Content: strings.TrimSpace(req.SystemPrompt)},
			{Role: userRole, Content: strings.TrimSpace(req.UserPrompt)},
		},
		MaxCompletionTokens: chooseInt(req.MaxTokens, a.DefaultTokens),
	}

	// Models that only accept their default temperature reject the field entirely.
	if a.SupportsTemperature {
		resolvedTemp := chooseFloat(req.Temperature, a.DefaultTemp)
		if resolvedTemp > 0 {
			completionRequest.Temperature = &resolvedTemp
		}
	}

	if len(req.JSONSchema) > 0 {
		schemaName := strings.TrimSpace(req.SchemaName)
		if schemaName == "" {
			schemaName = defaultSchemaName
		}
		completionRequest.ResponseFormat = &responseFormat{
			Type: jsonSchemaResponseType,
			JSONSchema: &jsonSchemaWrapper{
				Name:   schemaName,
				Schema: json.RawMessage(req.JSONSchema),
				Strict: true,
			},
		}
	}

	out, err := a.Client.CreateChatCompletion(ctx, completionRequest)
	if err != nil {
		return pipeline.LLMResponse{}, err
	}
	return pipeline.LLMResponse{RawText: out}, nil
}

func chooseInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

func chooseFloat(a, b float64) float64 {
	if a > 0 {
		return a
	}
	return b
}
