package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/temirov/news-digest/internal/pipeline"
)

const (
	jsonMIMEType               = "application/json"
	geminiClientErrorFormat    = "gemini client: %w"
	geminiGenerateErrorFormat  = "gemini generate: %w"
	geminiBlockedErrorFormat   = "gemini prompt blocked: %s"
	geminiNoCandidatesErrorMsg = "gemini returned no candidates"
)

var errGeminiNoCandidates = errors.New(geminiNoCandidatesErrorMsg)

// Gemini implements pipeline.LLMClient on top of the Google generative AI SDK.
type Gemini struct {
	APIKey        string
	APIKeySetting string
	Endpoint      string
	DefaultModel  string
	DefaultTemp   float64
	DefaultTokens int
}

func (g Gemini) Chat(ctx context.Context, req pipeline.LLMRequest) (pipeline.LLMResponse, error) {
	if strings.TrimSpace(g.APIKey) == "" {
		return pipeline.LLMResponse{}, pipeline.MissingSetting(g.APIKeySetting)
	}

	clientOptions := []option.ClientOption{option.WithAPIKey(g.APIKey)}
	if g.Endpoint != "" {
		clientOptions = append(clientOptions, option.WithEndpoint(g.Endpoint))
	}
	client, clientErr := genai.NewClient(ctx, clientOptions...)
	if clientErr != nil {
		return pipeline.LLMResponse{}, fmt.Errorf(geminiClientErrorFormat, clientErr)
	}
	defer func() { _ = client.Close() }()

	modelName := strings.TrimSpace(req.Model)
	if modelName == "" {
		modelName = g.DefaultModel
	}
	model := client.GenerativeModel(modelName)
	g.configure(model, req)

	response, generateErr := model.GenerateContent(ctx, genai.Text(strings.TrimSpace(req.UserPrompt)))
	if generateErr != nil {
		return pipeline.LLMResponse{}, fmt.Errorf(geminiGenerateErrorFormat, generateErr)
	}
	text, textErr := responseText(response)
	if textErr != nil {
		return pipeline.LLMResponse{}, textErr
	}
	return pipeline.LLMResponse{RawText: text}, nil
}

func (g Gemini) configure(model *genai.GenerativeModel, req pipeline.LLMRequest) {
	if systemPrompt := strings.TrimSpace(req.SystemPrompt); systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	if temperature := chooseFloat(req.Temperature, g.DefaultTemp); temperature > 0 {
		model.SetTemperature(float32(temperature))
	}
	if maxTokens := chooseInt(req.MaxTokens, g.DefaultTokens); maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	// The schema itself travels in the prompt; Gemini only needs to be told to answer in JSON.
	if len(req.JSONSchema) > 0 {
		model.ResponseMIMEType = jsonMIMEType
	}
}

// responseText joins the text parts of the first candidate that has any.
func responseText(response *genai.GenerateContentResponse) (string, error) {
	if response == nil {
		return "", errGeminiNoCandidates
	}
	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf(geminiBlockedErrorFormat, response.PromptFeedback.BlockReason.String())
	}
	if len(response.Candidates) == 0 {
		return "", errGeminiNoCandidates
	}
	for _, candidate := range response.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		fragments := make([]string, 0, len(candidate.Content.Parts))
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				if trimmed := strings.TrimSpace(string(text)); trimmed != "" {
					fragments = append(fragments, trimmed)
				}
			}
		}
		if len(fragments) > 0 {
			return strings.Join(fragments, "\n"), nil
		}
	}
	return "", nil
}
