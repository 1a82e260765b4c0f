package roles

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/news-digest/internal/pipeline"
)

const (
	systemPromptFormat = "You are the %s.\nPurpose: %s"
	backstoryFormat    = "\nBackstory: %s"
	contextHeader      = "Context from previous steps:"
	schemaHeader       = "Respond only with JSON matching this schema:"
	workerChatFormat   = "role %s: %w"
	replySchemaName    = "structured_reply"
)

// Worker pairs a role with the language model that performs its tasks.
type Worker struct {
	Role   Role
	Client pipeline.LLMClient
	Logger *zap.Logger
	Model  string
	// SchemaName labels structured replies; a generic name is used when empty.
	SchemaName string
}

// Execute sends one task to the model and returns its raw reply.
func (w Worker) Execute(ctx context.Context, description string, priorOutputs []string, schema []byte) (string, error) {
	request := pipeline.LLMRequest{
		SystemPrompt: w.systemPrompt(),
		UserPrompt:   userPrompt(description, priorOutputs, schema),
		JSONSchema:   schema,
		Model:        w.Model,
	}
	if len(schema) > 0 {
		request.SchemaName = w.SchemaName
		if request.SchemaName == "" {
			request.SchemaName = replySchemaName
		}
	}

	logger := w.logger().With(zap.String("role", w.Role.Name))
	level := w.logLevel()
	logger.Check(level, "prompt").Write(zap.String("system", request.SystemPrompt), zap.String("user", request.UserPrompt))

	response, err := w.Client.Chat(ctx, request)
	if err != nil {
		return "", fmt.Errorf(workerChatFormat, w.Role.Name, err)
	}
	logger.Check(level, "response").Write(zap.String("text", response.RawText))
	return response.RawText, nil
}

// Record logs a task the role completed without consulting the model.
func (w Worker) Record(description string, fields ...zap.Field) {
	fields = append([]zap.Field{zap.String("task", strings.TrimSpace(description))}, fields...)
	w.logger().With(zap.String("role", w.Role.Name)).Check(w.logLevel(), "task").Write(fields...)
}

func (w Worker) systemPrompt() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, systemPromptFormat, w.Role.Name, strings.TrimSpace(w.Role.Purpose))
	if backstory := strings.TrimSpace(w.Role.Backstory); backstory != "" {
		fmt.Fprintf(&builder, backstoryFormat, backstory)
	}
	return builder.String()
}

func userPrompt(description string, priorOutputs []string, schema []byte) string {
	sections := []string{strings.TrimSpace(description)}
	if len(priorOutputs) > 0 {
		sections = append(sections, contextHeader+"\n"+strings.Join(priorOutputs, "\n\n"))
	}
	if len(schema) > 0 {
		sections = append(sections, schemaHeader+"\n"+string(schema))
	}
	return strings.Join(sections, "\n\n")
}

func (w Worker) logLevel() zapcore.Level {
	if w.Role.Verbose {
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}

func (w Worker) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}
