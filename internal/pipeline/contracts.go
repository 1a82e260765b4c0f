package pipeline

import (
	"context"

	"github.com/temirov/news-digest/internal/news"
)

// StageID names one step of a pipeline.
type StageID string

const (
	StageFetch     StageID = "fetch"
	StageSummarize StageID = "summarize"
	StageNotify    StageID = "notify"
	StageLog       StageID = "log"
)

// Stage describes one step: the role performing it, the tool it may call and the
// shapes it consumes and produces. Tool is empty for pure language transforms.
type Stage struct {
	ID     StageID
	Role   string
	Tool   string
	Input  string
	Output string
}

type Pipeline interface {
	Name() string
	Stages() []Stage
	Perform(ctx context.Context, stage Stage, state State) (Output, error)
}

// Receipt is the confirmation a side-effecting tool returned.
type Receipt struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// Output is what one stage hands forward.
type Output struct {
	Stage   StageID
	Items   []news.Item
	Raw     map[string]any
	Text    string
	Receipt *Receipt
}

// Report is the outcome of a successful run.
type Report struct {
	RunID   string
	Topic   news.Topic
	Outputs []Output
	Final   Output
}

type LLMClient interface {
	Chat(ctx context.Context, request LLMRequest) (LLMResponse, error)
}

type LLMRequest struct {
	SystemPrompt string
	UserPrompt   string
	JSONSchema   []byte
	SchemaName   string
	MaxTokens    int
	Temperature  float64
	Model        string
}

type LLMResponse struct {
	RawText string
}
