package pipeline

import (
	"slices"

	"github.com/temirov/news-digest/internal/news"
)

// State is the accumulated output of the stages that already ran in one run.
// Stages receive it by value and read copies; only the Runner appends to it.
type State struct {
	RunID   string
	Topic   news.Topic
	outputs []Output
}

func (s State) Outputs() []Output {
	copies := make([]Output, 0, len(s.outputs))
	for _, output := range s.outputs {
		copies = append(copies, detach(output))
	}
	return copies
}

// Last returns the output of the most recent stage.
func (s State) Last() (Output, bool) {
	if len(s.outputs) == 0 {
		return Output{}, false
	}
	return detach(s.outputs[len(s.outputs)-1]), true
}

// Items returns the item collection of the most recent stage that produced one.
func (s State) Items() []news.Item {
	for index := len(s.outputs) - 1; index >= 0; index-- {
		if s.outputs[index].Items != nil {
			return news.Clone(s.outputs[index].Items)
		}
	}
	return []news.Item{}
}

func (s *State) record(output Output) {
	s.outputs = append(s.outputs, detach(output))
}

func detach(output Output) Output {
	if output.Items != nil {
		output.Items = news.Clone(output.Items)
	}
	if output.Receipt != nil {
		receipt := *output.Receipt
		output.Receipt = &receipt
	}
	if output.Raw != nil {
		output.Raw = copyDocument(output.Raw)
	}
	return output
}

// copyDocument deep-copies a decoded JSON object.
func copyDocument(document map[string]any) map[string]any {
	copied := make(map[string]any, len(document))
	for key, value := range document {
		copied[key] = copyValue(value)
	}
	return copied
}

func copyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return copyDocument(typed)
	case []any:
		copied := make([]any, len(typed))
		for index, element := range typed {
			copied[index] = copyValue(element)
		}
		return copied
	default:
		return value
	}
}

// stageIDs lists stage identifiers in execution order.
func stageIDs(stages []Stage) []StageID {
	identifiers := make([]StageID, 0, len(stages))
	for _, stage := range stages {
		identifiers = append(identifiers, stage.ID)
	}
	return slices.Clip(identifiers)
}
