package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/news-digest/internal/news"
)

const (
	emptyPipelineErrorFormat = "pipeline %s has no stages"
	unnamedStageErrorFormat  = "pipeline %s: stage %d has no id"
)

// Runner executes the stages of a pipeline strictly in order.
type Runner struct {
	Logger   *zap.Logger
	NewRunID func() string
}

// Run performs every stage once, feeding each stage the outputs recorded so far.
// The first failing stage aborts the run with an *AbortError; nothing is retried and
// side effects already committed by earlier stages stay in place.
func (r Runner) Run(ctx context.Context, p Pipeline, topic news.Topic) (Report, error) {
	stages := p.Stages()
	if len(stages) == 0 {
		return Report{}, fmt.Errorf(emptyPipelineErrorFormat, p.Name())
	}
	for index, stage := range stages {
		if stage.ID == "" {
			return Report{}, fmt.Errorf(unnamedStageErrorFormat, p.Name(), index)
		}
	}

	runID := r.runID()
	logger := r.logger().With(zap.String("run_id", runID), zap.String("pipeline", p.Name()))
	logger.Info("run started",
		zap.String("topic", topic.Topic),
		zap.String("current_year", topic.CurrentYear),
		zap.Any("stages", stageIDs(stages)),
	)

	state := State{RunID: runID, Topic: topic}
	for _, stage := range stages {
		stageLogger := logger.With(zap.String("stage", string(stage.ID)), zap.String("role", stage.Role))
		stageLogger.Info("stage started", zap.String("tool", stage.Tool))

		output, stageErr := p.Perform(ctx, stage, state)
		if stageErr != nil {
			stageLogger.Error("stage failed", zap.Error(stageErr))
			return Report{}, &AbortError{RunID: runID, Stage: stage.ID, Err: stageErr}
		}
		output.Stage = stage.ID
		state.record(output)

		fields := []zap.Field{zap.Int("items", len(output.Items))}
		if output.Receipt != nil {
			fields = append(fields, zap.String("status", output.Receipt.Status), zap.Int64("count", output.Receipt.Count))
		}
		stageLogger.Info("stage finished", fields...)
	}

	final, _ := state.Last()
	logger.Info("run finished")
	return Report{
		RunID:   runID,
		Topic:   topic,
		Outputs: state.Outputs(),
		Final:   final,
	}, nil
}

// FailedStage reports the stage recorded in an *AbortError anywhere in err's chain.
func FailedStage(err error) (StageID, bool) {
	var abortErr *AbortError
	if errors.As(err, &abortErr) {
		return abortErr.Stage, true
	}
	return "", false
}

func (r Runner) runID() string {
	if r.NewRunID != nil {
		return r.NewRunID()
	}
	return uuid.NewString()
}

func (r Runner) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}
