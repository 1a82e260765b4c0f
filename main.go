package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/temirov/news-digest/cmd/newsdigest"
	"github.com/temirov/news-digest/internal/pipeline"
)

func main() {
	logger := zap.Must(zap.NewProduction())

	executionErr := newsdigest.Execute()
	if executionErr != nil {
		fields := []zap.Field{zap.Error(executionErr)}
		if stage, failed := pipeline.FailedStage(executionErr); failed {
			fields = append(fields, zap.String("stage", string(stage)))
		}
		logger.Error("command execution failed", fields...)
		_ = logger.Sync()
		os.Exit(1)
	}

	_ = logger.Sync()
}
