package payments

import (
	"context"
	"fmt"
	"log/slog"
)

// StepPolicy decides what a failing step does to the rest of the pipeline
type StepPolicy int

const (
	// StepFatal aborts the pipeline and surfaces the error
	StepFatal StepPolicy = iota
	// StepBestEffort logs the error and moves on
	StepBestEffort
)

func (p StepPolicy) String() string {
	if p == StepBestEffort {
		return "best-effort"
	}
	return "fatal"
}

// Step is one named unit of the settlement pipeline
type Step struct {
	Name   string
	Policy StepPolicy
	Run    func(ctx context.Context) error
}

// RunSteps executes steps in order. The first fatal failure stops the run and
// is returned wrapped with the step name.
func RunSteps(ctx context.Context, logger *slog.Logger, reference string, steps []Step) error {
	for _, step := range steps {
		err := step.Run(ctx)
		if err == nil {
			continue
		}
		if step.Policy == StepFatal {
			logger.ErrorContext(ctx, "settlement step failed", "step", step.Name, "reference", reference, "err", err)
			return fmt.Errorf("%s: %w", step.Name, err)
		}
		logger.WarnContext(ctx, "best-effort settlement step failed", "step", step.Name, "reference", reference, "err", err)
	}
	return nil
}
