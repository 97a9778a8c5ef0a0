package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/therealutkarshpriyadarshi/jifmaker/internal/logging"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/metrics"
	"github.com/therealutkarshpriyadarshi/jifmaker/internal/tracing"
	"github.com/therealutkarshpriyadarshi/jifmaker/pkg/models"
)

// DefaultWaitDelay bounds how long a cancelled stage may hold its output
// pipes open through child processes
const DefaultWaitDelay = 2 * time.Second

// Runner executes pipelines one stage at a time
type Runner struct {
	logger    *logging.Logger
	waitDelay time.Duration
}

// NewRunner creates a new pipeline runner
func NewRunner(logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Runner{logger: logger, waitDelay: DefaultWaitDelay}
}

// RunResult holds the stages that finished
type RunResult struct {
	Stages []models.StageResult
}

// Run executes each invocation in order and stops at the first failure.
// Temp files are removed whatever the outcome. Output written by completed
// stages is kept on failure; if ctx is cancelled the partial output is removed.
func (r *Runner) Run(ctx context.Context, pipeline models.Pipeline, outputPath string) (*RunResult, error) {
	defer r.removeTempFiles(pipeline.TempFiles)

	names := StageNames(pipeline, outputPath)
	result := &RunResult{}

	for i, inv := range pipeline.Invocations {
		stage := names[i]

		span, stageCtx := tracing.StartStageSpan(ctx, stage, inv.Executable)
		started := time.Now()

		r.logger.Debugf("running %s stage: %s", stage, inv.String())
		cmd := exec.CommandContext(stageCtx, inv.Executable, inv.Args...)
		cmd.WaitDelay = r.waitDelay
		output, err := cmd.CombinedOutput()
		elapsed := time.Since(started)

		if err != nil {
			tracing.LogError(span, err)
			tracing.FinishSpan(span)
			metrics.RecordPipelineStage(stage, "failed", elapsed.Seconds())
			r.logger.LogPipelineStage(stage, inv.String(), elapsed, err)

			if ctxErr := ctx.Err(); ctxErr != nil {
				r.removePartialOutput(outputPath)
				return result, fmt.Errorf("pipeline cancelled during %s: %w", stage, ctxErr)
			}

			if isNotFound(err) {
				return result, &ToolMissingError{Tool: inv.Executable, Err: err}
			}

			exitCode := -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				exitCode = exitErr.ExitCode()
			}

			return result, &ExecutionError{
				Stage:    stage,
				Command:  inv.String(),
				ExitCode: exitCode,
				Output:   string(output),
				Err:      err,
			}
		}

		tracing.FinishSpan(span)
		metrics.RecordPipelineStage(stage, "success", elapsed.Seconds())
		r.logger.LogPipelineStage(stage, inv.String(), elapsed, nil)

		result.Stages = append(result.Stages, models.StageResult{
			Name:     stage,
			Command:  inv.String(),
			Output:   string(output),
			Duration: elapsed,
		})
	}

	return result, nil
}

func (r *Runner) removeTempFiles(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			r.logger.Warnf("failed to remove temp file %s: %v", p, err)
		}
	}
}

func (r *Runner) removePartialOutput(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger.Warnf("failed to remove partial output %s: %v", path, err)
	}
}

// isNotFound reports whether a launch failed because the executable is missing
func isNotFound(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false
	}
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
