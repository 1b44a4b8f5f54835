package queue

import (
	"context"
	"time"

	"github.com/riverqueue/river"

	"github.com/kaili/songforge/internal/executor"
)

// WorkTimeout bounds one generation end-to-end, including model inference
// and artifact uploads.
const WorkTimeout = 15 * time.Minute

// GenerationWorker runs one generation job through the executor. River
// delivers a job to exactly one worker at a time; the executor's engine
// handle is initialized once per process and jobs run serially per queue
// configuration.
type GenerationWorker struct {
	river.WorkerDefaults[GenerationArgs]
	exec *executor.Executor
}

// NewGenerationWorker creates the worker around a per-process executor.
func NewGenerationWorker(exec *executor.Executor) *GenerationWorker {
	return &GenerationWorker{exec: exec}
}

// Timeout returns the per-job timeout.
func (w *GenerationWorker) Timeout(*river.Job[GenerationArgs]) time.Duration {
	return WorkTimeout
}

// Work runs the generation. The executor records the terminal job state in
// the state store itself; the returned error only marks the river_job row.
func (w *GenerationWorker) Work(ctx context.Context, job *river.Job[GenerationArgs]) error {
	return w.exec.Run(ctx, executor.Job{
		JobID:    job.Args.JobID,
		UserID:   job.Args.UserID,
		Prompt:   job.Args.Prompt,
		Lyrics:   job.Args.Lyrics,
		Duration: job.Args.Duration,
		Title:    job.Args.Title,
	})
}
