package queue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/kaili/songforge/internal/executor"
)

// Client wraps the River client for generation jobs.
type Client struct {
	*river.Client[pgx.Tx]
}

// NewInsertClient creates an insert-only client for the web process. It
// cannot work jobs; it only enqueues them.
func NewInsertClient(pool *pgxpool.Pool) (*Client, error) {
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create queue client: %w", err)
	}
	return &Client{Client: riverClient}, nil
}

// NewWorkerClient creates a consuming client for a worker process.
// maxWorkers defaults to 1: the heavy inference engine is loaded once per
// process and handles jobs serially, trading throughput for memory safety.
func NewWorkerClient(pool *pgxpool.Pool, exec *executor.Executor, maxWorkers int) (*Client, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewGenerationWorker(exec))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueGeneration: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create queue worker client: %w", err)
	}
	return &Client{Client: riverClient}, nil
}

// EnqueueGeneration inserts a generation job.
func (c *Client) EnqueueGeneration(ctx context.Context, args GenerationArgs) error {
	if _, err := c.Insert(ctx, args, nil); err != nil {
		return fmt.Errorf("failed to enqueue generation job: %w", err)
	}
	return nil
}
