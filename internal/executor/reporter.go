package executor

import (
	"context"

	"github.com/kaili/songforge/internal/domain"
	"github.com/kaili/songforge/internal/jobstate"
	"github.com/kaili/songforge/internal/logger"
)

// reporter publishes running-state progress for one job. Reported values are
// monotonic: a value below the last one is clamped upward, so observers
// never see progress regress no matter how the stages interleave.
type reporter struct {
	store *jobstate.Store
	jobID string
	last  int
}

func newReporter(store *jobstate.Store, jobID string) *reporter {
	return &reporter{store: store, jobID: jobID}
}

func (r *reporter) report(ctx context.Context, pct int, message string) {
	if pct < r.last {
		pct = r.last
	}
	r.last = pct

	status := domain.JobStatusRunning
	if err := r.store.Update(ctx, r.jobID, jobstate.UpdatePatch{
		Status:   &status,
		Progress: &pct,
		Message:  &message,
	}); err != nil {
		// A missing record here means the job outlived its TTL mid-run.
		// Keep generating; the artifact still gets persisted.
		logger.CtxWarn(ctx, "Failed to publish progress: %v", err)
	}
}
