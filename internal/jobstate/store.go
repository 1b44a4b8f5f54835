// Package jobstate implements the TTL-bounded state store shared between the
// admission gate, the job executor, and the progress stream. Every write
// refreshes the record's TTL and republishes the merged record, so a stream
// opened at any point observes the latest state without waiting for the next
// mutation.
package jobstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kaili/songforge/internal/domain"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a job record does not exist or has expired.
var ErrNotFound = errors.New("job not found")

// UpdatePatch is a partial mutation of a job record. Nil fields are
// preserved from the stored record.
type UpdatePatch struct {
	Status   *domain.JobStatus
	Progress *int
	Message  *string
	Result   domain.JSONMap
	Error    *string
}

// Store holds one record per generation job in the database and notifies
// in-process subscribers on every write. Emission and storage happen under
// one mutex so subscribers never observe writes out of order relative to
// storage.
type Store struct {
	db       *gorm.DB
	ttl      time.Duration
	notifier *notifier

	mu sync.Mutex

	// now is swappable for TTL tests
	now func() time.Time
}

// New creates a Store with the given record TTL.
func New(db *gorm.DB, ttl time.Duration) *Store {
	return &Store{
		db:       db,
		ttl:      ttl,
		notifier: newNotifier(),
		now:      time.Now,
	}
}

// Init creates the job record in the queued state and immediately emits it,
// so a stream opened right after submission gets an initial frame without
// waiting for the first executor update.
func (s *Store) Init(ctx context.Context, jobID, userID string, payload domain.JSONMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &domain.GenerationJob{
		JobID:     jobID,
		UserID:    userID,
		Status:    domain.JobStatusQueued,
		Progress:  0,
		Message:   "queued",
		Payload:   payload,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}

	s.notifier.publish(job)
	return nil
}

// Update merges the patch over the stored record, refreshes the TTL, and
// emits the merged record. Updating a missing or expired record returns
// ErrNotFound.
func (s *Store) Update(ctx context.Context, jobID string, patch UpdatePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var merged *domain.GenerationJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job domain.GenerationJob
		if err := tx.First(&job, "job_id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to read job record: %w", err)
		}
		if job.Expired(s.now()) {
			return ErrNotFound
		}

		if patch.Status != nil {
			job.Status = *patch.Status
		}
		if patch.Progress != nil {
			job.Progress = *patch.Progress
		}
		if patch.Message != nil {
			job.Message = *patch.Message
		}
		if patch.Result != nil {
			job.Result = patch.Result
		}
		if patch.Error != nil {
			job.Error = *patch.Error
		}
		job.ExpiresAt = s.now().Add(s.ttl)

		if err := tx.Save(&job).Error; err != nil {
			return fmt.Errorf("failed to store job record: %w", err)
		}
		merged = &job
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.publish(merged)
	return nil
}

// Get returns the current record or ErrNotFound once the TTL has elapsed.
// Expired rows are lazily deleted.
func (s *Store) Get(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	if err := s.db.WithContext(ctx).First(&job, "job_id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}
	if job.Expired(s.now()) {
		s.db.WithContext(ctx).Delete(&domain.GenerationJob{}, "job_id = ?", jobID)
		return nil, ErrNotFound
	}
	return &job, nil
}

// PurgeExpired removes all records past their TTL and returns how many rows
// were deleted. The worker runs this on a janitor ticker.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&domain.GenerationJob{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge expired job records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Subscribe registers an in-process listener for a job's record emissions.
// The returned cancel function must be called to release the subscription.
// Cross-process consumers poll Get instead; the channel only accelerates
// delivery when writer and reader share a process.
func (s *Store) Subscribe(jobID string) (<-chan *domain.GenerationJob, func()) {
	return s.notifier.subscribe(jobID)
}
