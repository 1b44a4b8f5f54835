// Package service holds the web-process side of the generation pipeline:
// the admission gate that validates, debits and enqueues, and the progress
// stream that follows a job's state store record to the client.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kaili/songforge/internal/domain"
	"github.com/kaili/songforge/internal/jobstate"
	"github.com/kaili/songforge/internal/logger"
	"github.com/kaili/songforge/internal/queue"
	"github.com/kaili/songforge/internal/repository"
)

// Sentinel errors mapped to response codes by the handler layer.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// Enqueuer hands an admitted job to the work queue. Satisfied by
// *queue.Client.
type Enqueuer interface {
	EnqueueGeneration(ctx context.Context, args queue.GenerationArgs) error
}

// GenerationService is the admission gate: synchronous validation, credit
// debit, job-record creation and enqueue.
type GenerationService struct {
	users *repository.UserRepository
	store *jobstate.Store
	queue Enqueuer
	log   *logger.Logger
}

// NewGenerationService creates the admission gate.
func NewGenerationService(users *repository.UserRepository, store *jobstate.Store, enqueuer Enqueuer, log *logger.Logger) *GenerationService {
	if log == nil {
		log = logger.Default()
	}
	return &GenerationService{users: users, store: store, queue: enqueuer, log: log}
}

// SubmitInput is one generation request.
type SubmitInput struct {
	UserID   string
	Prompt   string
	Lyrics   string
	Duration int
	Title    string
}

// SubmitOutput locates the created job and its event stream.
type SubmitOutput struct {
	JobID     string `json:"job_id"`
	EventsURL string `json:"events_url"`
}

// Submit validates the request, debits one credit, creates the job record
// in the queued state and enqueues it for a worker. Each call creates a new
// job and spends one credit; retried submissions are not deduplicated. The
// credit is not restored if the job later fails.
func (s *GenerationService) Submit(ctx context.Context, in SubmitInput) (*SubmitOutput, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidInput)
	}
	if in.Duration < 1 || in.Duration > 300 {
		return nil, fmt.Errorf("%w: duration out of range (1-300)", ErrInvalidInput)
	}

	if err := s.users.DebitCredits(ctx, in.UserID, 1); err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			return nil, fmt.Errorf("%w: insufficient credits", ErrQuotaExceeded)
		}
		return nil, fmt.Errorf("failed to debit credits: %w", err)
	}

	jobID := uuid.New().String()
	payload := domain.JSONMap{
		"prompt":   prompt,
		"duration": in.Duration,
	}
	if in.Lyrics != "" {
		payload["lyrics"] = in.Lyrics
	}
	if in.Title != "" {
		payload["title"] = in.Title
	}
	if err := s.store.Init(ctx, jobID, in.UserID, payload); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.queue.EnqueueGeneration(ctx, queue.GenerationArgs{
		JobID:    jobID,
		UserID:   in.UserID,
		Prompt:   prompt,
		Lyrics:   in.Lyrics,
		Duration: in.Duration,
		Title:    in.Title,
	}); err != nil {
		// The credit is already spent and the record exists in queued state;
		// there is deliberately no distributed transaction spanning the two.
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.log.WithFields(logger.Fields{
		logger.FieldJobID:  jobID,
		logger.FieldUserID: in.UserID,
	}).Info("Generation job admitted")

	return &SubmitOutput{
		JobID:     jobID,
		EventsURL: "/api/v1/generate/events/" + jobID,
	}, nil
}
