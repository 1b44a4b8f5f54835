package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/kaili/songforge/internal/jobstate"
	"github.com/kaili/songforge/internal/logger"
)

// SSE event names emitted by the stream.
const (
	EventProgress = "progress"
	EventError    = "error"
)

// Frame is one server-sent event. Data is either a job record snapshot
// (progress) or a {"detail": ...} object (error).
type Frame struct {
	Event string
	Data  any
}

// StreamService follows a job's state store record and delivers each change
// to one client until the job reaches a terminal state, the client leaves,
// or the stream times out. It combines a poll ticker with the store's
// in-process notifications, so it works whether or not the writer shares
// the process.
type StreamService struct {
	store        *jobstate.Store
	pollInterval time.Duration
	timeout      time.Duration
	log          *logger.Logger
}

// NewStreamService creates the stream service.
func NewStreamService(store *jobstate.Store, pollInterval, timeout time.Duration, log *logger.Logger) *StreamService {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if log == nil {
		log = logger.Default()
	}
	return &StreamService{store: store, pollInterval: pollInterval, timeout: timeout, log: log}
}

// Stream emits frames for the given job via send until a terminal condition.
// send returns false when the client is gone.
//
// The first observation is always emitted; afterwards identical consecutive
// snapshots are suppressed. Ownership is re-checked on every read, and a
// job owned by someone else is reported exactly like a missing one.
func (s *StreamService) Stream(ctx context.Context, userID, jobID string, send func(Frame) bool) {
	updates, cancel := s.store.Subscribe(jobID)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(s.timeout)
	defer deadline.Stop()

	var last []byte
	first := true

	for {
		job, err := s.store.Get(ctx, jobID)
		if err != nil {
			if errors.Is(err, jobstate.ErrNotFound) {
				send(errorFrame("job not found"))
			} else {
				s.log.WithField(logger.FieldJobID, jobID).Errorf("Stream failed to read job state: %v", err)
				send(errorFrame("failed to read job state"))
			}
			return
		}
		if job.UserID != userID {
			// Deliberately indistinguishable from a missing job.
			send(errorFrame("job not found"))
			return
		}

		snapshot, err := json.Marshal(job)
		if err != nil {
			send(errorFrame("failed to read job state"))
			return
		}
		if first || !bytes.Equal(snapshot, last) {
			if !send(Frame{Event: EventProgress, Data: json.RawMessage(snapshot)}) {
				return
			}
			last = snapshot
			first = false
		}

		if job.Status.Terminal() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			send(errorFrame("stream timeout"))
			return
		case <-ticker.C:
		case <-updates:
			// A write landed; loop around and re-read the stored record.
		}
	}
}

func errorFrame(detail string) Frame {
	return Frame{Event: EventError, Data: map[string]string{"detail": detail}}
}
