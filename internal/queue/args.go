// Package queue wires generation jobs through River, the Postgres-backed
// work queue. The web process inserts jobs; worker processes consume them.
// Failed generations are never retried automatically (MaxAttempts 1).
package queue

import "github.com/riverqueue/river"

const (
	// QueueGeneration is the River queue music generation jobs run on.
	QueueGeneration = "generation"

	// MaxJobRetries is 1: a failed generation surfaces to the user and is
	// not re-attempted behind their back.
	MaxJobRetries = 1

	// JobKind identifies generation jobs in the river_job table.
	JobKind = "music_generation"
)

// GenerationArgs is the payload stored in river_job.args as JSON.
type GenerationArgs struct {
	JobID    string `json:"job_id"`
	UserID   string `json:"user_id"`
	Prompt   string `json:"prompt"`
	Lyrics   string `json:"lyrics,omitempty"`
	Duration int    `json:"duration"`
	Title    string `json:"title,omitempty"`
}

// Kind returns the job kind for River registration.
func (GenerationArgs) Kind() string {
	return JobKind
}

// InsertOpts returns the default insert options for this job type.
func (GenerationArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueGeneration,
		MaxAttempts: MaxJobRetries,
	}
}
