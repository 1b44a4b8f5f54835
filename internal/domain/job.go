package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JobStatus represents the lifecycle status of a generation job.
// Values include JobStatusQueued, JobStatusRunning, JobStatusCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further mutation of the job record occurs.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JSONMap is a custom type for storing loosely structured JSON objects in the database.
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JSONMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// GenerationJob is the transient execution record of one music-generation
// request. It is created by the admission gate, mutated only by the job
// executor, read by the progress stream, and expires from the store after a
// fixed TTL regardless of terminal state. The song row and stored audio are
// the system of record for completed work, not this row.
type GenerationJob struct {
	JobID     string    `gorm:"type:text;primaryKey" json:"job_id"`
	UserID    string    `gorm:"type:text;not null;index" json:"user_id"`
	Status    JobStatus `gorm:"type:text;default:queued" json:"status"`
	Progress  int       `gorm:"default:0" json:"progress"`
	Message   string    `gorm:"type:text" json:"message"`
	Payload   JSONMap   `gorm:"type:text" json:"payload"`
	Result    JSONMap   `gorm:"type:text" json:"result"`
	Error     string    `gorm:"type:text" json:"error,omitempty"`
	ExpiresAt time.Time `gorm:"index" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName returns the database table name for GenerationJob.
func (GenerationJob) TableName() string {
	return "generation_jobs"
}

// Expired reports whether the record is past its TTL at the given instant.
func (j *GenerationJob) Expired(now time.Time) bool {
	return now.After(j.ExpiresAt)
}
