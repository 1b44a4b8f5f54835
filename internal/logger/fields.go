package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the generation job ID
	FieldJobID = "job_id"

	// FieldUserID is the requesting user's ID
	FieldUserID = "user_id"

	// FieldSongID is the persisted song ID
	FieldSongID = "song_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Standard metric fields, attached at the call site for aggregation.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldProgress is the job progress percentage
	FieldProgress = "progress"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
