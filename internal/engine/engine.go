// Package engine produces audio for a generation job through an ordered
// adapter chain: a primary inference engine when its runtime is available,
// otherwise a deterministic placeholder synthesizer. Unavailability of the
// primary engine triggers the fallback; a runtime failure of an initialized
// engine never does.
package engine

import "context"

// Params is the fixed parameter set handed to a generator. Adapters receive
// exactly this struct; no capability probing happens at the call site.
type Params struct {
	Prompt     string
	Lyrics     string
	Duration   int // seconds
	SampleRate int
}

// Result is the produced audio.
type Result struct {
	WAVBytes []byte
	BPM      int
}

// ProgressFunc receives progress on the generator's internal 0-100 scale
// together with a short status message. The chain rescales internal values
// into the externally visible generation band.
type ProgressFunc func(pct int, message string)

// Generator turns (prompt, lyrics, duration) into WAV audio.
type Generator interface {
	Generate(ctx context.Context, params Params, progress ProgressFunc) (*Result, error)
}

// Externally visible progress band reserved for "generating". Adapter
// internal granularity never produces a value outside this band.
const (
	bandStart = 25
	bandEnd   = 85
)
