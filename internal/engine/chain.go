package engine

import (
	"context"
	"errors"

	"github.com/kaili/songforge/internal/logger"
)

// Chain is the ordered adapter chain: primary engine first, then the
// deterministic tone fallback when - and only when - the primary reports
// ErrEngineUnavailable. Progress reported by the primary on its internal
// scale is clamped and rescaled into the [25,85] generation band of the
// job's 0-100 scale.
type Chain struct {
	primary Generator
	log     *logger.Logger
}

// NewChain builds a chain around the primary generator. A nil primary is
// treated as permanently unavailable.
func NewChain(primary Generator, log *logger.Logger) *Chain {
	if log == nil {
		log = logger.Default()
	}
	return &Chain{primary: primary, log: log}
}

// Generate runs the chain. The progress callback receives values on the
// job's 0-100 scale.
func (c *Chain) Generate(ctx context.Context, params Params, progress ProgressFunc) (*Result, error) {
	if params.SampleRate <= 0 {
		params.SampleRate = 44100
	}

	if c.primary != nil {
		res, err := c.primary.Generate(ctx, params, bandScaled(progress))
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, ErrEngineUnavailable) {
			// The engine initialized and then crashed. That is a hard job
			// failure, never a fallback trigger.
			return nil, err
		}
		c.log.WithError(err).Warn("Primary engine unavailable, using fallback synth")
	}

	if progress != nil {
		progress(15, "fallback: synth tone (engine not available)")
	}
	freq := 220.0
	if params.Lyrics != "" {
		freq = 330.0
	}
	wav := sineWAV(params.Duration, params.SampleRate, freq)
	if progress != nil {
		progress(80, "fallback: finalizing")
	}
	return &Result{WAVBytes: wav, BPM: 120}, nil
}

// bandScaled wraps a job-scale progress callback so that engine-internal
// values land inside the generation band. Raw values are clamped to [0,100]
// before rescaling.
func bandScaled(progress ProgressFunc) ProgressFunc {
	if progress == nil {
		return nil
	}
	return func(raw int, message string) {
		if raw < 0 {
			raw = 0
		}
		if raw > 100 {
			raw = 100
		}
		progress(bandStart+raw*(bandEnd-bandStart)/100, message)
	}
}
