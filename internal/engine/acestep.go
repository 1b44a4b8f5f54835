package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrEngineUnavailable is the distinguished condition raised when the
// primary engine's runtime cannot be initialized. It triggers the fallback
// generator; any error raised after successful initialization does not.
var ErrEngineUnavailable = errors.New("inference engine unavailable")

// AceStepConfig configures the ACE-Step inference sidecar client.
type AceStepConfig struct {
	BaseURL      string
	ModelDir     string
	Device       string
	PollInterval time.Duration
	Timeout      time.Duration
}

// AceStep drives a local ACE-Step inference sidecar over HTTP. The model
// weights are loaded exactly once per worker process: the first Generate
// call performs a lock-guarded session initialization, and concurrent first
// calls share its outcome.
type AceStep struct {
	client *resty.Client
	cfg    AceStepConfig

	initOnce sync.Once
	initErr  error
}

// NewAceStep creates the sidecar client. No network traffic happens until
// the first Generate call.
func NewAceStep(cfg AceStepConfig) *AceStep {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	return &AceStep{client: client, cfg: cfg}
}

type loadModelRequest struct {
	ModelDir string `json:"model_dir"`
	Device   string `json:"device"`
}

type generateRequest struct {
	Prompt     string `json:"prompt"`
	Lyrics     string `json:"lyrics,omitempty"`
	Duration   int    `json:"duration_sec"`
	SampleRate int    `json:"sample_rate"`
}

type generateResponse struct {
	GenerationID string `json:"generation_id"`
	Error        string `json:"error,omitempty"`
}

type statusResponse struct {
	Status      string `json:"status"` // running | completed | failed
	Step        int    `json:"step"`
	TotalSteps  int    `json:"total_steps"`
	Message     string `json:"message,omitempty"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	BPM         int    `json:"bpm,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ensureSession probes the sidecar and loads the model weights once per
// process. Every failure here maps to ErrEngineUnavailable so the chain can
// fall back; the outcome is cached for the lifetime of the process.
func (a *AceStep) ensureSession(ctx context.Context) error {
	a.initOnce.Do(func() {
		if a.cfg.BaseURL == "" {
			a.initErr = fmt.Errorf("%w: no sidecar endpoint configured (set ACE_STEP_BASE_URL)", ErrEngineUnavailable)
			return
		}

		resp, err := a.client.R().SetContext(ctx).Get("/health")
		if err != nil {
			a.initErr = fmt.Errorf("%w: sidecar unreachable at %s: %v", ErrEngineUnavailable, a.cfg.BaseURL, err)
			return
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			a.initErr = fmt.Errorf("%w: sidecar health returned HTTP %d", ErrEngineUnavailable, resp.StatusCode())
			return
		}

		resp, err = a.client.R().
			SetContext(ctx).
			SetBody(loadModelRequest{ModelDir: a.cfg.ModelDir, Device: a.cfg.Device}).
			Post("/v1/model/load")
		if err != nil {
			a.initErr = fmt.Errorf("%w: model load failed: %v", ErrEngineUnavailable, err)
			return
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			a.initErr = fmt.Errorf("%w: model load returned HTTP %d: %s", ErrEngineUnavailable, resp.StatusCode(), resp.Body())
			return
		}
	})
	return a.initErr
}

// Generate submits the request to the sidecar and polls its status endpoint
// until audio is produced, relaying step progress on the engine's internal
// 0-100 scale.
func (a *AceStep) Generate(ctx context.Context, params Params, progress ProgressFunc) (*Result, error) {
	if err := a.ensureSession(ctx); err != nil {
		return nil, err
	}

	if progress != nil {
		progress(0, fmt.Sprintf("ace-step: generating (device=%s)", a.cfg.Device))
	}

	var submitted generateResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(generateRequest{
			Prompt:     params.Prompt,
			Lyrics:     params.Lyrics,
			Duration:   params.Duration,
			SampleRate: params.SampleRate,
		}).
		SetResult(&submitted).
		Post("/v1/generate")
	if err != nil {
		return nil, fmt.Errorf("failed to submit generation: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("generation submit returned HTTP %d: %s", resp.StatusCode(), resp.Body())
	}
	if submitted.GenerationID == "" {
		return nil, fmt.Errorf("generation submit returned no id: %s", resp.Body())
	}

	return a.poll(ctx, submitted.GenerationID, params, progress)
}

func (a *AceStep) poll(ctx context.Context, generationID string, params Params, progress ProgressFunc) (*Result, error) {
	deadline := time.NewTimer(a.cfg.Timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("generation %s timed out after %s", generationID, a.cfg.Timeout)
		case <-ticker.C:
		}

		var status statusResponse
		resp, err := a.client.R().
			SetContext(ctx).
			SetResult(&status).
			Get("/v1/generations/" + generationID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll generation %s: %w", generationID, err)
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			return nil, fmt.Errorf("generation poll returned HTTP %d: %s", resp.StatusCode(), resp.Body())
		}

		switch status.Status {
		case "failed":
			if status.Error != "" {
				return nil, fmt.Errorf("generation failed: %s", status.Error)
			}
			return nil, errors.New("generation failed")
		case "completed":
			if status.AudioBase64 == "" {
				return nil, errors.New("generation completed without audio")
			}
			wav, err := base64.StdEncoding.DecodeString(status.AudioBase64)
			if err != nil {
				return nil, fmt.Errorf("failed to decode generated audio: %w", err)
			}
			if progress != nil {
				progress(100, "ace-step: done")
			}
			return &Result{WAVBytes: wav, BPM: status.BPM}, nil
		default:
			if progress != nil && status.TotalSteps > 0 {
				pct := status.Step * 100 / status.TotalSteps
				msg := status.Message
				if msg == "" {
					msg = fmt.Sprintf("ace-step: step %d/%d", status.Step, status.TotalSteps)
				}
				progress(pct, msg)
			}
		}
	}
}
