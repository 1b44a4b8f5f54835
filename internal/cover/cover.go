// Package cover generates album cover art for a finished track. The step is
// best-effort by contract: callers treat every failure here as "no cover",
// never as a job failure.
package cover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/webp"
)

// ErrUnavailable is returned when the image model cannot be used at all
// (disabled by config or missing API token).
var ErrUnavailable = errors.New("cover generation unavailable")

// ProgressFunc receives cover-step progress on a 0-100 internal scale.
type ProgressFunc func(pct int, message string)

// Image is a generated cover.
type Image struct {
	Bytes  []byte
	Format string // png, jpeg, ...
}

// Config for the Hugging Face inference API client.
type Config struct {
	Enabled bool
	Model   string
	Token   string
	BaseURL string
}

// Service calls a hosted text-to-image model (FLUX.1-schnell by default).
type Service struct {
	client  *resty.Client
	model   string
	enabled bool
}

// New creates the cover service.
func New(cfg *Config) *Service {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.Token)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(120 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co"
	}
	client.SetBaseURL(baseURL)

	model := cfg.Model
	if model == "" {
		model = "black-forest-labs/FLUX.1-schnell"
	}

	return &Service{
		client:  client,
		model:   model,
		enabled: cfg.Enabled && cfg.Token != "",
	}
}

type textToImageRequest struct {
	Inputs string `json:"inputs"`
}

// Generate produces album art for the given prompt and optional title.
// Returns ErrUnavailable when the service has no token or is disabled.
func (s *Service) Generate(ctx context.Context, prompt, title string, progress ProgressFunc) (*Image, error) {
	if !s.enabled {
		return nil, fmt.Errorf("%w: no API token configured", ErrUnavailable)
	}

	if progress != nil {
		progress(10, "cover: requesting image")
	}

	styled := fmt.Sprintf("Album cover art, %s, professional music artwork, vibrant colors, artistic design", prompt)
	if title != "" {
		styled = fmt.Sprintf("Album cover art for '%s', %s, professional music artwork, vibrant colors, artistic design", title, prompt)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(textToImageRequest{Inputs: styled}).
		Post("/models/" + s.model)
	if err != nil {
		return nil, fmt.Errorf("failed to call image API: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("image API returned HTTP %d: %s", resp.StatusCode(), resp.Body())
	}

	if progress != nil {
		progress(80, "cover: processing image")
	}

	data := resp.Body()
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image API returned undecodable payload: %w", err)
	}

	return &Image{Bytes: data, Format: format}, nil
}
