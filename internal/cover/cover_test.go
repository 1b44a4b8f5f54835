package cover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateWithoutTokenIsUnavailable(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
	}{
		{name: "disabled", cfg: Config{Enabled: false, Token: "tok"}},
		{name: "no token", cfg: Config{Enabled: true}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&tc.cfg)
			_, err := svc.Generate(context.Background(), "synthwave", "", nil)
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("err = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestGenerateReturnsDecodedImage(t *testing.T) {
	var pngBytes bytes.Buffer
	if err := png.Encode(&pngBytes, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}

	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/models/") {
			http.NotFound(w, r)
			return
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("Authorization = %q", auth)
		}
		var body struct {
			Inputs string `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		gotPrompt = body.Inputs
		w.Write(pngBytes.Bytes())
	}))
	defer srv.Close()

	svc := New(&Config{Enabled: true, Token: "tok", BaseURL: srv.URL})
	img, err := svc.Generate(context.Background(), "synthwave sunset", "Night Drive", nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if img.Format != "png" {
		t.Errorf("format = %q, want png", img.Format)
	}
	if !bytes.Equal(img.Bytes, pngBytes.Bytes()) {
		t.Error("image bytes do not match the API response")
	}
	if !strings.Contains(gotPrompt, "synthwave sunset") || !strings.Contains(gotPrompt, "Night Drive") {
		t.Errorf("styled prompt = %q, want prompt and title embedded", gotPrompt)
	}
}

func TestGenerateRejectsNonImagePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error":"model is loading"}`))
	}))
	defer srv.Close()

	svc := New(&Config{Enabled: true, Token: "tok", BaseURL: srv.URL})
	if _, err := svc.Generate(context.Background(), "x", "", nil); err == nil {
		t.Error("Generate accepted a non-image payload")
	}
}

func TestGenerateSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := New(&Config{Enabled: true, Token: "tok", BaseURL: srv.URL})
	_, err := svc.Generate(context.Background(), "x", "", nil)
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want HTTP 429 surfaced", err)
	}
}
