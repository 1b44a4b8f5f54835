package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kaili/songforge/internal/api/middleware"
	"github.com/kaili/songforge/internal/domain"
	"github.com/kaili/songforge/internal/jobstate"
	"github.com/kaili/songforge/internal/queue"
	"github.com/kaili/songforge/internal/repository"
	"github.com/kaili/songforge/internal/service"
)

type fakeEnqueuer struct {
	inserted []queue.GenerationArgs
}

func (f *fakeEnqueuer) EnqueueGeneration(_ context.Context, args queue.GenerationArgs) error {
	f.inserted = append(f.inserted, args)
	return nil
}

type handlerEnv struct {
	store  *jobstate.Store
	router *gin.Engine
}

func newHandlerEnv(t *testing.T, balance int) *handlerEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.GenerationJob{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := db.Create(&domain.User{ID: "user-1", Username: "kaili", CreditsBalance: balance}).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	store := jobstate.New(db, time.Hour)
	genSvc := service.NewGenerationService(repository.NewUserRepository(db), store, &fakeEnqueuer{}, nil)
	streamSvc := service.NewStreamService(store, 10*time.Millisecond, 250*time.Millisecond, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	// Stand-in for the JWT middleware.
	r.Use(func(c *gin.Context) { c.Set(middleware.UserIDKey, "user-1") })
	h := NewGenerateHandler(genSvc, streamSvc)
	r.POST("/api/v1/generate", h.Generate)
	r.GET("/api/v1/generate/events/:job_id", h.Events)

	return &handlerEnv{store: store, router: r}
}

func (e *handlerEnv) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestGenerateEndpoint(t *testing.T) {
	testCases := []struct {
		name       string
		balance    int
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "admitted",
			balance:    5,
			body:       `{"prompt":"synthwave","duration":30}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "default duration",
			balance:    5,
			body:       `{"prompt":"synthwave"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed json",
			balance:    5,
			body:       `{"prompt":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		{
			name:       "duration out of range",
			balance:    5,
			body:       `{"prompt":"synthwave","duration":400}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		{
			name:       "empty prompt",
			balance:    5,
			body:       `{"prompt":"  ","duration":30}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		{
			name:       "out of credits",
			balance:    0,
			body:       `{"prompt":"synthwave","duration":30}`,
			wantStatus: http.StatusPaymentRequired,
			wantCode:   "quota_exceeded",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newHandlerEnv(t, tc.balance)
			w := env.post(t, tc.body)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.wantStatus, w.Body.String())
			}

			var resp map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("bad response body: %v", err)
			}
			if tc.wantCode != "" {
				if resp["code"] != tc.wantCode {
					t.Errorf("code = %v, want %s", resp["code"], tc.wantCode)
				}
				return
			}

			jobID, _ := resp["job_id"].(string)
			if jobID == "" {
				t.Fatalf("no job_id in response: %v", resp)
			}
			if want := "/api/v1/generate/events/" + jobID; resp["events_url"] != want {
				t.Errorf("events_url = %v, want %s", resp["events_url"], want)
			}
		})
	}
}

func TestEventsEndpointStreamsTerminalRecord(t *testing.T) {
	env := newHandlerEnv(t, 5)
	ctx := context.Background()

	if err := env.store.Init(ctx, "job-1", "user-1", nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	status := domain.JobStatusCompleted
	progress := 100
	if err := env.store.Update(ctx, "job-1", jobstate.UpdatePatch{
		Status:   &status,
		Progress: &progress,
		Result:   domain.JSONMap{"audio_url": "/api/v1/files/x.wav"},
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/generate/events/job-1", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event:progress") {
		t.Errorf("body has no progress event: %q", body)
	}
	if !strings.Contains(body, `"status":"completed"`) || !strings.Contains(body, "/api/v1/files/x.wav") {
		t.Errorf("terminal record missing from stream: %q", body)
	}
}

func TestEventsEndpointForeignJobYieldsErrorEvent(t *testing.T) {
	env := newHandlerEnv(t, 5)
	if err := env.store.Init(context.Background(), "job-1", "someone-else", nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/generate/events/job-1", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "event:error") || !strings.Contains(body, "job not found") {
		t.Errorf("expected an error event, got %q", body)
	}
	if strings.Contains(body, "someone-else") {
		t.Errorf("stream leaked another user's record: %q", body)
	}
}
