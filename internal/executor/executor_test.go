package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kaili/songforge/internal/cover"
	"github.com/kaili/songforge/internal/domain"
	"github.com/kaili/songforge/internal/engine"
	"github.com/kaili/songforge/internal/jobstate"
	"github.com/kaili/songforge/internal/repository"
	"github.com/kaili/songforge/internal/storage"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.GenerationJob{}, &domain.Song{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

type fakeAudio struct {
	generate func(ctx context.Context, params engine.Params, progress engine.ProgressFunc) (*engine.Result, error)
}

func (f *fakeAudio) Generate(ctx context.Context, params engine.Params, progress engine.ProgressFunc) (*engine.Result, error) {
	return f.generate(ctx, params, progress)
}

type fakeCover struct {
	generate func(ctx context.Context, prompt, title string, progress cover.ProgressFunc) (*cover.Image, error)
}

func (f *fakeCover) Generate(ctx context.Context, prompt, title string, progress cover.ProgressFunc) (*cover.Image, error) {
	return f.generate(ctx, prompt, title, progress)
}

// memStorage keeps stored objects in memory and fails on demand.
type memStorage struct {
	objects map[string][]byte
	n       int
	failAll bool
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) StoreBytes(_ context.Context, content []byte, suffix, _ string) (*storage.StoredObject, error) {
	if m.failAll {
		return nil, errors.New("store unavailable")
	}
	m.n++
	key := fmt.Sprintf("obj-%d%s", m.n, suffix)
	m.objects[key] = content
	return &storage.StoredObject{Key: key, URL: "/api/v1/files/" + key}, nil
}

func (m *memStorage) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func happyAudio() *fakeAudio {
	return &fakeAudio{generate: func(_ context.Context, _ engine.Params, progress engine.ProgressFunc) (*engine.Result, error) {
		progress(40, "generating")
		progress(85, "generating")
		return &engine.Result{WAVBytes: []byte("RIFF-fake"), BPM: 96}, nil
	}}
}

func failingCover() *fakeCover {
	return &fakeCover{generate: func(context.Context, string, string, cover.ProgressFunc) (*cover.Image, error) {
		return nil, fmt.Errorf("%w: no API token configured", cover.ErrUnavailable)
	}}
}

type testEnv struct {
	store   *jobstate.Store
	songs   *repository.SongRepository
	storage *memStorage
	db      *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	db := newTestDB(t)
	return &testEnv{
		store:   jobstate.New(db, time.Hour),
		songs:   repository.NewSongRepository(db),
		storage: newMemStorage(),
		db:      db,
	}
}

func (e *testEnv) run(t *testing.T, audio AudioGenerator, coverGen CoverGenerator) error {
	t.Helper()

	ctx := context.Background()
	if err := e.store.Init(ctx, "job-1", "user-1", domain.JSONMap{"prompt": "synthwave"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	exec := New(e.store, audio, coverGen, e.storage, e.songs, nil, 44100)
	return exec.Run(ctx, Job{
		JobID:    "job-1",
		UserID:   "user-1",
		Prompt:   "synthwave",
		Duration: 30,
		Title:    "Night Drive",
	})
}

func (e *testEnv) job(t *testing.T) *domain.GenerationJob {
	t.Helper()
	job, err := e.store.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	return job
}

func TestRunCompletesWithoutCoverOnEnrichmentFailure(t *testing.T) {
	env := newTestEnv(t)

	if err := env.run(t, happyAudio(), failingCover()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	job := env.job(t)
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.Progress != 100 {
		t.Errorf("progress = %d, want 100", job.Progress)
	}
	if job.Result["audio_url"] == nil || job.Result["audio_url"] == "" {
		t.Error("result has no audio_url")
	}
	if _, ok := job.Result["cover_image_url"]; ok {
		t.Errorf("result carries cover_image_url after enrichment failure: %v", job.Result)
	}

	n, err := env.songs.CountByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CountByUser failed: %v", err)
	}
	if n != 1 {
		t.Errorf("song rows = %d, want 1", n)
	}
}

func TestRunCompletesWithCover(t *testing.T) {
	env := newTestEnv(t)
	coverGen := &fakeCover{generate: func(_ context.Context, _, _ string, progress cover.ProgressFunc) (*cover.Image, error) {
		progress(50, "cover: requesting image")
		return &cover.Image{Bytes: []byte("png-bytes"), Format: "png"}, nil
	}}

	if err := env.run(t, happyAudio(), coverGen); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	job := env.job(t)
	coverURL, _ := job.Result["cover_image_url"].(string)
	if coverURL == "" {
		t.Fatal("result has no cover_image_url")
	}

	songID, _ := job.Result["song_id"].(string)
	song, err := env.songs.GetByID(context.Background(), songID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if song.CoverImageURL != coverURL {
		t.Errorf("song cover URL = %q, result URL = %q", song.CoverImageURL, coverURL)
	}
	if song.BPM != 96 {
		t.Errorf("song BPM = %d, want 96", song.BPM)
	}
	if song.Title != "Night Drive" {
		t.Errorf("song title = %q, want Night Drive", song.Title)
	}
}

func TestRunCoverUploadFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	coverGen := &fakeCover{generate: func(context.Context, string, string, cover.ProgressFunc) (*cover.Image, error) {
		// Audio is already stored when the cover step runs; make every
		// later upload fail.
		env.storage.failAll = true
		return &cover.Image{Bytes: []byte("png-bytes"), Format: "png"}, nil
	}}

	if err := env.run(t, happyAudio(), coverGen); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	job := env.job(t)
	if job.Status != domain.JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if _, ok := job.Result["cover_image_url"]; ok {
		t.Error("result carries cover_image_url after upload failure")
	}
}

func TestRunEngineFailureMarksJobFailed(t *testing.T) {
	env := newTestEnv(t)
	audio := &fakeAudio{generate: func(context.Context, engine.Params, engine.ProgressFunc) (*engine.Result, error) {
		return nil, errors.New("inference crashed at step 12")
	}}

	if err := env.run(t, audio, failingCover()); err == nil {
		t.Fatal("Run succeeded despite engine failure")
	}

	job := env.job(t)
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.Progress != 100 {
		t.Errorf("progress = %d, want 100 on terminal failure", job.Progress)
	}
	if !strings.Contains(job.Message, "inference crashed at step 12") {
		t.Errorf("message = %q, want the engine error preserved", job.Message)
	}
	if job.Error == "" {
		t.Error("error field empty on failed job")
	}

	n, err := env.songs.CountByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CountByUser failed: %v", err)
	}
	if n != 0 {
		t.Errorf("song rows = %d, want 0 for a failed job", n)
	}
}

func TestRunRecoverFromPanic(t *testing.T) {
	env := newTestEnv(t)
	audio := &fakeAudio{generate: func(context.Context, engine.Params, engine.ProgressFunc) (*engine.Result, error) {
		panic("index out of range")
	}}

	if err := env.run(t, audio, failingCover()); err == nil {
		t.Fatal("Run swallowed the panic")
	}

	job := env.job(t)
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.Message, "generation panicked") {
		t.Errorf("message = %q, want panic noted", job.Message)
	}
}

func TestRunAudioStoreFailureMarksJobFailed(t *testing.T) {
	env := newTestEnv(t)
	env.storage.failAll = true

	if err := env.run(t, happyAudio(), failingCover()); err == nil {
		t.Fatal("Run succeeded despite storage failure")
	}

	job := env.job(t)
	if job.Status != domain.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
}
