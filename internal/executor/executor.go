// Package executor runs one music-generation job end-to-end in a worker
// process: drive the inference adapter chain, persist the audio artifact,
// attempt cover-art enrichment, write the permanent song record, and
// finalize the shared job state. Enrichment failure is not job failure;
// everything else fatal marks the job failed with its message preserved.
package executor

import (
	"context"
	"fmt"

	"github.com/kaili/songforge/internal/cover"
	"github.com/kaili/songforge/internal/domain"
	"github.com/kaili/songforge/internal/engine"
	"github.com/kaili/songforge/internal/jobstate"
	"github.com/kaili/songforge/internal/logger"
	"github.com/kaili/songforge/internal/storage"
)

// Job is one dequeued generation request.
type Job struct {
	JobID    string
	UserID   string
	Prompt   string
	Lyrics   string
	Duration int
	Title    string
}

// AudioGenerator produces audio with progress on the job's 0-100 scale.
// Satisfied by *engine.Chain.
type AudioGenerator interface {
	Generate(ctx context.Context, params engine.Params, progress engine.ProgressFunc) (*engine.Result, error)
}

// CoverGenerator produces cover art. Satisfied by *cover.Service.
type CoverGenerator interface {
	Generate(ctx context.Context, prompt, title string, progress cover.ProgressFunc) (*cover.Image, error)
}

// SongCreator persists the permanent song record. Satisfied by
// *repository.SongRepository.
type SongCreator interface {
	Create(ctx context.Context, song *domain.Song) error
}

// Executor holds every collaborator a worker process needs, constructed once
// at process start and shared across jobs. No package-level state.
type Executor struct {
	store      *jobstate.Store
	audio      AudioGenerator
	cover      CoverGenerator
	storage    storage.ObjectStorage
	songs      SongCreator
	log        *logger.Logger
	sampleRate int
}

// New creates an Executor.
func New(
	store *jobstate.Store,
	audio AudioGenerator,
	coverGen CoverGenerator,
	objectStorage storage.ObjectStorage,
	songs SongCreator,
	log *logger.Logger,
	sampleRate int,
) *Executor {
	if log == nil {
		log = logger.Default()
	}
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Executor{
		store:      store,
		audio:      audio,
		cover:      coverGen,
		storage:    objectStorage,
		songs:      songs,
		log:        log,
		sampleRate: sampleRate,
	}
}

// Run executes the job state machine:
//
//	queued -> running(starting, generating, enriching, persisting) -> completed | failed
//
// Any error or panic outside the enrichment step finalizes the job as
// failed with progress forced to 100 and the message preserved verbatim. No
// song record exists for a failed job, and the admission-time credit debit
// is not rolled back.
func (e *Executor) Run(ctx context.Context, job Job) (err error) {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "executor",
		logger.FieldJobID:     job.JobID,
		logger.FieldUserID:    job.UserID,
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation panicked: %v", r)
		}
		if err != nil {
			logger.CtxError(ctx, "Generation failed: %v", err)
			e.finalizeFailed(ctx, job.JobID, err)
		}
	}()

	logger.CtxInfo(ctx, "Generation started: prompt=%q duration=%d", job.Prompt, job.Duration)

	rep := newReporter(e.store, job.JobID)
	rep.report(ctx, 5, "starting")
	rep.report(ctx, 15, "loading model")
	rep.report(ctx, 25, "generating")

	res, err := e.audio.Generate(ctx, engine.Params{
		Prompt:     job.Prompt,
		Lyrics:     job.Lyrics,
		Duration:   job.Duration,
		SampleRate: e.sampleRate,
	}, func(pct int, message string) {
		rep.report(ctx, pct, message)
	})
	if err != nil {
		return err
	}

	rep.report(ctx, 60, "uploading audio")
	stored, err := e.storage.StoreBytes(ctx, res.WAVBytes, ".wav", "audio/wav")
	if err != nil {
		return fmt.Errorf("failed to store audio: %w", err)
	}

	coverURL := e.enrich(ctx, job, rep)

	rep.report(ctx, 90, "saving")
	song := &domain.Song{
		UserID:        job.UserID,
		Title:         job.Title,
		Prompt:        job.Prompt,
		Lyrics:        job.Lyrics,
		Duration:      job.Duration,
		BPM:           res.BPM,
		AudioURL:      stored.URL,
		CoverImageURL: coverURL,
	}
	if err := e.songs.Create(ctx, song); err != nil {
		return fmt.Errorf("failed to save song: %w", err)
	}

	result := domain.JSONMap{
		"song_id":   song.ID,
		"audio_url": stored.URL,
	}
	if coverURL != "" {
		result["cover_image_url"] = coverURL
	}
	e.finalizeCompleted(ctx, job.JobID, result)

	logger.CtxInfo(ctx, "Generation completed: song_id=%s", song.ID)
	return nil
}

// enrich runs the best-effort cover-art step. Every failure degrades to "no
// cover" and is only logged; the job keeps going.
func (e *Executor) enrich(ctx context.Context, job Job, rep *reporter) string {
	if e.cover == nil {
		return ""
	}

	rep.report(ctx, 65, "generating cover image")
	img, err := e.cover.Generate(ctx, job.Prompt, job.Title, func(pct int, message string) {
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		rep.report(ctx, 65+pct*15/100, message)
	})
	if err != nil {
		logger.CtxWarn(ctx, "Cover generation skipped: %v", err)
		return ""
	}

	rep.report(ctx, 80, "uploading cover image")
	suffix, contentType := coverFileType(img.Format)
	stored, err := e.storage.StoreBytes(ctx, img.Bytes, suffix, contentType)
	if err != nil {
		logger.CtxWarn(ctx, "Cover upload failed, continuing without cover: %v", err)
		return ""
	}
	return stored.URL
}

func coverFileType(format string) (suffix, contentType string) {
	switch format {
	case "jpeg":
		return ".jpg", "image/jpeg"
	case "gif":
		return ".gif", "image/gif"
	case "webp":
		return ".webp", "image/webp"
	default:
		return ".png", "image/png"
	}
}

func (e *Executor) finalizeCompleted(ctx context.Context, jobID string, result domain.JSONMap) {
	status := domain.JobStatusCompleted
	progress := 100
	message := "completed"
	if err := e.store.Update(ctx, jobID, jobstate.UpdatePatch{
		Status:   &status,
		Progress: &progress,
		Message:  &message,
		Result:   result,
	}); err != nil {
		logger.CtxError(ctx, "Failed to finalize job record: %v", err)
	}
}

// finalizeFailed forces progress to 100: the job is terminal no matter
// where it died, and the error message is surfaced verbatim.
func (e *Executor) finalizeFailed(ctx context.Context, jobID string, cause error) {
	status := domain.JobStatusFailed
	progress := 100
	message := cause.Error()
	if err := e.store.Update(ctx, jobID, jobstate.UpdatePatch{
		Status:   &status,
		Progress: &progress,
		Message:  &message,
		Error:    &message,
	}); err != nil {
		logger.CtxError(ctx, "Failed to record job failure: %v", err)
	}
}
