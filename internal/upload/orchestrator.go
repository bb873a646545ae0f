package upload

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/history"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/models"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/pkg/storage"
)

// Stage identifies a phase of the upload pipeline.
type Stage string

const (
	StagePreparing  Stage = "preparing"
	StageUploading  Stage = "uploading"
	StageProcessing Stage = "processing"
	StageComplete   Stage = "complete"
)

// Event is one progress emission. Progress runs 0-100 across the stages;
// Key is set once assigned.
type Event struct {
	Stage    Stage  `json:"stage"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	Key      string `json:"key,omitempty"`
}

// Notifier announces a completed upload to the transcription endpoint.
type Notifier interface {
	NotifyUploaded(ctx context.Context, key, audioURL string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, key, audioURL string) error

// NotifyUploaded calls f.
func (f NotifierFunc) NotifyUploaded(ctx context.Context, key, audioURL string) error {
	return f(ctx, key, audioURL)
}

const (
	// putTimeout bounds the store write. A write still in flight past this
	// is reported failed; its eventual result is discarded.
	putTimeout = 60 * time.Second

	// Synthetic progress while the write is in flight. The transport gives
	// no partial progress, so the caller sees interpolated forward motion,
	// capped below the stage boundary until the write confirms.
	uploadTickEvery = 400 * time.Millisecond
	uploadTickStep  = 3
	uploadTickCap   = 48
)

// Orchestrator drives a raw audio buffer through the staged upload
// pipeline: validate, write to the store, sign a playback URL, publish to
// history, kick off transcription.
type Orchestrator struct {
	store    storage.ObjectStore
	hist     *history.Store
	bucket   string
	missing  []string
	ttl      time.Duration
	notifier Notifier
	logger   *zap.Logger
}

// NewOrchestrator wires the pipeline. store may be nil when cfg is
// incomplete; every operation then fails with the named missing fields
// before touching the network. notifier may be nil when no transcription
// endpoint is configured.
func NewOrchestrator(store storage.ObjectStore, hist *history.Store, cfg storage.Config, notifier Notifier, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:    store,
		hist:     hist,
		bucket:   cfg.Bucket,
		missing:  cfg.MissingFields(),
		ttl:      time.Duration(cfg.PresignExpireMinutes) * time.Minute,
		notifier: notifier,
		logger:   logger,
	}
}

// Upload runs the full pipeline for one audio buffer and returns the
// assigned key. onProgress (optional) receives every stage event. On
// failure the returned error is a classified *Error and no history entry
// exists for the attempt.
func (o *Orchestrator) Upload(ctx context.Context, audio []byte, onProgress func(Event)) (string, error) {
	emit := func(ev Event) {
		if onProgress != nil {
			onProgress(ev)
		}
	}

	emit(Event{Stage: StagePreparing, Progress: 0, Message: "Preparing upload"})
	if len(audio) == 0 {
		return "", invalidInput("Nothing to upload: the audio buffer is empty.")
	}
	if len(o.missing) > 0 {
		return "", configurationMissing(o.missing)
	}
	key := storage.AssignKey(storage.FolderAudio, storage.AudioExt)
	emit(Event{Stage: StagePreparing, Progress: 25, Message: "Upload ready", Key: key})

	emit(Event{Stage: StageUploading, Progress: 25, Message: "Uploading audio", Key: key})
	if err := o.put(ctx, key, audio, emit); err != nil {
		o.logger.Error("upload failed", zap.String("key", key), zap.Error(err))
		return "", err
	}
	emit(Event{Stage: StageUploading, Progress: 50, Message: "Upload confirmed", Key: key})

	emit(Event{Stage: StageProcessing, Progress: 50, Message: "Generating playback link", Key: key})
	signedURL := ""
	if url, err := o.store.SignedURL(ctx, o.bucket, key, o.ttl); err != nil {
		o.logger.Warn("sign playback url", zap.String("key", key), zap.Error(err))
	} else {
		signedURL = url
	}

	o.hist.Prepend(models.Recording{
		Key:       key,
		Timestamp: storage.ParseTimestamp(key),
		Size:      int64(len(audio)),
		SignedURL: signedURL,
	})

	message := "Recording saved"
	if o.notifier != nil {
		if err := o.notifier.NotifyUploaded(ctx, key, signedURL); err != nil {
			o.logger.Warn("transcription notify", zap.String("key", key), zap.Error(err))
			message = "Recording saved; transcription service unreachable"
		} else {
			message = "Recording saved; transcription requested"
		}
	}
	emit(Event{Stage: StageProcessing, Progress: 95, Message: message, Key: key})

	emit(Event{Stage: StageComplete, Progress: 100, Message: "Upload complete", Key: key})
	o.logger.Info("upload complete", zap.String("key", key), zap.Int("bytes", len(audio)))
	return key, nil
}

// put races the store write against putTimeout while a ticker feeds
// synthetic progress. The result channel is buffered so a write settling
// after the timeout parks its result there and is discarded; it can never
// supersede the outcome already returned.
func (o *Orchestrator) put(ctx context.Context, key string, audio []byte, emit func(Event)) error {
	ctx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- o.store.Put(ctx, o.bucket, key, audio, storage.AudioContentType)
	}()

	ticker := time.NewTicker(uploadTickEvery)
	defer ticker.Stop()

	progress := 25
	for {
		select {
		case err := <-result:
			if err == nil {
				return nil
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return timedOut(err)
			}
			return Classify(err)
		case <-ticker.C:
			if progress+uploadTickStep <= uploadTickCap {
				progress += uploadTickStep
				emit(Event{Stage: StageUploading, Progress: progress, Message: "Uploading audio", Key: key})
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return timedOut(ctx.Err())
			}
			return Classify(ctx.Err())
		}
	}
}

// Delete removes the stored object and its history entry together. The
// store delete settles first, so a history rebuild issued after this
// returns can never list the key again.
func (o *Orchestrator) Delete(ctx context.Context, key string) error {
	if len(o.missing) > 0 {
		return configurationMissing(o.missing)
	}
	if err := o.store.Delete(ctx, o.bucket, key); err != nil {
		return Classify(err)
	}
	o.hist.Remove(key)
	o.logger.Info("recording deleted", zap.String("key", key))
	return nil
}
