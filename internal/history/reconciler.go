package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/models"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/pkg/storage"
	"go.uber.org/zap"
)

// listPageSize bounds a single rebuild listing.
const listPageSize = 1000

// Reconciler rebuilds the in-memory history from the object store listing.
type Reconciler struct {
	store  storage.ObjectStore
	hist   *Store
	bucket string
	ttl    time.Duration
	logger *zap.Logger
}

// NewReconciler wires a reconciler over the object store and history. ttl is
// the lifetime of signed playback URLs attached to each entry. store may be
// nil when the daemon runs without credentials; Load then reports the
// configuration gap instead of listing.
func NewReconciler(store storage.ObjectStore, hist *Store, bucket string, ttl time.Duration, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:  store,
		hist:   hist,
		bucket: bucket,
		ttl:    ttl,
		logger: logger,
	}
}

// Load lists the audio folder, derives a history entry per object, and
// replaces the in-memory snapshot. Transcript documents share the prefix and
// are skipped; a failed URL signing leaves that entry playable-later rather
// than failing the rebuild.
func (r *Reconciler) Load(ctx context.Context) ([]models.Recording, error) {
	if r.store == nil {
		return nil, errors.New("object store is not configured")
	}
	objects, err := r.store.List(ctx, r.bucket, storage.FolderAudio+"/", listPageSize)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	recs := make([]models.Recording, 0, len(objects))
	for _, obj := range objects {
		if storage.IsTranscriptKey(obj.Key) {
			continue
		}
		rec := models.Recording{
			Key:       obj.Key,
			Timestamp: storage.ParseTimestamp(obj.Key),
			Size:      obj.Size,
		}
		if !rec.Valid() {
			r.logger.Warn("dropping malformed history entry", zap.String("key", obj.Key))
			continue
		}
		url, err := r.store.SignedURL(ctx, r.bucket, obj.Key, r.ttl)
		if err != nil {
			r.logger.Warn("sign recording url", zap.String("key", obj.Key), zap.Error(err))
		} else {
			rec.SignedURL = url
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.After(recs[j].Timestamp)
		}
		return recs[i].Key > recs[j].Key
	})
	r.hist.Replace(recs)
	r.logger.Info("history rebuilt", zap.Int("recordings", len(recs)))
	return recs, nil
}

// AttachTranscripts fills in transcript text for entries that lack one by
// fetching each recording's transcript document. Absence is the normal case
// and is silent; any other fetch error is logged and treated as absence.
// The history store is updated alongside the returned copy.
func (r *Reconciler) AttachTranscripts(ctx context.Context, recs []models.Recording) []models.Recording {
	out := make([]models.Recording, len(recs))
	copy(out, recs)
	for i := range out {
		if out[i].Transcript != "" {
			continue
		}
		body, err := r.store.Get(ctx, r.bucket, storage.TranscriptKeyFor(out[i].Key))
		if err != nil {
			if !storage.IsNotFound(err) {
				r.logger.Warn("fetch transcript", zap.String("key", out[i].Key), zap.Error(err))
			}
			continue
		}
		text := transcriptText(body)
		if text == "" {
			continue
		}
		out[i].Transcript = text
		r.hist.AttachTranscript(out[i].Key, text)
	}
	return out
}

// transcriptText extracts the transcription from a stored document, falling
// back to the raw body when it is not the expected JSON.
func transcriptText(body []byte) string {
	var doc models.TranscriptDocument
	if err := json.Unmarshal(body, &doc); err == nil && doc.Transcription != "" {
		return doc.Transcription
	}
	return strings.TrimSpace(string(body))
}
