package history

import (
	"sync"

	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/models"
)

// Store holds the in-memory recording history, most recent first. The
// backing slice is copy-on-write: every mutation builds a fresh slice and
// swaps it in, so a snapshot handed to a caller is never mutated underneath
// it. Nothing here persists; the object store listing is the source of truth
// and the Reconciler rebuilds this cache from it.
type Store struct {
	mu   sync.RWMutex
	recs []models.Recording
}

// NewStore returns an empty history.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the current history. Callers must treat the returned
// slice as read-only.
func (s *Store) Snapshot() []models.Recording {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recs
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// Replace swaps the entire history for recs.
func (s *Store) Replace(recs []models.Recording) {
	next := make([]models.Recording, len(recs))
	copy(next, recs)
	s.mu.Lock()
	s.recs = next
	s.mu.Unlock()
}

// Prepend inserts rec at the front.
func (s *Store) Prepend(rec models.Recording) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Recording, 0, len(s.recs)+1)
	next = append(next, rec)
	next = append(next, s.recs...)
	s.recs = next
}

// Remove deletes the entry with key, reporting whether it was present.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Recording, 0, len(s.recs))
	found := false
	for _, rec := range s.recs {
		if rec.Key == key {
			found = true
			continue
		}
		next = append(next, rec)
	}
	if found {
		s.recs = next
	}
	return found
}

// AttachTranscript sets the transcript text on the entry with key. It
// reports false and leaves the history untouched when the key is absent, so
// a transcript arriving after a delete never resurrects the recording.
func (s *Store) AttachTranscript(key, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range s.recs {
		if rec.Key != key {
			continue
		}
		next := make([]models.Recording, len(s.recs))
		copy(next, s.recs)
		next[i].Transcript = text
		s.recs = next
		return true
	}
	return false
}
