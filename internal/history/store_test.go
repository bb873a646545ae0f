package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/models"
)

func rec(key string) models.Recording {
	return models.Recording{
		Key:       key,
		Timestamp: time.Now().UTC(),
		Size:      1024,
	}
}

func TestPrependMostRecentFirst(t *testing.T) {
	s := NewStore()
	s.Prepend(rec("audio/first.webm"))
	s.Prepend(rec("audio/second.webm"))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "audio/second.webm", snap[0].Key)
	assert.Equal(t, "audio/first.webm", snap[1].Key)
}

func TestSnapshotNotMutatedByLaterWrites(t *testing.T) {
	s := NewStore()
	s.Prepend(rec("audio/a.webm"))

	snap := s.Snapshot()
	s.Prepend(rec("audio/b.webm"))
	s.AttachTranscript("audio/a.webm", "hello")

	require.Len(t, snap, 1)
	assert.Equal(t, "audio/a.webm", snap[0].Key)
	assert.Empty(t, snap[0].Transcript)
}

func TestReplaceCopiesInput(t *testing.T) {
	s := NewStore()
	in := []models.Recording{rec("audio/a.webm")}
	s.Replace(in)

	in[0].Key = "mutated"
	assert.Equal(t, "audio/a.webm", s.Snapshot()[0].Key)
}

func TestRemove(t *testing.T) {
	s := NewStore()
	s.Prepend(rec("audio/a.webm"))
	s.Prepend(rec("audio/b.webm"))

	assert.True(t, s.Remove("audio/a.webm"))
	assert.False(t, s.Remove("audio/a.webm"))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "audio/b.webm", s.Snapshot()[0].Key)
}

func TestAttachTranscript(t *testing.T) {
	s := NewStore()
	s.Prepend(rec("audio/a.webm"))

	assert.True(t, s.AttachTranscript("audio/a.webm", "hello world"))
	assert.Equal(t, "hello world", s.Snapshot()[0].Transcript)

	assert.False(t, s.AttachTranscript("audio/missing.webm", "nope"))
	assert.Equal(t, 1, s.Len())
}

func TestTranscriptNeverResurrectsDeleted(t *testing.T) {
	s := NewStore()
	s.Prepend(rec("audio/a.webm"))
	require.True(t, s.Remove("audio/a.webm"))

	assert.False(t, s.AttachTranscript("audio/a.webm", "late transcript"))
	assert.Equal(t, 0, s.Len())
}
