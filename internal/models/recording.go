package models

import (
	"time"
)

// Recording is one stored audio object as presented to clients. Key is the
// identity; everything else is derived from the store or attached later.
type Recording struct {
	Key        string    `json:"key"`
	Timestamp  time.Time `json:"timestamp"`
	Size       int64     `json:"size"`
	SignedURL  string    `json:"signedUrl,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
}

// Valid reports whether the recording carries the minimum a client can act
// on. Listings occasionally surface placeholder rows; those are dropped
// rather than rendered.
func (r Recording) Valid() bool {
	return r.Key != "" && !r.Timestamp.IsZero()
}

// TranscriptDocument is the JSON body stored alongside a recording once
// transcription completes. Metadata mirrors what the transcription service
// reported at completion time.
type TranscriptDocument struct {
	Transcription string    `json:"transcription"`
	ProcessedAt   time.Time `json:"processedAt"`
	AudioFile     string    `json:"audioFile"`
	Model         string    `json:"model"`
	WordCount     int       `json:"wordCount"`
	CharCount     int       `json:"charCount"`
}
