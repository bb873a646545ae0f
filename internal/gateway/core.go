package gateway

import (
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/history"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/models"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/transcribe"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/upload"
)

// Core bundles the daemon operations the boundary drives. Requestor is nil
// when no transcription endpoint is configured; the transcribe command then
// reports a status error instead of dispatching.
type Core struct {
	Orchestrator *upload.Orchestrator
	Reconciler   *history.Reconciler
	History      *history.Store
	Requestor    *transcribe.Requestor
}

// StatusEvent tells the UI something happened outside a progress feed.
type StatusEvent struct {
	Message string `json:"message"`
	IsError bool   `json:"isError"`
}

// HistoryEvent carries a full history snapshot.
type HistoryEvent struct {
	Recordings []models.Recording `json:"recordings"`
}

// TranscriptionResult is the terminal event for one transcribe command.
type TranscriptionResult struct {
	Key        string `json:"key"`
	Success    bool   `json:"success"`
	Transcript string `json:"transcript,omitempty"`
	Error      string `json:"error,omitempty"`
}
