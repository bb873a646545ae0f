package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyUploaded(t *testing.T) {
	const key = "audio/2024-01-15T10-30-45-123Z-a1b2c3d4.webm"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/", r.URL.Path)

		var req struct {
			Key      string `json:"key"`
			AudioURL string `json:"audioUrl"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, key, req.Key)
		assert.Equal(t, "https://signed.example/"+key, req.AudioURL)

		json.NewEncoder(w).Encode(map[string]any{
			"success":  true,
			"message":  "Audio received",
			"size":     128000,
			"uploaded": true,
		})
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, 5*time.Second, nil)

	ack, err := n.NotifyUploaded(context.Background(), key, "https://signed.example/"+key)
	require.NoError(t, err)
	require.NotNil(t, ack)

	assert.True(t, ack.Success)
	assert.Equal(t, "Audio received", ack.Message)
	assert.Equal(t, int64(128000), ack.Size)
	assert.True(t, ack.Uploaded)
}

func TestNotifyUploadedMissingObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "audio object not found"})
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, 5*time.Second, nil)

	ack, err := n.NotifyUploaded(context.Background(), "audio/missing.webm", "")
	require.Error(t, err)
	assert.Nil(t, ack)
	assert.Equal(t, "audio object not found", err.Error())
}
