package upload

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/internal/history"
	"github.com/g-guerzoni/poc-audio-recorder-transcription-r2/pkg/storage"
)

var testCfg = storage.Config{
	AccountID:            "acct",
	AccessKeyID:          "key",
	SecretAccessKey:      "secret",
	Bucket:               "recordings",
	PresignExpireMinutes: 60,
}

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      int
	putErr    error
	putDelay  time.Duration
	ignoreCtx bool // settle late instead of honoring cancellation
	signErr   error
	delErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(ctx context.Context, _, key string, body []byte, _ string) error {
	f.mu.Lock()
	f.puts++
	f.mu.Unlock()
	if f.putDelay > 0 {
		if f.ignoreCtx {
			time.Sleep(f.putDelay)
		} else {
			select {
			case <-time.After(f.putDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	f.objects[key] = body
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Get(_ context.Context, _, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return body, nil
}

func (f *fakeStore) List(_ context.Context, _, _ string, _ int32) ([]storage.Object, error) {
	return nil, nil
}

func (f *fakeStore) Delete(_ context.Context, _, key string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.mu.Lock()
	delete(f.objects, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) Head(_ context.Context, _, key string) (*storage.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NotFound")
	}
	return &storage.Object{Key: key, Size: int64(len(body))}, nil
}

func (f *fakeStore) SignedURL(_ context.Context, _, key string, _ time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://signed.example/" + key, nil
}

func (f *fakeStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func collectEvents() (func(Event), *[]Event) {
	var mu sync.Mutex
	events := &[]Event{}
	return func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		*events = append(*events, ev)
	}, events
}

func TestUploadHappyPath(t *testing.T) {
	fs := newFakeStore()
	hist := history.NewStore()
	o := NewOrchestrator(fs, hist, testCfg, nil, nil)

	audio := make([]byte, 128000)
	onProgress, events := collectEvents()

	key, err := o.Upload(context.Background(), audio, onProgress)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, storage.FolderAudio+"/"))
	assert.True(t, strings.HasSuffix(key, storage.AudioExt))
	assert.True(t, fs.has(key))

	require.NotEmpty(t, *events)
	final := (*events)[len(*events)-1]
	assert.Equal(t, StageComplete, final.Stage)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, key, final.Key)

	snap := hist.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, key, snap[0].Key)
	assert.Equal(t, int64(128000), snap[0].Size)
	assert.Equal(t, "https://signed.example/"+key, snap[0].SignedURL)
}

func TestUploadStagesOrderedAndMonotonic(t *testing.T) {
	fs := newFakeStore()
	o := NewOrchestrator(fs, history.NewStore(), testCfg, nil, nil)

	onProgress, events := collectEvents()
	_, err := o.Upload(context.Background(), []byte("audio"), onProgress)
	require.NoError(t, err)

	order := map[Stage]int{StagePreparing: 0, StageUploading: 1, StageProcessing: 2, StageComplete: 3}
	lastStage := -1
	lastProgress := -1
	seen := map[Stage]bool{}
	for _, ev := range *events {
		rank, ok := order[ev.Stage]
		require.True(t, ok, "unknown stage %q", ev.Stage)
		assert.GreaterOrEqual(t, rank, lastStage, "stage went backwards at %+v", ev)
		assert.GreaterOrEqual(t, ev.Progress, lastProgress, "progress went backwards at %+v", ev)
		lastStage = rank
		lastProgress = ev.Progress
		seen[ev.Stage] = true
	}
	for stage := range order {
		assert.True(t, seen[stage], "stage %q never emitted", stage)
	}
}

func TestUploadEmptyBufferWritesNothing(t *testing.T) {
	fs := newFakeStore()
	hist := history.NewStore()
	o := NewOrchestrator(fs, hist, testCfg, nil, nil)

	_, err := o.Upload(context.Background(), nil, nil)

	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, KindInvalidInput, uerr.Kind)
	assert.Equal(t, 0, fs.putCount())
	assert.Equal(t, 0, hist.Len())
}

func TestUploadMissingConfigNamesFields(t *testing.T) {
	cfg := storage.Config{AccessKeyID: "key", SecretAccessKey: "secret"}
	o := NewOrchestrator(nil, history.NewStore(), cfg, nil, nil)

	_, err := o.Upload(context.Background(), []byte("audio"), nil)

	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, KindConfigurationMissing, uerr.Kind)
	assert.Contains(t, uerr.Message, "account id")
	assert.Contains(t, uerr.Message, "bucket")
	assert.NotContains(t, uerr.Message, "access key id")
}

func TestUploadPutErrorClassified(t *testing.T) {
	fs := newFakeStore()
	fs.putErr = errors.New("operation error S3: PutObject, AccessDenied")
	hist := history.NewStore()
	o := NewOrchestrator(fs, hist, testCfg, nil, nil)

	onProgress, events := collectEvents()
	_, err := o.Upload(context.Background(), []byte("audio"), onProgress)

	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, KindAccessDenied, uerr.Kind)
	assert.ErrorIs(t, err, fs.putErr)
	assert.Equal(t, 0, hist.Len())

	for _, ev := range *events {
		assert.NotEqual(t, StageComplete, ev.Stage)
	}
}

func TestUploadSyntheticTicksStayBelowStageBoundary(t *testing.T) {
	fs := newFakeStore()
	fs.putDelay = 950 * time.Millisecond
	o := NewOrchestrator(fs, history.NewStore(), testCfg, nil, nil)

	onProgress, events := collectEvents()
	_, err := o.Upload(context.Background(), []byte("audio"), onProgress)
	require.NoError(t, err)

	ticks := 0
	for _, ev := range *events {
		if ev.Stage == StageUploading && ev.Progress > 25 && ev.Progress < 50 {
			ticks++
			assert.LessOrEqual(t, ev.Progress, uploadTickCap)
		}
	}
	assert.GreaterOrEqual(t, ticks, 1, "expected synthetic progress while the write was in flight")
}

func TestUploadTimeoutDiscardsLateSuccess(t *testing.T) {
	fs := newFakeStore()
	fs.putDelay = 300 * time.Millisecond
	fs.ignoreCtx = true
	hist := history.NewStore()
	o := NewOrchestrator(fs, hist, testCfg, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := o.Upload(ctx, []byte("audio"), nil)

	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, KindTimeout, uerr.Kind)

	// let the in-flight write settle; its late result must not surface
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 0, hist.Len())
}

func TestUploadSignedURLFailureNonFatal(t *testing.T) {
	fs := newFakeStore()
	fs.signErr = errors.New("presign unavailable")
	hist := history.NewStore()
	o := NewOrchestrator(fs, hist, testCfg, nil, nil)

	key, err := o.Upload(context.Background(), []byte("audio"), nil)
	require.NoError(t, err)

	snap := hist.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, key, snap[0].Key)
	assert.Empty(t, snap[0].SignedURL)
}

func TestUploadNotifierOutcomeShapesMessage(t *testing.T) {
	t.Run("notified", func(t *testing.T) {
		fs := newFakeStore()
		var notified string
		notifier := NotifierFunc(func(_ context.Context, key, _ string) error {
			notified = key
			return nil
		})
		o := NewOrchestrator(fs, history.NewStore(), testCfg, notifier, nil)

		onProgress, events := collectEvents()
		key, err := o.Upload(context.Background(), []byte("audio"), onProgress)
		require.NoError(t, err)
		assert.Equal(t, key, notified)

		assert.True(t, eventMessageContains(*events, "transcription requested"))
	})

	t.Run("notify failed", func(t *testing.T) {
		fs := newFakeStore()
		notifier := NotifierFunc(func(context.Context, string, string) error {
			return errors.New("connection refused")
		})
		hist := history.NewStore()
		o := NewOrchestrator(fs, hist, testCfg, notifier, nil)

		onProgress, events := collectEvents()
		_, err := o.Upload(context.Background(), []byte("audio"), onProgress)
		require.NoError(t, err, "notify failure must not fail the upload")
		assert.Equal(t, 1, hist.Len())

		assert.True(t, eventMessageContains(*events, "unreachable"))
	})
}

func eventMessageContains(events []Event, sub string) bool {
	for _, ev := range events {
		if strings.Contains(ev.Message, sub) {
			return true
		}
	}
	return false
}

func TestDeleteRemovesStoreAndHistoryTogether(t *testing.T) {
	fs := newFakeStore()
	hist := history.NewStore()
	o := NewOrchestrator(fs, hist, testCfg, nil, nil)

	key, err := o.Upload(context.Background(), []byte("audio"), nil)
	require.NoError(t, err)
	require.True(t, fs.has(key))
	require.Equal(t, 1, hist.Len())

	require.NoError(t, o.Delete(context.Background(), key))
	assert.False(t, fs.has(key))
	assert.Equal(t, 0, hist.Len())
}

func TestDeleteStoreErrorKeepsHistory(t *testing.T) {
	fs := newFakeStore()
	hist := history.NewStore()
	o := NewOrchestrator(fs, hist, testCfg, nil, nil)

	key, err := o.Upload(context.Background(), []byte("audio"), nil)
	require.NoError(t, err)

	fs.delErr = errors.New("operation error S3: DeleteObject, AccessDenied")
	err = o.Delete(context.Background(), key)

	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, KindAccessDenied, uerr.Kind)
	assert.Equal(t, 1, hist.Len(), "history must not drop the entry when the store delete fails")
}
