package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	v1 "github.com/playhead-lab/playhead/internal/api/v1"
	httperr "github.com/playhead-lab/playhead/internal/core/errors"
	"github.com/playhead-lab/playhead/internal/progress"
	"github.com/playhead-lab/playhead/internal/storage"
)

// brokenSnapshotter simulates a persistence medium whose writes fail.
type brokenSnapshotter struct{}

func (brokenSnapshotter) Save(ctx context.Context, snap *storage.Snapshot) error {
	return errors.New("disk full")
}

func (brokenSnapshotter) Load(ctx context.Context) (*storage.Snapshot, error) {
	return nil, storage.ErrNotFound
}

func newTestRouter(t *testing.T, snap storage.Snapshotter) (*gin.Engine, *progress.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := progress.Open(context.Background(), snap)
	svc := NewService(store, 1)

	r := gin.New()
	svc.RegisterRoutes(r)
	return r, store
}

func postBody(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSubmitHandler_Success(t *testing.T) {
	r, store := newTestRouter(t, storage.NewMemorySnapshotter())

	resp := postBody(t, r, "/v1/progress", `{"user_id":"user-1","video_id":"video-1","progress_seconds":42.5}`)
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())

	var sample v1.Sample
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &sample))
	require.NotEmpty(t, sample.ID)
	require.False(t, sample.CreatedAt.IsZero())
	require.Equal(t, "user-1", sample.UserID)
	require.Equal(t, "video-1", sample.VideoID)
	require.True(t, sample.ProgressSeconds.Equal(decimal.RequireFromString("42.5")))

	require.Equal(t, 1, store.Stats().PendingSamples)
}

func TestSubmitHandler_InvalidJSON(t *testing.T) {
	r, store := newTestRouter(t, storage.NewMemorySnapshotter())

	resp := postBody(t, r, "/v1/progress", "not json")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	var errResp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
	require.Equal(t, httperr.HttpInvalidJsonError, errResp.ErrorType)
	require.Zero(t, store.Stats().PendingSamples)
}

func TestSubmitHandler_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing user_id", body: `{"video_id":"video-1","progress_seconds":10}`},
		{name: "missing video_id", body: `{"user_id":"user-1","progress_seconds":10}`},
		{name: "negative progress", body: `{"user_id":"user-1","video_id":"video-1","progress_seconds":-1}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, store := newTestRouter(t, storage.NewMemorySnapshotter())

			resp := postBody(t, r, "/v1/progress", tc.body)
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

			var errResp httperr.ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
			require.Equal(t, httperr.HttpInvalidSampleError, errResp.ErrorType)

			// Rejected before any state mutation.
			require.Zero(t, store.Stats().PendingSamples)
		})
	}
}

func TestSubmitHandler_OversizedBody(t *testing.T) {
	r, _ := newTestRouter(t, storage.NewMemorySnapshotter())

	big := bytes.Repeat([]byte("x"), 1024*1024+1)
	resp := postBody(t, r, "/v1/progress", string(big))
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
}

func TestSubmitHandler_PersistenceFailure(t *testing.T) {
	r, store := newTestRouter(t, brokenSnapshotter{})

	resp := postBody(t, r, "/v1/progress", `{"user_id":"user-1","video_id":"video-1","progress_seconds":10}`)
	require.Equal(t, http.StatusInternalServerError, resp.Code)

	var errResp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
	require.Equal(t, httperr.HttpPersistenceError, errResp.ErrorType)

	// "Maybe durable": the sample still landed in memory.
	require.Equal(t, 1, store.Stats().PendingSamples)
}

func TestMergeHandler_ReturnsCounts(t *testing.T) {
	r, store := newTestRouter(t, storage.NewMemorySnapshotter())

	for _, body := range []string{
		`{"user_id":"user-1","video_id":"video-1","progress_seconds":5}`,
		`{"user_id":"user-1","video_id":"video-1","progress_seconds":12}`,
		`{"user_id":"user-2","video_id":"video-1","progress_seconds":3}`,
	} {
		resp := postBody(t, r, "/v1/progress", body)
		require.Equal(t, http.StatusAccepted, resp.Code)
	}

	resp := postBody(t, r, "/v1/merge", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var result map[string]int
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, 2, result["scanned_keys"])
	require.Equal(t, 2, result["raised_keys"])

	rec, ok := store.Committed("user-1", "video-1")
	require.True(t, ok)
	require.True(t, rec.FurthestSeconds.Equal(decimal.NewFromInt(12)))

	// Idempotent: nothing pending, nothing raised.
	resp = postBody(t, r, "/v1/merge", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Zero(t, result["scanned_keys"])
	require.Zero(t, result["raised_keys"])
}
