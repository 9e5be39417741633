package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/dispatch-service/internal/dispatch"
	"github.com/pushrelay/dispatch-service/internal/domain"
)

type fakeBatcher struct {
	dispatchFn func(ctx context.Context, messages []dispatch.Message) (*domain.BatchResult, error)
	got        []dispatch.Message
}

func (f *fakeBatcher) Dispatch(ctx context.Context, messages []dispatch.Message) (*domain.BatchResult, error) {
	f.got = messages
	return f.dispatchFn(ctx, messages)
}

type fakeRecorder struct {
	recorded map[uuid.UUID][]domain.Outcome
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{recorded: make(map[uuid.UUID][]domain.Outcome)}
}

func (f *fakeRecorder) Record(ctx context.Context, batchID uuid.UUID, outcomes []domain.Outcome) error {
	f.recorded[batchID] = outcomes
	return nil
}

func (f *fakeRecorder) GetByBatchID(ctx context.Context, batchID uuid.UUID) ([]domain.Outcome, error) {
	outcomes, ok := f.recorded[batchID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return outcomes, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestDispatchHandler_Dispatch(t *testing.T) {
	batchID := uuid.New()

	t.Run("dispatches batch and returns outcomes", func(t *testing.T) {
		batcher := &fakeBatcher{
			dispatchFn: func(ctx context.Context, messages []dispatch.Message) (*domain.BatchResult, error) {
				return &domain.BatchResult{
					BatchID: batchID,
					Outcomes: []domain.Outcome{
						{Index: 0, Recipient: "token-1", Status: domain.StatusDelivered, MessageID: "msg-1", Attempts: 1},
					},
					FinishedAt: time.Now().UTC(),
				}, nil
			},
		}
		recorder := newFakeRecorder()
		h := NewDispatchHandler(batcher, recorder, nil, nil, testLogger())

		body := `{"messages": [{"token": "token-1", "title": "Hello", "priority": "high", "ttl_seconds": 60}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		h.Dispatch(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Success bool             `json:"success"`
			Data    DispatchResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, batchID, resp.Data.BatchID)
		assert.Equal(t, 1, resp.Data.Delivered)
		require.Len(t, resp.Data.Outcomes, 1)
		assert.Equal(t, domain.StatusDelivered, resp.Data.Outcomes[0].Status)

		// Request fields map onto the dispatch message.
		require.Len(t, batcher.got, 1)
		assert.Equal(t, "token-1", batcher.got[0].Token)
		assert.Equal(t, "Hello", batcher.got[0].Payload.Title)
		assert.Equal(t, domain.PriorityHigh, batcher.got[0].Priority)
		assert.Equal(t, 60*time.Second, batcher.got[0].TTL)

		// Outcomes were handed to the delivery log.
		assert.Len(t, recorder.recorded[batchID], 1)
	})

	t.Run("returns 400 for empty batch", func(t *testing.T) {
		batcher := &fakeBatcher{
			dispatchFn: func(ctx context.Context, messages []dispatch.Message) (*domain.BatchResult, error) {
				return nil, domain.ErrEmptyBatch
			},
		}
		h := NewDispatchHandler(batcher, nil, nil, nil, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", bytes.NewBufferString(`{"messages": []}`))
		rec := httptest.NewRecorder()

		h.Dispatch(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "EMPTY_BATCH")
	})

	t.Run("returns 400 for oversized batch", func(t *testing.T) {
		batcher := &fakeBatcher{
			dispatchFn: func(ctx context.Context, messages []dispatch.Message) (*domain.BatchResult, error) {
				return nil, domain.ErrBatchSizeExceeded
			},
		}
		h := NewDispatchHandler(batcher, nil, nil, nil, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", bytes.NewBufferString(`{"messages": [{"token": "t"}]}`))
		rec := httptest.NewRecorder()

		h.Dispatch(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "BATCH_SIZE_EXCEEDED")
	})

	t.Run("returns 503 when credentials are unavailable", func(t *testing.T) {
		batcher := &fakeBatcher{
			dispatchFn: func(ctx context.Context, messages []dispatch.Message) (*domain.BatchResult, error) {
				return nil, domain.ErrCredentialUnavailable
			},
		}
		h := NewDispatchHandler(batcher, nil, nil, nil, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", bytes.NewBufferString(`{"messages": [{"token": "t", "title": "x"}]}`))
		rec := httptest.NewRecorder()

		h.Dispatch(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "CREDENTIAL_UNAVAILABLE")
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		h := NewDispatchHandler(&fakeBatcher{}, nil, nil, nil, testLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", bytes.NewBufferString(`{not json`))
		rec := httptest.NewRecorder()

		h.Dispatch(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	})

	t.Run("rejects unknown priority at the request level", func(t *testing.T) {
		h := NewDispatchHandler(&fakeBatcher{}, nil, nil, nil, testLogger())

		body := `{"messages": [{"token": "t", "title": "x", "priority": "urgent"}]}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()

		h.Dispatch(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDispatchHandler_GetBatch(t *testing.T) {
	newRouter := func(h *DispatchHandler) *chi.Mux {
		r := chi.NewRouter()
		r.Get("/api/v1/batches/{id}", h.GetBatch)
		return r
	}

	t.Run("returns recorded outcomes", func(t *testing.T) {
		batchID := uuid.New()
		recorder := newFakeRecorder()
		recorder.recorded[batchID] = []domain.Outcome{
			{Index: 0, Recipient: "token-1", Status: domain.StatusDelivered, MessageID: "msg-1", Attempts: 1},
			{Index: 1, Recipient: "token-2", Status: domain.StatusPermanentFailure, Reason: "invalid payload", Attempts: 1},
		}
		h := NewDispatchHandler(&fakeBatcher{}, recorder, nil, nil, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+batchID.String(), nil)
		rec := httptest.NewRecorder()

		newRouter(h).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "token-1")
		assert.Contains(t, rec.Body.String(), "permanent_failure")
	})

	t.Run("returns 404 for unknown batch", func(t *testing.T) {
		h := NewDispatchHandler(&fakeBatcher{}, newFakeRecorder(), nil, nil, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()

		newRouter(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("returns 400 for malformed batch id", func(t *testing.T) {
		h := NewDispatchHandler(&fakeBatcher{}, newFakeRecorder(), nil, nil, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/not-a-uuid", nil)
		rec := httptest.NewRecorder()

		newRouter(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns 501 when delivery log is disabled", func(t *testing.T) {
		h := NewDispatchHandler(&fakeBatcher{}, nil, nil, nil, testLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()

		newRouter(h).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})
}
