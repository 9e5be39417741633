package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pushrelay/dispatch-service/internal/dispatch"
	"github.com/pushrelay/dispatch-service/internal/domain"
)

// Batcher is the dispatch entry point consumed by the HTTP layer.
type Batcher interface {
	Dispatch(ctx context.Context, messages []dispatch.Message) (*domain.BatchResult, error)
}

// DispatchHandler handles batch dispatch requests
type DispatchHandler struct {
	dispatcher Batcher
	recorder   domain.DeliveryRecorder
	hub        *WebSocketHub
	metrics    *Metrics
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewDispatchHandler creates a new DispatchHandler. recorder and hub are
// optional; pass nil to disable the delivery log and outcome streaming.
func NewDispatchHandler(
	dispatcher Batcher,
	recorder domain.DeliveryRecorder,
	hub *WebSocketHub,
	metrics *Metrics,
	logger *slog.Logger,
) *DispatchHandler {
	return &DispatchHandler{
		dispatcher: dispatcher,
		recorder:   recorder,
		hub:        hub,
		metrics:    metrics,
		validate:   validator.New(),
		logger:     logger.With("handler", "dispatch"),
	}
}

// DispatchMessageRequest is one message within a dispatch request. Recipient
// and payload problems are reported per message in the response, not as
// request-level errors, so the only request-level validation is structural.
type DispatchMessageRequest struct {
	Token      string            `json:"token"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
	Priority   string            `json:"priority" validate:"omitempty,oneof=high normal"`
	TTLSeconds int               `json:"ttl_seconds" validate:"omitempty,min=0"`
}

// DispatchRequest is the request body for POST /api/v1/dispatch. Emptiness
// of the batch is judged by the engine, not the validator, so the error code
// is the same whether the field is missing or an empty array.
type DispatchRequest struct {
	Messages []DispatchMessageRequest `json:"messages" validate:"dive"`
}

// DispatchResponse is the response body for a dispatched batch
type DispatchResponse struct {
	BatchID    uuid.UUID        `json:"batch_id"`
	Delivered  int              `json:"delivered"`
	Outcomes   []domain.Outcome `json:"outcomes"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Dispatch handles POST /api/v1/dispatch
func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := DecodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	messages := make([]dispatch.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = dispatch.Message{
			Token: m.Token,
			Payload: domain.Payload{
				Title: m.Title,
				Body:  m.Body,
				Data:  m.Data,
			},
			Priority: domain.Priority(m.Priority),
			TTL:      time.Duration(m.TTLSeconds) * time.Second,
		}
	}

	start := time.Now()
	result, err := h.dispatcher.Dispatch(r.Context(), messages)
	if err != nil {
		HandleError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordBatch(result, time.Since(start))
	}
	if h.hub != nil {
		h.hub.BroadcastResult(result)
	}
	if h.recorder != nil {
		// The batch already finished; a failed audit write must not turn a
		// successful dispatch into an error response.
		if err := h.recorder.Record(r.Context(), result.BatchID, result.Outcomes); err != nil {
			h.logger.Error("failed to record batch outcomes",
				"batch_id", result.BatchID,
				"error", err,
			)
		}
	}

	JSON(w, http.StatusOK, DispatchResponse{
		BatchID:    result.BatchID,
		Delivered:  result.DeliveredCount(),
		Outcomes:   result.Outcomes,
		FinishedAt: result.FinishedAt,
	})
}

// GetBatch handles GET /api/v1/batches/{id}
func (h *DispatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	if h.recorder == nil {
		JSONError(w, http.StatusNotImplemented, "DELIVERY_LOG_DISABLED", "Delivery log is not configured", nil)
		return
	}

	batchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, http.StatusBadRequest, "INVALID_BATCH_ID", "Batch ID must be a valid UUID", nil)
		return
	}

	outcomes, err := h.recorder.GetByBatchID(r.Context(), batchID)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"batch_id": batchID,
		"outcomes": outcomes,
	})
}
