package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushrelay/dispatch-service/internal/domain"
)

func testEnvelope(t *testing.T) *domain.Envelope {
	t.Helper()
	envelope, err := domain.BuildEnvelope("device-token", domain.Payload{
		Title: "Hi",
		Body:  "there",
		Data:  map[string]string{"k": "v"},
	}, domain.PriorityHigh, time.Minute)
	require.NoError(t, err)
	return envelope
}

func TestHTTPGateway_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("success returns message id", func(t *testing.T) {
		var gotAuth string
		var gotBody sendRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(sendResponse{MessageID: "msg-1"})
		}))
		defer server.Close()

		g := NewHTTPGateway(server.URL, time.Second)
		id, err := g.Send(ctx, testEnvelope(t), "cred-abc")

		require.NoError(t, err)
		assert.Equal(t, "msg-1", id)
		assert.Equal(t, "Bearer cred-abc", gotAuth)
		assert.Equal(t, "device-token", gotBody.To)
		assert.Equal(t, "high", gotBody.Priority)
		assert.Equal(t, int64(60), gotBody.TTLSeconds)
		require.NotNil(t, gotBody.Notification)
		assert.Equal(t, "Hi", gotBody.Notification.Title)
	})

	t.Run("429 is transient with retry-after hint", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(sendResponse{Error: "quota exceeded"})
		}))
		defer server.Close()

		g := NewHTTPGateway(server.URL, time.Second)
		_, err := g.Send(ctx, testEnvelope(t), "cred")

		var gwErr *domain.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, domain.ClassTransient, gwErr.Class)
		assert.Equal(t, 7*time.Second, gwErr.RetryAfter)
		assert.Equal(t, "quota exceeded", gwErr.Reason)
	})

	t.Run("500 is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal", http.StatusInternalServerError)
		}))
		defer server.Close()

		g := NewHTTPGateway(server.URL, time.Second)
		_, err := g.Send(ctx, testEnvelope(t), "cred")

		var gwErr *domain.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, domain.ClassTransient, gwErr.Class)
	})

	t.Run("401 is unauthenticated", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		g := NewHTTPGateway(server.URL, time.Second)
		_, err := g.Send(ctx, testEnvelope(t), "cred")

		var gwErr *domain.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, domain.ClassUnauthenticated, gwErr.Class)
	})

	t.Run("410 is unregistered", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGone)
			json.NewEncoder(w).Encode(sendResponse{Error: "UNREGISTERED"})
		}))
		defer server.Close()

		g := NewHTTPGateway(server.URL, time.Second)
		_, err := g.Send(ctx, testEnvelope(t), "cred")

		var gwErr *domain.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, domain.ClassUnregistered, gwErr.Class)
		assert.True(t, gwErr.Permanent())
	})

	t.Run("400 is permanent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(sendResponse{Error: "malformed payload"})
		}))
		defer server.Close()

		g := NewHTTPGateway(server.URL, time.Second)
		_, err := g.Send(ctx, testEnvelope(t), "cred")

		var gwErr *domain.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, domain.ClassPermanent, gwErr.Class)
		assert.Equal(t, "malformed payload", gwErr.Reason)
	})

	t.Run("transport error is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // connection refused

		g := NewHTTPGateway(server.URL, time.Second)
		_, err := g.Send(ctx, testEnvelope(t), "cred")

		var gwErr *domain.GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, domain.ClassTransient, gwErr.Class)
	})
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("garbage"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-5"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	hint := parseRetryAfter(future)
	assert.Greater(t, hint, 50*time.Second)
}
