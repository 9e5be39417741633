// Package gateway contains messaging-gateway clients. All outbound sends go
// through a domain.Gateway implementation; nothing else talks to the vendor.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pushrelay/dispatch-service/internal/domain"
)

// HTTPGateway implements domain.Gateway against a vendor HTTPS endpoint that
// accepts a serialized envelope with a bearer credential and answers with a
// message id or a classifiable error.
type HTTPGateway struct {
	client   *http.Client
	endpoint string
}

// NewHTTPGateway creates an HTTPGateway. The timeout bounds each request in
// addition to the per-attempt context the dispatch engine supplies.
func NewHTTPGateway(endpoint string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}
}

type sendRequest struct {
	To           string            `json:"to"`
	Notification *notificationDoc  `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Priority     string            `json:"priority,omitempty"`
	TTLSeconds   int64             `json:"ttl_seconds,omitempty"`
}

type notificationDoc struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

// Send posts the envelope and maps the response onto the three-way
// classification contract: success with a message id, transient error
// (optionally with a retry-after hint), or permanent error.
func (g *HTTPGateway) Send(ctx context.Context, envelope *domain.Envelope, credential string) (string, error) {
	req := sendRequest{
		To:       envelope.Token,
		Data:     envelope.Data,
		Priority: string(envelope.Priority),
	}
	if envelope.Title != "" || envelope.Body != "" {
		req.Notification = &notificationDoc{Title: envelope.Title, Body: envelope.Body}
	}
	if envelope.TTL > 0 {
		req.TTLSeconds = int64(envelope.TTL.Seconds())
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal send request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// Transport errors (DNS, reset, timeout) are expected to resolve.
		return "", domain.NewGatewayError(0, domain.ClassTransient, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.NewGatewayError(0, domain.ClassTransient, "failed to read response: "+err.Error())
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var parsed sendResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", domain.NewGatewayError(resp.StatusCode, domain.ClassPermanent,
				"unparseable success response: "+err.Error())
		}
		return parsed.MessageID, nil
	}

	return "", classify(resp, respBody)
}

func classify(resp *http.Response, body []byte) *domain.GatewayError {
	reason := errorReason(body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.NewGatewayError(resp.StatusCode, domain.ClassUnauthenticated, reason)

	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The vendor reports unknown or expired recipient tokens here.
		return domain.NewGatewayError(resp.StatusCode, domain.ClassUnregistered, reason)

	case resp.StatusCode == http.StatusTooManyRequests:
		gwErr := domain.NewGatewayError(resp.StatusCode, domain.ClassTransient, reason)
		gwErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return gwErr

	case resp.StatusCode >= 500:
		return domain.NewGatewayError(resp.StatusCode, domain.ClassTransient, reason)

	default:
		return domain.NewGatewayError(resp.StatusCode, domain.ClassPermanent, reason)
	}
}

func errorReason(body []byte) string {
	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	if len(body) > 0 {
		const maxReason = 256
		if len(body) > maxReason {
			body = body[:maxReason]
		}
		return string(body)
	}
	return "no error detail"
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
