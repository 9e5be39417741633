package domain

import (
	"fmt"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal:
		return true
	}
	return false
}

// Payload is the caller-supplied notification content. At least one of
// title, body, or data must be non-empty.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Empty reports whether the payload carries no content at all.
func (p Payload) Empty() bool {
	return p.Title == "" && p.Body == "" && len(p.Data) == 0
}

// Envelope is a fully assembled notification request, immutable once built.
type Envelope struct {
	Token    string            `json:"token"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority Priority          `json:"priority"`
	TTL      time.Duration     `json:"ttl,omitempty"`
}

// BuildEnvelope assembles an Envelope from a recipient token and payload.
// It fails when the payload is entirely empty. The data map is copied so
// later mutation by the caller cannot change the envelope. Deterministic:
// the same inputs always yield a structurally identical envelope.
func BuildEnvelope(token string, payload Payload, priority Priority, ttl time.Duration) (*Envelope, error) {
	if payload.Empty() {
		return nil, fmt.Errorf("%w: title, body, and data are all empty", ErrInvalidPayload)
	}

	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidPayload, priority)
	}

	var data map[string]string
	if len(payload.Data) > 0 {
		data = make(map[string]string, len(payload.Data))
		for k, v := range payload.Data {
			data[k] = v
		}
	}

	return &Envelope{
		Token:    token,
		Title:    payload.Title,
		Body:     payload.Body,
		Data:     data,
		Priority: priority,
		TTL:      ttl,
	}, nil
}
