package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeStatus is the terminal state of a dispatched envelope.
type OutcomeStatus string

const (
	StatusDelivered        OutcomeStatus = "delivered"
	StatusTransientFailure OutcomeStatus = "transient_failure"
	StatusPermanentFailure OutcomeStatus = "permanent_failure"
	StatusInvalidRecipient OutcomeStatus = "invalid_recipient"
)

// Outcome is produced exactly once per submitted message.
type Outcome struct {
	Index     int           `json:"index"`
	Recipient string        `json:"recipient"`
	Status    OutcomeStatus `json:"status"`
	MessageID string        `json:"message_id,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Attempts  int           `json:"attempts"`
}

// Delivered reports whether the gateway acknowledged the envelope.
func (o Outcome) Delivered() bool {
	return o.Status == StatusDelivered
}

// BatchResult holds one outcome per input message, in input order.
// The caller owns it after return; the dispatch core keeps no reference.
type BatchResult struct {
	BatchID    uuid.UUID `json:"batch_id"`
	Outcomes   []Outcome `json:"outcomes"`
	FinishedAt time.Time `json:"finished_at"`
}

// DeliveredCount returns the number of delivered outcomes.
func (r *BatchResult) DeliveredCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Delivered() {
			n++
		}
	}
	return n
}
