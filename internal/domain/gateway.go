package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Gateway is the messaging gateway the dispatch engine sends envelopes to.
// Implementations return the gateway-assigned message id on success, or a
// *GatewayError carrying the failure classification. The dispatch engine is
// the only component allowed to call Send.
type Gateway interface {
	Send(ctx context.Context, envelope *Envelope, credential string) (string, error)
}

// CredentialProvider supplies short-lived bearer tokens for gateway
// authentication. Errors wrap ErrCredentialUnavailable.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// RefreshableCredentialProvider can drop a cached credential so the next
// Token call fetches a fresh one. The dispatch engine invalidates on
// authentication failure from the gateway, never on a timer.
type RefreshableCredentialProvider interface {
	CredentialProvider
	Invalidate()
}

// SuppressionList remembers recipient tokens the gateway reported as
// unregistered, so later batches skip them without a gateway call.
type SuppressionList interface {
	IsSuppressed(ctx context.Context, token string) (bool, error)
	Suppress(ctx context.Context, token string, ttl time.Duration) error
}

// RateLimiter gates outbound gateway sends.
type RateLimiter interface {
	// Wait blocks until a send is allowed or the context is done.
	Wait(ctx context.Context) error
}

// DeliveryRecorder persists terminal outcomes for audit.
type DeliveryRecorder interface {
	Record(ctx context.Context, batchID uuid.UUID, outcomes []Outcome) error
	GetByBatchID(ctx context.Context, batchID uuid.UUID) ([]Outcome, error)
}
