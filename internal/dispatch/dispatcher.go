// Package dispatch implements the push-notification dispatch engine: it
// validates recipients, builds envelopes, sends them to the messaging
// gateway with retry and backoff, and aggregates per-message outcomes.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pushrelay/dispatch-service/internal/domain"
)

const (
	defaultConcurrency    = 10
	defaultMaxRetries     = 3
	defaultBaseBackoff    = 500 * time.Millisecond
	defaultMaxBackoff     = 4 * time.Second
	defaultSendTimeout    = 10 * time.Second
	defaultMaxBatchSize   = 1000
	defaultSuppressionTTL = 30 * 24 * time.Hour
)

// Config controls retry, backoff, and concurrency behavior.
type Config struct {
	// Concurrency bounds the worker pool; it is a backpressure control
	// toward the gateway, not an optimization knob.
	Concurrency    int
	MaxRetries     int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	SendTimeout    time.Duration
	MaxTokenLength int
	MaxBatchSize   int
	SuppressionTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = defaultBaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
	if c.MaxTokenLength <= 0 {
		c.MaxTokenLength = domain.DefaultMaxTokenLength
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = defaultMaxBatchSize
	}
	if c.SuppressionTTL <= 0 {
		c.SuppressionTTL = defaultSuppressionTTL
	}
	return c
}

// Message is one (recipient, payload) pair submitted by the caller.
type Message struct {
	Token    string
	Payload  domain.Payload
	Priority domain.Priority
	TTL      time.Duration
}

// Dispatcher sends batches of messages to the messaging gateway.
// It is safe for concurrent use.
type Dispatcher struct {
	gateway     domain.Gateway
	credentials domain.CredentialProvider
	suppressed  domain.SuppressionList
	limiter     domain.RateLimiter
	logger      *slog.Logger
	cfg         Config
}

// NewDispatcher creates a new Dispatcher. The credential provider should be
// a caching one (see internal/credentials) so a batch fetches the credential
// at most once; the dispatcher invalidates it on authentication failure.
func NewDispatcher(
	gateway domain.Gateway,
	credentials domain.CredentialProvider,
	logger *slog.Logger,
	cfg Config,
) *Dispatcher {
	return &Dispatcher{
		gateway:     gateway,
		credentials: credentials,
		logger:      logger.With("component", "dispatcher"),
		cfg:         cfg.withDefaults(),
	}
}

// SetSuppressionList enables skipping recipients previously reported
// unregistered by the gateway.
func (d *Dispatcher) SetSuppressionList(list domain.SuppressionList) {
	d.suppressed = list
}

// SetRateLimiter gates each gateway send on the limiter.
func (d *Dispatcher) SetRateLimiter(limiter domain.RateLimiter) {
	d.limiter = limiter
}

// Dispatch sends every message and returns exactly one outcome per input,
// in input order. Individual message failures never fail the call; only an
// empty or oversized batch, or credentials being unavailable before any
// send, surface as a call-level error.
//
// On ctx cancellation in-flight sends complete, no new sends start, and
// unfinished messages are reported as transient failures with reason
// "cancelled".
//
// The engine does not deduplicate: a send that timed out client-side but
// succeeded at the gateway will be delivered again on a later dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, messages []Message) (*domain.BatchResult, error) {
	if len(messages) == 0 {
		return nil, domain.ErrEmptyBatch
	}
	if len(messages) > d.cfg.MaxBatchSize {
		return nil, domain.ErrBatchSizeExceeded
	}

	// Nothing can be sent without a credential, so fail the whole batch up
	// front. This also warms the provider's cache for the sends below.
	if _, err := d.credentials.Token(ctx); err != nil {
		if errors.Is(err, domain.ErrCredentialUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCredentialUnavailable, err)
	}

	batchID := uuid.New()
	outcomes := make([]domain.Outcome, len(messages))

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := d.cfg.Concurrency
	if workers > len(messages) {
		workers = len(messages)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				// Workers write disjoint indices; wg.Wait below is the
				// merge point before the result is handed to the caller.
				outcomes[idx] = d.dispatchOne(ctx, idx, messages[idx])
			}
		}()
	}

	stopped := -1
feed:
	for i := range messages {
		select {
		case jobs <- i:
		case <-ctx.Done():
			stopped = i
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if stopped >= 0 {
		for i := stopped; i < len(messages); i++ {
			if outcomes[i].Status == "" {
				outcomes[i] = cancelledOutcome(i, messages[i].Token, 0)
			}
		}
	}

	result := &domain.BatchResult{
		BatchID:    batchID,
		Outcomes:   outcomes,
		FinishedAt: time.Now().UTC(),
	}

	d.logger.Info("batch dispatched",
		"batch_id", batchID,
		"size", len(messages),
		"delivered", result.DeliveredCount(),
	)

	return result, nil
}

// dispatchOne takes a single message to a terminal outcome. Invalid
// recipients and payloads short-circuit without contacting the gateway.
func (d *Dispatcher) dispatchOne(ctx context.Context, idx int, msg Message) domain.Outcome {
	if err := domain.ValidateToken(msg.Token, d.cfg.MaxTokenLength); err != nil {
		return domain.Outcome{
			Index:     idx,
			Recipient: msg.Token,
			Status:    domain.StatusInvalidRecipient,
			Reason:    err.Error(),
		}
	}

	envelope, err := domain.BuildEnvelope(msg.Token, msg.Payload, msg.Priority, msg.TTL)
	if err != nil {
		return domain.Outcome{
			Index:     idx,
			Recipient: msg.Token,
			Status:    domain.StatusPermanentFailure,
			Reason:    err.Error(),
		}
	}

	if d.suppressed != nil {
		suppressed, err := d.suppressed.IsSuppressed(ctx, msg.Token)
		if err != nil {
			d.logger.Warn("suppression check failed", "index", idx, "error", err)
		} else if suppressed {
			return domain.Outcome{
				Index:     idx,
				Recipient: msg.Token,
				Status:    domain.StatusPermanentFailure,
				Reason:    "recipient previously reported unregistered",
			}
		}
	}

	return d.send(ctx, idx, envelope)
}

// send runs the retry loop against the gateway for one envelope.
func (d *Dispatcher) send(ctx context.Context, idx int, envelope *domain.Envelope) domain.Outcome {
	attempts := 0

	for retry := 0; ; retry++ {
		if ctx.Err() != nil {
			return cancelledOutcome(idx, envelope.Token, attempts)
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return cancelledOutcome(idx, envelope.Token, attempts)
				}
				// The limiter backend failed, not the batch; report why.
				return domain.Outcome{
					Index:     idx,
					Recipient: envelope.Token,
					Status:    domain.StatusTransientFailure,
					Reason:    "rate limiter: " + err.Error(),
					Attempts:  attempts,
				}
			}
		}

		credential, err := d.credentials.Token(ctx)
		if err != nil {
			// Credentials vanished mid-batch; retry like a transient failure.
			if retry >= d.cfg.MaxRetries {
				return domain.Outcome{
					Index:     idx,
					Recipient: envelope.Token,
					Status:    domain.StatusTransientFailure,
					Reason:    err.Error(),
					Attempts:  attempts,
				}
			}
			if !d.wait(ctx, backoffDelay(d.cfg.BaseBackoff, d.cfg.MaxBackoff, retry+1)) {
				return cancelledOutcome(idx, envelope.Token, attempts)
			}
			continue
		}

		// The attempt context detaches from the batch context so that a
		// batch cancellation lets the in-flight send run to completion,
		// bounded by the send timeout.
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.SendTimeout)
		messageID, err := d.gateway.Send(sendCtx, envelope, credential)
		cancel()
		attempts++

		if err == nil {
			return domain.Outcome{
				Index:     idx,
				Recipient: envelope.Token,
				Status:    domain.StatusDelivered,
				MessageID: messageID,
				Attempts:  attempts,
			}
		}

		var gwErr *domain.GatewayError
		if errors.As(err, &gwErr) {
			if gwErr.Class == domain.ClassUnauthenticated {
				// Stale credential: refresh and retry in place, no backoff.
				if refreshable, ok := d.credentials.(domain.RefreshableCredentialProvider); ok {
					refreshable.Invalidate()
				}
				if retry >= d.cfg.MaxRetries {
					return domain.Outcome{
						Index:     idx,
						Recipient: envelope.Token,
						Status:    domain.StatusTransientFailure,
						Reason:    gwErr.Reason,
						Attempts:  attempts,
					}
				}
				continue
			}

			if gwErr.Permanent() {
				if gwErr.Class == domain.ClassUnregistered && d.suppressed != nil {
					if err := d.suppressed.Suppress(ctx, envelope.Token, d.cfg.SuppressionTTL); err != nil {
						d.logger.Warn("failed to suppress token", "index", idx, "error", err)
					}
				}
				return domain.Outcome{
					Index:     idx,
					Recipient: envelope.Token,
					Status:    domain.StatusPermanentFailure,
					Reason:    gwErr.Reason,
					Attempts:  attempts,
				}
			}
		}

		// Transient, whether classified by the gateway or an unclassified
		// transport error (timeout, connection reset).
		if retry >= d.cfg.MaxRetries {
			return domain.Outcome{
				Index:     idx,
				Recipient: envelope.Token,
				Status:    domain.StatusTransientFailure,
				Reason:    failureReason(err, gwErr),
				Attempts:  attempts,
			}
		}

		delay := backoffDelay(d.cfg.BaseBackoff, d.cfg.MaxBackoff, retry+1)
		if gwErr != nil && gwErr.RetryAfter > 0 {
			// Honor the gateway's hint, bounded by the backoff cap.
			delay = gwErr.RetryAfter
			if delay > d.cfg.MaxBackoff {
				delay = d.cfg.MaxBackoff
			}
		}

		d.logger.Warn("send will be retried",
			"index", idx,
			"retry", retry+1,
			"delay", delay,
			"error", err,
		)

		if !d.wait(ctx, delay) {
			return cancelledOutcome(idx, envelope.Token, attempts)
		}
	}
}

// wait sleeps for delay unless the batch context is cancelled first.
func (d *Dispatcher) wait(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func cancelledOutcome(idx int, token string, attempts int) domain.Outcome {
	return domain.Outcome{
		Index:     idx,
		Recipient: token,
		Status:    domain.StatusTransientFailure,
		Reason:    "cancelled",
		Attempts:  attempts,
	}
}

func failureReason(err error, gwErr *domain.GatewayError) string {
	if gwErr != nil {
		return gwErr.Reason
	}
	return err.Error()
}
