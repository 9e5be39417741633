// Package fcm adapts Firebase Cloud Messaging to the domain.Gateway
// contract.
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/pushrelay/dispatch-service/internal/domain"
)

// MessagingClient is the subset of the Firebase Messaging API the gateway
// uses, so the concrete client can be mocked in unit tests.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Gateway implements domain.Gateway over the Firebase Messaging SDK. The
// SDK manages its own OAuth flow from the service-account file, so the
// bearer credential supplied by the dispatch engine is not used here.
type Gateway struct {
	client MessagingClient
	logger *slog.Logger
}

// New wraps a messaging client. *messaging.Client satisfies MessagingClient.
func New(client MessagingClient, logger *slog.Logger) *Gateway {
	return &Gateway{
		client: client,
		logger: logger.With("component", "fcm_gateway"),
	}
}

// NewClient constructs the process-wide Firebase messaging client from a
// service-account credentials file. Build it once at startup and inject it;
// tear it down with the process.
func NewClient(ctx context.Context, credentialsFile string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}

	return client, nil
}

// Send delivers one envelope and maps SDK errors onto the classification
// contract.
func (g *Gateway) Send(ctx context.Context, envelope *domain.Envelope, _ string) (string, error) {
	msg := &messaging.Message{
		Token: envelope.Token,
		Data:  envelope.Data,
	}
	if envelope.Title != "" || envelope.Body != "" {
		msg.Notification = &messaging.Notification{
			Title: envelope.Title,
			Body:  envelope.Body,
		}
	}

	android := &messaging.AndroidConfig{}
	if envelope.Priority == domain.PriorityHigh {
		android.Priority = "high"
	} else {
		android.Priority = "normal"
	}
	if envelope.TTL > 0 {
		ttl := envelope.TTL
		android.TTL = &ttl
	}
	msg.Android = android

	id, err := g.client.Send(ctx, msg)
	if err != nil {
		return "", g.classify(err)
	}

	return id, nil
}

func (g *Gateway) classify(err error) *domain.GatewayError {
	switch {
	case messaging.IsRegistrationTokenNotRegistered(err):
		return domain.NewGatewayError(0, domain.ClassUnregistered, err.Error())

	case messaging.IsInvalidArgument(err):
		return domain.NewGatewayError(0, domain.ClassPermanent, err.Error())

	default:
		// Network, quota, and server-side errors are expected to resolve;
		// the SDK refreshes its own OAuth token, so auth failures surface
		// here too and a retry is the right response.
		g.logger.Debug("fcm send failed, classified transient", "error", err)
		return domain.NewGatewayError(0, domain.ClassTransient, err.Error())
	}
}
