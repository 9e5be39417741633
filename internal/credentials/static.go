// Package credentials provides CredentialProvider implementations for
// gateway authentication.
package credentials

import (
	"context"
	"fmt"

	"github.com/pushrelay/dispatch-service/internal/domain"
)

// Static serves a fixed bearer token supplied through configuration.
type Static struct {
	token string
}

// NewStatic creates a Static provider.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

// Token returns the configured bearer token.
func (s *Static) Token(context.Context) (string, error) {
	if s.token == "" {
		return "", fmt.Errorf("%w: no bearer token configured", domain.ErrCredentialUnavailable)
	}
	return s.token, nil
}
