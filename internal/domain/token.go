package domain

import "fmt"

// DefaultMaxTokenLength is a defensive ceiling on recipient token size.
// Vendor tokens are typically well under 200 bytes.
const DefaultMaxTokenLength = 4096

// ValidateToken checks a recipient token before dispatch. Tokens are opaque:
// they are never parsed for meaning, only bounded. Pure function, no I/O.
func ValidateToken(token string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxTokenLength
	}
	if token == "" {
		return fmt.Errorf("%w: token is empty", ErrInvalidRecipient)
	}
	if len(token) > maxLen {
		return fmt.Errorf("%w: token exceeds %d bytes", ErrInvalidRecipient, maxLen)
	}
	return nil
}
