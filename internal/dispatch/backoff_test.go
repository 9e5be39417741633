package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	base := 500 * time.Millisecond
	max := 4 * time.Second

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1 * time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 4 * time.Second}, // capped
		{0, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffDelay(base, max, tt.retry), "retry %d", tt.retry)
	}
}
