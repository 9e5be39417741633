package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEnvelope(t *testing.T) {
	t.Run("title only", func(t *testing.T) {
		env, err := BuildEnvelope("tok", Payload{Title: "Hi"}, "", 0)
		require.NoError(t, err)
		assert.Equal(t, "tok", env.Token)
		assert.Equal(t, "Hi", env.Title)
		assert.Equal(t, PriorityNormal, env.Priority)
	})

	t.Run("data only is valid", func(t *testing.T) {
		env, err := BuildEnvelope("tok", Payload{Data: map[string]string{"k": "v"}}, PriorityHigh, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"k": "v"}, env.Data)
		assert.Equal(t, PriorityHigh, env.Priority)
		assert.Equal(t, time.Minute, env.TTL)
	})

	t.Run("entirely empty payload", func(t *testing.T) {
		env, err := BuildEnvelope("tok", Payload{}, "", 0)
		assert.ErrorIs(t, err, ErrInvalidPayload)
		assert.Nil(t, env)
	})

	t.Run("unknown priority", func(t *testing.T) {
		_, err := BuildEnvelope("tok", Payload{Title: "Hi"}, Priority("urgent"), 0)
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("data map is copied", func(t *testing.T) {
		data := map[string]string{"k": "v"}
		env, err := BuildEnvelope("tok", Payload{Data: data}, "", 0)
		require.NoError(t, err)

		data["k"] = "mutated"
		data["extra"] = "x"

		assert.Equal(t, "v", env.Data["k"])
		assert.NotContains(t, env.Data, "extra")
	})

	t.Run("deterministic", func(t *testing.T) {
		p := Payload{Title: "Hi", Body: "there", Data: map[string]string{"a": "1", "b": "2"}}
		first, err := BuildEnvelope("tok", p, PriorityHigh, time.Hour)
		require.NoError(t, err)
		second, err := BuildEnvelope("tok", p, PriorityHigh, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}
