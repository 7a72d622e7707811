package socketio

import (
	"context"
	"testing"
	"time"

	"github.com/specialistvlad/stepgrid/internal/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		in, err := ParseInput(step.Args{"url": "http://localhost:3000/socket.io/", "on_event": "pong"})
		require.NoError(t, err)
		assert.Equal(t, "/", in.Namespace)
		assert.Equal(t, 10*time.Second, in.Timeout)
		assert.Empty(t, in.EmitEvent)
		assert.False(t, in.InsecureSkipVerify)
	})

	t.Run("all arguments", func(t *testing.T) {
		in, err := ParseInput(step.Args{
			"url":                  "https://events.local/socket.io/",
			"on_event":             "pong",
			"namespace":            "/live",
			"emit_event":           "ping",
			"emit_data":            map[string]any{"n": 1},
			"timeout":              "2s",
			"insecure_skip_verify": true,
		})
		require.NoError(t, err)
		assert.Equal(t, &Input{
			URL:                "https://events.local/socket.io/",
			Namespace:          "/live",
			OnEvent:            "pong",
			EmitEvent:          "ping",
			EmitData:           map[string]any{"n": 1},
			Timeout:            2 * time.Second,
			InsecureSkipVerify: true,
		}, in)
	})

	t.Run("invalid timeout", func(t *testing.T) {
		_, err := ParseInput(step.Args{"url": "http://x", "on_event": "e", "timeout": "soon"})
		assert.ErrorContains(t, err, `invalid timeout "soon"`)
	})

	t.Run("unknown arguments are rejected", func(t *testing.T) {
		_, err := ParseInput(step.Args{"url": "http://x", "on_event": "e", "room": "lobby"})
		assert.ErrorContains(t, err, "unsupported argument 'room'")
	})

	t.Run("missing arguments are permanent failures", func(t *testing.T) {
		_, err := (&Module{}).Emit(context.Background(), step.Args{"url": "http://x"})
		require.Error(t, err)
		assert.False(t, step.Retry(3, nil).Retryable(err))
	})
}
