package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestZerologLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologLogger(zerolog.New(&buf))

	log.Info(context.Background(), "started", "addr", ":8080", "err", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, `"message":"started"`)
	assert.Contains(t, out, `"addr":":8080"`)
	assert.Contains(t, out, `"err":"boom"`)
}

func TestZerologLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologLogger(zerolog.New(&buf)).With("module", "jwks")

	log.Warn(context.Background(), "refresh failed")

	assert.Contains(t, buf.String(), `"module":"jwks"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestZerologLogger_OddArgs(t *testing.T) {
	var buf bytes.Buffer
	log := NewZerologLogger(zerolog.New(&buf))

	log.Error(context.Background(), "odd", "dangling")

	assert.Contains(t, buf.String(), `"!BADKEY":"dangling"`)
}

func TestZerologConsole_FiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newZerologConsole(&buf, levelError)

	log.Info(context.Background(), "quiet")
	assert.Empty(t, buf.String())

	log.Error(context.Background(), "loud")
	assert.Contains(t, buf.String(), "loud")
}
