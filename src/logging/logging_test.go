package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/illustory/gallery/src/oops"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestPrettyWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(NewPrettyZerologWriterTo(&buf))

	logger.Error().Err(oops.New(errors.New("connection refused"), "failed to count downloads")).Stack().Str("axis", "ip_address").Msg("quota check failed")

	out := buf.String()
	assert.Contains(t, out, "quota check failed")
	assert.Contains(t, out, "failed to count downloads: connection refused")
	assert.Contains(t, out, "axis")
	assert.Contains(t, out, "Stack trace:")
}

func TestPrettyWriterPassesThroughGarbage(t *testing.T) {
	var buf bytes.Buffer
	w := NewPrettyZerologWriterTo(&buf)

	n, err := w.Write([]byte("not json\n"))
	assert.Nil(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, "not json\n", buf.String())
}

func TestContextLogger(t *testing.T) {
	assert.Same(t, GlobalLogger(), ExtractLogger(context.Background()))

	logger := zerolog.Nop()
	ctx := AttachLoggerToContext(&logger, context.Background())
	assert.Same(t, &logger, ExtractLogger(ctx))
}
