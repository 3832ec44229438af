package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownIsIdempotent(t *testing.T) {
	ctx, shutdown := SetupGracefulShutdownWithContext()
	assert.NoError(t, ctx.Err())

	shutdown()
	assert.NotPanics(t, shutdown)
	assert.Error(t, ctx.Err())
}
