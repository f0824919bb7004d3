package sync

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestLoader(t *testing.T) {
	svc, _ := newTestService(t)
	feature := NewFeature(svc, true)

	assert.Equal(t, "sync", feature.Name())
	assert.True(t, feature.IsEnabled())

	app := fiber.New()
	err := feature.Load(app)
	assert.NoError(t, err)
}

func TestLoaderDisabled(t *testing.T) {
	svc, _ := newTestService(t)
	feature := NewFeature(svc, false)
	assert.False(t, feature.IsEnabled())
}
