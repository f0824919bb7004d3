package rayid

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp() (*fiber.App, *string) {
	var seen string
	app := fiber.New()
	app.Use(New())
	app.Get("/ping", func(c *fiber.Ctx) error {
		seen = FromCtx(c)
		return c.SendString("pong")
	})
	return app, &seen
}

func TestAssignsRayID(t *testing.T) {
	app, seen := setupApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil), -1)
	require.NoError(t, err)

	id := resp.Header.Get(HeaderName)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, *seen)
}

func TestReusesClientRayID(t *testing.T) {
	app, seen := setupApp()

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set(HeaderName, "ray-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, "ray-123", resp.Header.Get(HeaderName))
	assert.Equal(t, "ray-123", *seen)
}

func TestFromCtxWithoutMiddleware(t *testing.T) {
	app := fiber.New()
	var seen string
	app.Get("/bare", func(c *fiber.Ctx) error {
		seen = FromCtx(c)
		return c.SendString("ok")
	})

	_, err := app.Test(httptest.NewRequest("GET", "/bare", nil), -1)
	require.NoError(t, err)
	assert.Empty(t, seen)
}
