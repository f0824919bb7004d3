package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *Service, *memLibrary) {
	app := fiber.New()
	svc, lib := newTestService(t)
	NewHandler(svc).RegisterRoutes(app)
	return app, svc, lib
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestHandleSync(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp := postJSON(t, app, "/sync/", Request{
		Platform: "readmoo",
		Records:  []map[string]any{{"id": "b1", "title": "Roadside Picnic", "progress": 25}},
	})
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var job map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	id, _ := job["id"].(string)
	require.NotEmpty(t, id)

	// The job is queryable right away.
	req := httptest.NewRequest("GET", "/sync/jobs/"+id, nil)
	jobResp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, jobResp.StatusCode)
}

func TestHandleSyncRejectsEmptyBody(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp := postJSON(t, app, "/sync/", Request{Platform: "readmoo"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleValidate(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp := postJSON(t, app, "/sync/validate", Request{
		Platform: "kobo",
		Records: []map[string]any{
			{"id": "b1", "title": "The Hearing Trumpet", "position": 0.5},
			{"title": "missing id"},
		},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, float64(1), result["valid"])
	assert.Equal(t, float64(1), result["invalid"])
}

func TestHandleGetJobNotFound(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("GET", "/sync/jobs/nope", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandleListJobs(t *testing.T) {
	app, svc, _ := setupTestApp(t)

	_, err := svc.Sync(context.Background(), Request{
		Platform: "readmoo",
		Records:  []map[string]any{{"id": "b1", "title": "Kalpa Imperial", "progress": 10}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/sync/jobs", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var jobs []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jobs))
	assert.NotEmpty(t, jobs)
}

func TestHandleCancelJobNotCancellable(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("DELETE", "/sync/jobs/unknown", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleCacheEndpoints(t *testing.T) {
	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest("GET", "/sync/cache/stats", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	clearResp := postJSON(t, app, "/sync/cache/clear", nil)
	assert.Equal(t, fiber.StatusOK, clearResp.StatusCode)
}
