package sync

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"booksync/core/errs"
	"booksync/core/logger"
)

// Handler handles HTTP requests for sync runs and job management.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/", h.HandleSync)
	group.Post("/validate", h.HandleValidate)
	group.Get("/jobs", h.HandleListJobs)
	group.Get("/jobs/:id", h.HandleGetJob)
	group.Delete("/jobs/:id", h.HandleCancelJob)
	group.Post("/jobs/:id/retry", h.HandleRetryJob)
	group.Get("/cache/stats", h.HandleCacheStats)
	group.Post("/cache/clear", h.HandleClearCache)
}

// HandleSync starts a sync run.
// @Summary Start Sync Run
// @Description Validates the submitted platform records, reconciles them against the library, and applies the changes as a background job.
// @Tags sync
// @Accept json
// @Produce json
// @Param request body sync.Request true "Sync request"
// @Success 202 {object} jobs.Job "Pending job"
// @Failure 400 {object} map[string]string "Invalid request"
// @Router /sync [post]
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req Request
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	job, err := h.service.Sync(c.Context(), req)
	if err != nil {
		l.Warn("Sync rejected", zap.Error(err))
		return respondError(c, err)
	}

	l.Info("Sync started",
		zap.String("job_id", job.ID),
		zap.String("platform", req.Platform),
		zap.Int("records", len(req.Records)))
	return c.Status(fiber.StatusAccepted).JSON(job)
}

// HandleValidate validates records without syncing.
// @Summary Validate Records
// @Description Runs the validation pipeline on the submitted records and returns per-record outcomes.
// @Tags sync
// @Accept json
// @Produce json
// @Param request body sync.Request true "Validation request"
// @Success 200 {object} validate.BatchResult "Validation result"
// @Failure 400 {object} map[string]string "Invalid request"
// @Router /sync/validate [post]
func (h *Handler) HandleValidate(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req Request
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := h.service.Validate(c.Context(), req.Platform, req.Records)
	if err != nil {
		l.Warn("Validation failed", zap.Error(err))
		return respondError(c, err)
	}
	return c.JSON(result)
}

// HandleListJobs lists all tracked jobs.
// @Summary List Jobs
// @Tags jobs
// @Produce json
// @Success 200 {array} jobs.Job
// @Router /sync/jobs [get]
func (h *Handler) HandleListJobs(c *fiber.Ctx) error {
	return c.JSON(h.service.Jobs())
}

// HandleGetJob returns one job and, once finished, its report.
// @Summary Get Job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{} "Job with optional report"
// @Failure 404 {object} map[string]string "Unknown job"
// @Router /sync/jobs/{id} [get]
func (h *Handler) HandleGetJob(c *fiber.Ctx) error {
	job, report, err := h.service.Job(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	body := fiber.Map{"job": job}
	if report != nil {
		body["report"] = report
	}
	return c.JSON(body)
}

// HandleCancelJob cancels a pending or running job.
// @Summary Cancel Job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Job is not cancellable"
// @Router /sync/jobs/{id} [delete]
func (h *Handler) HandleCancelJob(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	id := c.Params("id")
	if err := h.service.Cancel(c.Context(), id); err != nil {
		return respondError(c, err)
	}
	l.Info("Job cancelled", zap.String("job_id", id))
	return c.JSON(fiber.Map{"status": "cancelled", "jobId": id})
}

// HandleRetryJob reruns a failed, retryable job.
// @Summary Retry Job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 202 {object} jobs.Job "New pending job"
// @Failure 400 {object} map[string]string "Job is not retryable"
// @Router /sync/jobs/{id}/retry [post]
func (h *Handler) HandleRetryJob(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	job, err := h.service.Retry(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	l.Info("Job retry started", zap.String("job_id", job.ID), zap.String("retry_of", job.RetryOf))
	return c.Status(fiber.StatusAccepted).JSON(job)
}

// HandleCacheStats returns per-partition cache statistics.
// @Summary Cache Statistics
// @Tags cache
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /sync/cache/stats [get]
func (h *Handler) HandleCacheStats(c *fiber.Ctx) error {
	return c.JSON(h.service.CacheStats())
}

// HandleClearCache empties every cache partition.
// @Summary Clear Caches
// @Tags cache
// @Produce json
// @Success 200 {object} map[string]string
// @Router /sync/cache/clear [post]
func (h *Handler) HandleClearCache(c *fiber.Ctx) error {
	h.service.ClearCache()
	return c.JSON(fiber.Map{"status": "cleared"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// respondError maps error kinds to HTTP statuses: caller mistakes are
// 400, everything else 500.
func respondError(c *fiber.Ctx, err error) error {
	var e *errs.Error
	status := fiber.StatusInternalServerError
	if errors.As(err, &e) && (e.Kind == errs.KindInput || e.Kind == errs.KindRecord) {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
