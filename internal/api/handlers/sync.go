package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"stocksync/internal/credentials"
	"stocksync/internal/lock"
	"stocksync/internal/logger"
	"stocksync/internal/models"
	"stocksync/internal/mutation"
	"stocksync/internal/orchestrator"

	"github.com/gin-gonic/gin"
)

type SyncRunner interface {
	Run(ctx context.Context, req orchestrator.Request) (*orchestrator.Report, error)
}

type RunStore interface {
	Runs(ctx context.Context, tenant string, limit int) ([]models.SyncRun, error)
	Run(ctx context.Context, id string) (*models.SyncRun, error)
	Decisions(ctx context.Context, runID string) ([]models.SyncDecision, error)
}

type SyncHandler struct {
	runner SyncRunner
	runs   RunStore
	logger *logger.Logger
}

func NewSyncHandler(runner SyncRunner, runs RunStore, logger *logger.Logger) *SyncHandler {
	return &SyncHandler{
		runner: runner,
		runs:   runs,
		logger: logger,
	}
}

type syncRequest struct {
	Entities []string `json:"entities"`
	DryRun   bool     `json:"dryRun"`
	Strategy string   `json:"strategy" binding:"omitempty,oneof=direct queue bulk auto"`
}

// Trigger runs a sync for the tenant and responds with the run report.
func (h *SyncHandler) Trigger(c *gin.Context) {
	tenant := c.Param("tenant")

	var request syncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	// A client that hangs up does not abort a run that is already writing.
	ctx := context.WithoutCancel(c.Request.Context())
	report, err := h.runner.Run(ctx, orchestrator.Request{
		Tenant:   tenant,
		Entities: request.Entities,
		DryRun:   request.DryRun,
		Strategy: mutation.Strategy(request.Strategy),
	})
	if err != nil {
		status := setupStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Sync for %s failed to start: %v", tenant, err)
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

func setupStatus(err error) int {
	var setup *orchestrator.SetupError
	switch {
	case errors.Is(err, lock.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, credentials.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, credentials.ErrMissingCredential):
		return http.StatusUnprocessableEntity
	case errors.As(err, &setup) && setup.Op == "request":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *SyncHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := h.runs.Runs(c.Request.Context(), c.Param("tenant"), limit)
	if err != nil {
		h.logger.Error("Failed to list runs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs})
}

// GetRun returns one run with its stored report and decision log.
func (h *SyncHandler) GetRun(c *gin.Context) {
	run, err := h.runs.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, orchestrator.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sync run not found"})
			return
		}
		h.logger.Error("Failed to fetch run: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync run"})
		return
	}

	decisions, err := h.runs.Decisions(c.Request.Context(), run.ID)
	if err != nil {
		h.logger.Error("Failed to fetch decisions for run %s: %v", run.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync run"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run, "decisions": decisions})
}
