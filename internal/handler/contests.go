package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contesttracker/internal/models"
	"contesttracker/internal/repository"
	"contesttracker/internal/service"
)

// triggerTimeout bounds an on-demand cycle once the caller has gone away.
const triggerTimeout = 10 * time.Minute

type ContestHandler struct {
	Aggregator *service.Aggregator
	Sweeper    *service.StatusEngine
	Store      repository.ContestStore
	SyncStore  repository.SyncStateStore
	Logger     *zap.Logger
}

func (h *ContestHandler) Register(r *gin.Engine) {
	group := r.Group("/api/contests")
	group.GET("", h.listContests)
	group.POST("/update", h.runAggregation)
	group.POST("/sweep", h.runSweep)
	r.GET("/api/sync-state", h.listSyncState)
}

// @Summary Run contest aggregation now
// @Tags contests
// @Success 200 {object} apiResponse
// @Failure 409 {object} apiResponse
// @Router /api/contests/update [post]
func (h *ContestHandler) runAggregation(c *gin.Context) {
	if h.Aggregator == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), triggerTimeout)
	defer cancel()
	result, err := h.Aggregator.Run(ctx)
	if errors.Is(err, service.ErrAlreadyRunning) {
		Error(c, http.StatusConflict, err.Error(), nil)
		return
	}
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("aggregation failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

// @Summary Run status sweep now
// @Tags contests
// @Success 200 {object} apiResponse
// @Router /api/contests/sweep [post]
func (h *ContestHandler) runSweep(c *gin.Context) {
	if h.Sweeper == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	result, err := h.Sweeper.Sweep(c.Request.Context(), time.Now().UTC())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("sweep failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, result, nil)
}

// @Summary List contests
// @Tags contests
// @Param status query string false "upcoming|ongoing|past (comma separated)"
// @Param platform query string false "Codeforces|CodeChef|Leetcode"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/contests [get]
func (h *ContestHandler) listContests(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	filter := repository.ContestFilter{
		Limit:  intQuery(c, "limit", 100),
		Offset: intQuery(c, "offset", 0),
	}
	for _, raw := range strings.Split(c.Query("status"), ",") {
		switch st := models.ContestStatus(strings.TrimSpace(raw)); st {
		case "":
		case models.StatusUpcoming, models.StatusOngoing, models.StatusPast:
			filter.Statuses = append(filter.Statuses, st)
		default:
			Error(c, http.StatusBadRequest, "invalid status "+raw, nil)
			return
		}
	}
	if p := models.Platform(strings.TrimSpace(c.Query("platform"))); p != "" {
		if !p.Valid() {
			Error(c, http.StatusBadRequest, "invalid platform", nil)
			return
		}
		filter.Platform = p
	}
	items, err := h.Store.ListContests(c.Request.Context(), filter)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"limit": filter.Limit, "offset": filter.Offset, "count": len(items)})
}

// @Summary List per-source sync states
// @Tags contests
// @Success 200 {object} apiResponse
// @Router /api/sync-state [get]
func (h *ContestHandler) listSyncState(c *gin.Context) {
	if h.SyncStore == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	states, err := h.SyncStore.ListSyncStates(c.Request.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list sync state failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, states, nil)
}
