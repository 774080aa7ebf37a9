package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"contesttracker/internal/models"
	"contesttracker/internal/service"
)

const userHeader = "X-User-ID"

type ReminderHandler struct {
	Service *service.ReminderService
}

type setReminderRequest struct {
	UserID    string `json:"user_id"`
	ContestID uint64 `json:"contest_id" binding:"required"`
	LeadTime  string `json:"lead_time" binding:"required"`
}

func (h *ReminderHandler) Register(r *gin.Engine) {
	group := r.Group("/api/reminders")
	group.PUT("", h.setReminder)
	group.GET("", h.listReminders)
}

// userID comes from the upstream auth layer header, or the body for operator calls.
func userID(c *gin.Context, fallback string) string {
	if v := strings.TrimSpace(c.GetHeader(userHeader)); v != "" {
		return v
	}
	return strings.TrimSpace(fallback)
}

// @Summary Create or replace a contest reminder
// @Tags reminders
// @Param body body setReminderRequest true "reminder"
// @Success 200 {object} apiResponse
// @Router /api/reminders [put]
func (h *ReminderHandler) setReminder(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req setReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	uid := userID(c, req.UserID)
	if uid == "" {
		Error(c, http.StatusBadRequest, "user id required", nil)
		return
	}
	item, err := h.Service.Set(c.Request.Context(), uid, req.ContestID, models.LeadTime(req.LeadTime))
	switch {
	case errors.Is(err, service.ErrInvalidLeadTime), errors.Is(err, service.ErrContestStarted):
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	case errors.Is(err, service.ErrContestNotFound):
		Error(c, http.StatusNotFound, err.Error(), nil)
		return
	case err != nil:
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary List a user's reminders
// @Tags reminders
// @Param user_id query string false "user id (if no X-User-ID header)"
// @Success 200 {object} apiResponse
// @Router /api/reminders [get]
func (h *ReminderHandler) listReminders(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	uid := userID(c, c.Query("user_id"))
	if uid == "" {
		Error(c, http.StatusBadRequest, "user id required", nil)
		return
	}
	items, err := h.Service.List(c.Request.Context(), uid)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
