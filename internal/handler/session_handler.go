// internal/handler/session_handler.go
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"biosignal-service/internal/model"
	"biosignal-service/internal/repository"
	"biosignal-service/internal/service"
	"biosignal-service/internal/utils"
)

// SessionHandler handles averaging-session requests
type SessionHandler struct {
	acquisition *service.AcquisitionService
	logger      *utils.ServiceLogger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(acquisition *service.AcquisitionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		acquisition: acquisition,
		logger:      utils.NewServiceLogger(logger, "session-handler"),
	}
}

// RegisterRoutes registers session routes
func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	sessions := router.Group("/sessions")
	{
		sessions.POST("/start", h.StartSession)
		sessions.POST("/stop", h.StopSession)
		sessions.GET("/current", h.GetCurrentSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:session_id", h.GetSession)
	}
}

// StartSession starts a timed averaging session
// @Summary Start averaging session
// @Description Start accumulating heart and respiration rates for the configured duration
// @Tags Sessions
// @Produce json
// @Success 201 {object} utils.APIResponse{data=model.SessionStatus}
// @Failure 409 {object} utils.APIResponse "Session already active"
// @Router /sessions/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	status, err := h.acquisition.StartSession(ctx)
	if err != nil {
		utils.ErrorResponse(c, statusForError(err), "Failed to start session", err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Session started", status)
}

// StopSession finalizes the running session
// @Summary Stop averaging session
// @Description Finalize the running session immediately with the samples accumulated so far
// @Tags Sessions
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.SessionResult}
// @Failure 409 {object} utils.APIResponse "No active session"
// @Router /sessions/stop [post]
func (h *SessionHandler) StopSession(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.acquisition.StopSession(ctx)
	if err != nil {
		utils.ErrorResponse(c, statusForError(err), "Failed to stop session", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session stopped", result)
}

// GetCurrentSession returns the session status with remaining time
// @Summary Current session
// @Tags Sessions
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.SessionStatus}
// @Router /sessions/current [get]
func (h *SessionHandler) GetCurrentSession(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	status, err := h.acquisition.SessionStatus(ctx)
	if err != nil {
		utils.ErrorResponse(c, statusForError(err), "Failed to get session status", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session status retrieved", status)
}

// ListSessions lists persisted session results
// @Summary List session results
// @Description Finalized session results, newest first
// @Tags Sessions
// @Produce json
// @Param limit query int false "Maximum results" default(20)
// @Param offset query int false "Results to skip" default(0)
// @Param reason query string false "End reason" Enums(elapsed, stopped)
// @Param since query string false "Started at or after (RFC3339)"
// @Param until query string false "Started before (RFC3339)"
// @Success 200 {object} utils.APIResponse{data=[]model.SessionResult}
// @Failure 400 {object} utils.APIResponse "Invalid filter"
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	filter, errs := parseSessionFilter(c)
	if len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}

	results, total, err := h.acquisition.ListSessions(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		utils.ErrorResponse(c, statusForError(err), "Failed to list sessions", err)
		return
	}

	utils.ListResponse(c, "Sessions retrieved", results, total, filter.Limit)
}

// GetSession returns one session result
// @Summary Get session result
// @Tags Sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} utils.APIResponse{data=model.SessionResult}
// @Failure 400 {object} utils.APIResponse "Invalid session ID"
// @Failure 404 {object} utils.APIResponse "Session not found"
// @Router /sessions/{session_id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid session ID", err)
		return
	}

	result, err := h.acquisition.GetSession(c.Request.Context(), id)
	if err != nil {
		utils.ErrorResponse(c, statusForError(err), "Failed to get session", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session retrieved", result)
}

func parseSessionFilter(c *gin.Context) (*repository.SessionFilter, map[string]string) {
	filter := &repository.SessionFilter{}
	errs := make(map[string]string)

	if limit := c.Query("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 && l <= repository.MaxListLimit {
			filter.Limit = l
		} else {
			errs["limit"] = "must be between 1 and " + strconv.Itoa(repository.MaxListLimit)
		}
	}
	if offset := c.Query("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			filter.Offset = o
		} else {
			errs["offset"] = "must be a non-negative integer"
		}
	}
	if reason := c.Query("reason"); reason != "" {
		r := model.SessionEndReason(reason)
		if r != model.SessionEndElapsed && r != model.SessionEndStopped {
			errs["reason"] = "must be elapsed or stopped"
		} else {
			filter.Reason = &r
		}
	}
	if since := c.Query("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &t
		} else {
			errs["since"] = "must be an RFC3339 timestamp"
		}
	}
	if until := c.Query("until"); until != "" {
		if t, err := time.Parse(time.RFC3339, until); err == nil {
			filter.Until = &t
		} else {
			errs["until"] = "must be an RFC3339 timestamp"
		}
	}

	filter.Normalize()
	return filter, errs
}
