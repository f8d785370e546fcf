package v1

import (
	"net/http"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	logicv1 "github.com/duynhne/masjid-connect-service/internal/logic/v1"
	"github.com/duynhne/masjid-connect-service/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RequestHandler handles HTTP requests for leave requests
type RequestHandler struct {
	requests *logicv1.RequestService
	handoff  *logicv1.HandoffService
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(requests *logicv1.RequestService, handoff *logicv1.HandoffService) *RequestHandler {
	return &RequestHandler{requests: requests, handoff: handoff}
}

// ListOpen handles GET /api/v1/requests/open
func (h *RequestHandler) ListOpen(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	list, err := h.requests.ListOpen(ctx)
	if err != nil {
		respondError(c, span, zapLogger, "Failed to list open requests", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": nonNil(list)})
}

// ListMine handles GET /api/v1/requests/mine
func (h *RequestHandler) ListMine(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := requireIdentity(c, zapLogger)
	if !ok {
		return
	}

	list, err := h.requests.ListOwned(ctx, identity.ID)
	if err != nil {
		respondError(c, span, zapLogger, "Failed to list own requests", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": nonNil(list)})
}

// Get handles GET /api/v1/requests/:id
func (h *RequestHandler) Get(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	id := c.Param("id")
	span.SetAttributes(attribute.String("request.id", id))

	req, err := h.requests.Get(ctx, id)
	if err != nil {
		respondError(c, span, zapLogger, "Failed to get request", err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// GetForEdit handles GET /api/v1/requests/:id/edit
func (h *RequestHandler) GetForEdit(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := requireIdentity(c, zapLogger)
	if !ok {
		return
	}
	id := c.Param("id")
	span.SetAttributes(attribute.String("request.id", id))

	req, err := h.requests.GetForEdit(ctx, identity.ID, id)
	if err != nil {
		respondError(c, span, zapLogger, "Failed to load request for edit", err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// Create handles POST /api/v1/requests
func (h *RequestHandler) Create(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := requireIdentity(c, zapLogger)
	if !ok {
		return
	}

	var fields domain.RequestFields
	if !bindJSON(c, span, zapLogger, &fields) {
		return
	}

	req, err := h.requests.Create(ctx, identity.ID, fields)
	if err != nil {
		respondError(c, span, zapLogger, "Failed to create request", err)
		return
	}

	zapLogger.Info("Request created", zap.String("request_id", req.ID), zap.String("user_id", identity.ID))
	c.JSON(http.StatusCreated, req)
}

// Update handles PUT /api/v1/requests/:id
func (h *RequestHandler) Update(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := requireIdentity(c, zapLogger)
	if !ok {
		return
	}
	id := c.Param("id")
	span.SetAttributes(attribute.String("request.id", id))

	var fields domain.RequestFields
	if !bindJSON(c, span, zapLogger, &fields) {
		return
	}

	req, err := h.requests.Update(ctx, identity.ID, id, fields)
	if err != nil {
		respondError(c, span, zapLogger, "Failed to update request", err)
		return
	}

	zapLogger.Info("Request updated", zap.String("request_id", id))
	c.JSON(http.StatusOK, req)
}

// Toggle handles POST /api/v1/requests/:id/toggle
func (h *RequestHandler) Toggle(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := requireIdentity(c, zapLogger)
	if !ok {
		return
	}
	id := c.Param("id")
	span.SetAttributes(attribute.String("request.id", id))

	req, err := h.requests.ToggleStatus(ctx, identity.ID, id)
	if err != nil {
		respondError(c, span, zapLogger, "Failed to toggle request", err)
		return
	}

	zapLogger.Info("Request status changed", zap.String("request_id", id), zap.String("status", string(req.Status)))
	c.JSON(http.StatusOK, req)
}

// Delete handles DELETE /api/v1/requests/:id
func (h *RequestHandler) Delete(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := requireIdentity(c, zapLogger)
	if !ok {
		return
	}
	id := c.Param("id")
	span.SetAttributes(attribute.String("request.id", id))

	if err := h.requests.Delete(ctx, identity.ID, id); err != nil {
		respondError(c, span, zapLogger, "Failed to delete request", err)
		return
	}

	zapLogger.Info("Request deleted", zap.String("request_id", id))
	c.Status(http.StatusNoContent)
}

// Handoff handles POST /api/v1/requests/:id/handoff
func (h *RequestHandler) Handoff(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := requireIdentity(c, zapLogger)
	if !ok {
		return
	}
	id := c.Param("id")
	span.SetAttributes(attribute.String("request.id", id))

	handoff, err := h.handoff.Prepare(ctx, identity, id)
	if err != nil {
		respondError(c, span, zapLogger, "Failed to prepare handoff", err)
		return
	}
	c.JSON(http.StatusOK, handoff)
}

// nonNil keeps empty lists serialised as [] rather than null
func nonNil(list []domain.LeaveRequest) []domain.LeaveRequest {
	if list == nil {
		return []domain.LeaveRequest{}
	}
	return list
}
