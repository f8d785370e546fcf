package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	logicv1 "github.com/duynhne/masjid-connect-service/internal/logic/v1"
	"github.com/duynhne/masjid-connect-service/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ProfileHandler handles HTTP requests for the caller's own profile and role
type ProfileHandler struct {
	service *logicv1.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(service *logicv1.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// GetProfile handles GET /api/v1/users/profile. A caller without a record gets an empty profile.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := requireIdentity(c, zapLogger)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			c.JSON(http.StatusOK, &domain.Profile{ID: identity.ID})
			return
		}
		respondError(c, span, zapLogger, "Failed to get profile", err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateProfile handles PUT /api/v1/users/profile
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := requireIdentity(c, zapLogger)
	if !ok {
		return
	}

	var req domain.ProfileUpdate
	if !bindJSON(c, span, zapLogger, &req) {
		return
	}

	profile, state, err := h.service.SaveProfile(ctx, identity, req)
	if err != nil {
		respondError(c, span, zapLogger, "Failed to update profile", err)
		return
	}

	zapLogger.Info("Profile updated", zap.String("user_id", identity.ID), zap.String("state", string(state.State)))
	c.JSON(http.StatusOK, gin.H{"profile": profile, "session": state})
}

// SelectRole handles POST /api/v1/users/role
func (h *ProfileHandler) SelectRole(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()
	zapLogger := middleware.GetLoggerFromGinContext(c)

	identity, ok := requireIdentity(c, zapLogger)
	if !ok {
		return
	}

	var req domain.SelectRoleRequest
	if !bindJSON(c, span, zapLogger, &req) {
		return
	}

	sel, err := h.service.SelectRole(ctx, identity, req.Role)
	if err != nil {
		respondError(c, span, zapLogger, "Failed to select role", err)
		return
	}

	if sel.Changed {
		zapLogger.Info("Role selected", zap.String("user_id", identity.ID), zap.String("role", string(sel.Role)))
	}
	c.JSON(http.StatusOK, sel)
}

// startSpan opens the web-layer span for a request
func startSpan(c *gin.Context) (context.Context, trace.Span) {
	return middleware.StartSpan(c.Request.Context(), "http.request", trace.WithAttributes(
		attribute.String("layer", "web"),
		attribute.String("method", c.Request.Method),
		attribute.String("path", c.FullPath()),
	))
}

// requireIdentity reads the identity set by AuthMiddleware or answers 401
func requireIdentity(c *gin.Context, zapLogger *zap.Logger) (domain.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		zapLogger.Warn("No user_id in context", zap.String("path", c.FullPath()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return domain.Identity{}, false
	}
	return identity, true
}

// bindJSON decodes the body into dst or answers 400
func bindJSON(c *gin.Context, span trace.Span, zapLogger *zap.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		span.SetAttributes(attribute.Bool("request.valid", false))
		span.RecordError(err)
		zapLogger.Warn("Invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, bindingErrorBody(err))
		return false
	}
	span.SetAttributes(attribute.Bool("request.valid", true))
	return true
}

// respondError maps a service error to its HTTP status. Store failures are logged and
// answered with a generic message.
func respondError(c *gin.Context, span trace.Span, zapLogger *zap.Logger, msg string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		zapLogger.Info(msg, zap.Strings("fields", verr.Fields))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": verr.Fields})
	case errors.Is(err, domain.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed"})
	case errors.Is(err, domain.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.Is(err, domain.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
	case errors.Is(err, domain.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
	case errors.Is(err, domain.ErrForbidden):
		zapLogger.Warn(msg, zap.Error(err))
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not own this request"})
	case errors.Is(err, domain.ErrOnboardingIncomplete):
		zapLogger.Debug(msg, zap.Error(err))
		c.JSON(http.StatusForbidden, gateDenialBody(c, "Onboarding incomplete"))
	case errors.Is(err, domain.ErrRoleNotPermitted):
		zapLogger.Debug(msg, zap.Error(err))
		c.JSON(http.StatusForbidden, gateDenialBody(c, "Not available for your role"))
	case errors.Is(err, domain.ErrStoreUnavailable):
		middleware.RecordError(span, err)
		zapLogger.Error(msg, zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable, please try again"})
	default:
		middleware.RecordError(span, err)
		zapLogger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
