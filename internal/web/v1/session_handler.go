package v1

import (
	"net/http"

	logicv1 "github.com/duynhne/masjid-connect-service/internal/logic/v1"
	"github.com/duynhne/masjid-connect-service/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SessionHandler exposes the onboarding gate
type SessionHandler struct{}

// NewSessionHandler creates a new session handler
func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// GetSession handles GET /api/v1/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	_, span := startSpan(c)
	defer span.End()

	gs, ok := gateState(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	span.SetAttributes(attribute.String("gate.state", string(gs.State)))
	c.JSON(http.StatusOK, gs)
}

// RouteDecision handles GET /api/v1/session/route?path=/imam/create
func (h *SessionHandler) RouteDecision(c *gin.Context) {
	_, span := startSpan(c)
	defer span.End()

	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": []string{"path"}})
		return
	}
	gs, ok := gateState(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	d := logicv1.Route(gs, path)
	span.SetAttributes(
		attribute.String("gate.state", string(gs.State)),
		attribute.Bool("gate.allowed", d.Allowed),
	)
	if !d.Allowed {
		middleware.GetLoggerFromGinContext(c).Debug("Route redirected",
			zap.String("path", path),
			zap.String("redirect", d.Redirect),
		)
	}
	c.JSON(http.StatusOK, gin.H{
		"state":    gs.State,
		"role":     gs.Role,
		"allowed":  d.Allowed,
		"redirect": d.Redirect,
	})
}
