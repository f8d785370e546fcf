package v1

import (
	"fmt"
	"net/http"

	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	logicv1 "github.com/duynhne/masjid-connect-service/internal/logic/v1"
	"github.com/duynhne/masjid-connect-service/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

const contextGateState = "gate_state"

// GateMiddleware evaluates the onboarding gate once per request and stores it in the context.
// It must run after AuthMiddleware.
func GateMiddleware(profiles *logicv1.ProfileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var identity *domain.Identity
		if id, ok := middleware.IdentityFromContext(c); ok {
			identity = &id
		}
		c.Set(contextGateState, profiles.State(c.Request.Context(), identity))
		c.Next()
	}
}

// gateState returns the state stored by GateMiddleware.
func gateState(c *gin.Context) (logicv1.GateState, bool) {
	v, ok := c.Get(contextGateState)
	if !ok {
		return logicv1.GateState{}, false
	}
	gs, ok := v.(logicv1.GateState)
	return gs, ok
}

// RequireProfileComplete admits callers whose profile has a name and phone.
func RequireProfileComplete() gin.HandlerFunc {
	return requireState(func(gs logicv1.GateState) bool {
		return gs.State == logicv1.StateRoleUnassigned || gs.State == logicv1.StateActive
	})
}

// RequireActive admits active callers with role. RoleUnset admits any active role.
func RequireActive(role domain.Role) gin.HandlerFunc {
	return requireState(func(gs logicv1.GateState) bool {
		return gs.Active(role)
	})
}

func requireState(allowed func(logicv1.GateState) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		gs, ok := gateState(c)
		if !ok || gs.State == logicv1.StateUnauthenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !allowed(gs) && gs.Degraded {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable, please try again"})
			return
		}
		if !allowed(gs) {
			c.Abort()
			respondError(c, trace.SpanFromContext(c.Request.Context()), middleware.GetLoggerFromGinContext(c),
				"Gate denied request", gateDenial(gs))
			return
		}
		c.Next()
	}
}

// gateDenial is the reason a gated route refused gs.
func gateDenial(gs logicv1.GateState) error {
	if gs.State == logicv1.StateActive {
		return fmt.Errorf("role %q: %w", gs.Role, domain.ErrRoleNotPermitted)
	}
	return fmt.Errorf("state %s: %w", gs.State, domain.ErrOnboardingIncomplete)
}

// gateDenialBody carries the caller's state and home so clients can redirect.
func gateDenialBody(c *gin.Context, text string) gin.H {
	gs, _ := gateState(c)
	return gin.H{
		"error":    text,
		"state":    gs.State,
		"redirect": gs.Home,
	}
}
