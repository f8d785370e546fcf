package v1

import (
	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	logicv1 "github.com/duynhne/masjid-connect-service/internal/logic/v1"
	"github.com/gin-gonic/gin"
)

// Handlers bundles everything RegisterRoutes mounts
type Handlers struct {
	Profiles *logicv1.ProfileService
	Session  *SessionHandler
	Profile  *ProfileHandler
	Requests *RequestHandler
	Live     *LiveHandler
}

// RegisterRoutes mounts the v1 API on api. auth must set the caller identity (AuthMiddleware).
func RegisterRoutes(api *gin.RouterGroup, auth gin.HandlerFunc, h Handlers) {
	api.Use(auth, GateMiddleware(h.Profiles))

	api.GET("/session", h.Session.GetSession)
	api.GET("/session/route", h.Session.RouteDecision)

	users := api.Group("/users")
	{
		users.GET("/profile", h.Profile.GetProfile)
		users.PUT("/profile", h.Profile.UpdateProfile)
		users.POST("/role", RequireProfileComplete(), h.Profile.SelectRole)
	}

	requests := api.Group("/requests")
	{
		requests.GET("/open", h.Requests.ListOpen)
		requests.GET("/:id", h.Requests.Get)
		requests.POST("/:id/handoff", RequireActive(domain.RoleUnset), h.Requests.Handoff)

		imam := requests.Group("", RequireActive(domain.RoleImam))
		imam.GET("/mine", h.Requests.ListMine)
		imam.GET("/:id/edit", h.Requests.GetForEdit)
		imam.POST("", h.Requests.Create)
		imam.PUT("/:id", h.Requests.Update)
		imam.POST("/:id/toggle", h.Requests.Toggle)
		imam.DELETE("/:id", h.Requests.Delete)
	}

	live := api.Group("/live")
	{
		live.GET("/session", h.Live.Session)
		live.GET("/requests/open", h.Live.OpenRequests)
		live.GET("/requests/mine", RequireActive(domain.RoleImam), h.Live.MyRequests)
	}
}
