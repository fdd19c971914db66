package rest

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pastorcare/backend/internal/auth"
)

const maxBodyBytes = 1 << 20

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *Handler, verifier *auth.Verifier, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(log.With(zap.String("component", "http.access"))))
	r.Use(BodyLimit(maxBodyBytes))

	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	v1.Use(Auth(verifier))
	{
		appts := v1.Group("/appointments")
		appts.POST("", h.RequestAppointment)
		appts.GET("", h.ListAppointments)
		appts.GET("/next-upcoming", h.NextUpcoming)
		appts.GET("/next-upcoming/stream", h.StreamNextUpcoming)
		appts.GET("/:id", h.GetAppointment)
		appts.GET("/:id/history", h.AppointmentHistory)
		appts.PATCH("/:id", h.PatchAppointment)
		appts.DELETE("/:id", h.DeleteAppointment)

		avail := v1.Group("/availability")
		avail.GET("/:pastor_id", h.ListAvailability)
		avail.POST("/:pastor_id", h.CreateAvailability)
		avail.PUT("/:pastor_id/:id", h.UpdateAvailability)
		avail.POST("/:pastor_id/:id/deactivate", h.DeactivateAvailability)
		avail.DELETE("/:pastor_id/:id", h.DeleteAvailability)
	}
	return r
}
