package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/metrics"
	"agenda/backend/internal/notify/feed"
	"agenda/backend/internal/service/appointments"
)

type bookingService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Cancel(ctx context.Context, appointmentID, requesterID uuid.UUID) (domain.Appointment, error)
	ListForClient(ctx context.Context, clientID uuid.UUID, page int) ([]domain.Appointment, error)
	ListProviders(ctx context.Context) ([]domain.User, error)
	ProviderSchedule(ctx context.Context, providerID uuid.UUID, day time.Time) ([]domain.Appointment, error)
	AvailableHours(ctx context.Context, providerID uuid.UUID, day time.Time) ([]appointments.AvailableSlot, error)
}

type notificationFeed interface {
	ListForRecipient(ctx context.Context, recipientID uuid.UUID) ([]feed.Notification, error)
	MarkRead(ctx context.Context, id string, recipientID uuid.UUID) (feed.Notification, error)
}

// Server is the thin HTTP surface over the booking core. Authentication is
// owned by the surrounding deployment; the requester arrives pre-resolved
// in the X-User-ID header.
type Server struct {
	svc  bookingService
	feed notificationFeed
	log  *slog.Logger
}

func NewServer(svc bookingService, notifications notificationFeed, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		svc:  svc,
		feed: notifications,
		log:  log.With(slog.String("component", "http")),
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/appointments", s.createAppointment)
	r.GET("/appointments", s.listAppointments)
	r.DELETE("/appointments/:id", s.cancelAppointment)

	r.GET("/providers", s.listProviders)
	r.GET("/providers/:id/available", s.availableHours)
	r.GET("/schedule", s.providerSchedule)

	r.GET("/notifications", s.listNotifications)
	r.PUT("/notifications/:id", s.markNotificationRead)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.IncHTTP(route)
		s.log.Info(
			"request",
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// requesterID resolves the authenticated user from the X-User-ID header.
func requesterID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetHeader("X-User-ID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user identity is required"})
		return uuid.Nil, false
	}
	return id, true
}
