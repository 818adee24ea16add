package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"agenda/backend/internal/service/appointments"
)

func (s *Server) listProviders(c *gin.Context) {
	log := s.log.With(slog.String("handler", "listProviders"))

	if _, ok := requesterID(c); !ok {
		return
	}

	providers, err := s.svc.ListProviders(c.Request.Context())
	if err != nil {
		log.Error("provider list failed", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	out := make([]userResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, userResponse{ID: p.ID.String(), Name: p.Name, Email: p.Email})
	}
	c.JSON(http.StatusOK, out)
}

// availableHours lists the provider's slots for one day with availability.
func (s *Server) availableHours(c *gin.Context) {
	log := s.log.With(slog.String("handler", "availableHours"))

	if _, ok := requesterID(c); !ok {
		return
	}
	providerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider id must be a valid id"})
		return
	}
	day, ok := dayQuery(c)
	if !ok {
		return
	}

	slots, err := s.svc.AvailableHours(c.Request.Context(), providerID, day)
	if err != nil {
		s.renderScheduleError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, slots)
}

// providerSchedule shows the requesting provider their own day.
func (s *Server) providerSchedule(c *gin.Context) {
	log := s.log.With(slog.String("handler", "providerSchedule"))

	providerID, ok := requesterID(c)
	if !ok {
		return
	}
	day, ok := dayQuery(c)
	if !ok {
		return
	}

	rows, err := s.svc.ProviderSchedule(c.Request.Context(), providerID, day)
	if err != nil {
		s.renderScheduleError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, toAppointmentResponses(rows))
}

func (s *Server) renderScheduleError(c *gin.Context, log *slog.Logger, err error) {
	var vErr *appointments.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, appointments.ErrInvalidProvider):
		c.JSON(http.StatusBadRequest, gin.H{"error": "user is not a provider"})
	default:
		log.Error("schedule read failed", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// dayQuery parses the date query parameter, accepting a plain date or a
// full RFC 3339 timestamp.
func dayQuery(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required"})
		return time.Time{}, false
	}
	if d, err := time.Parse("2006-01-02", raw); err == nil {
		return d, true
	}
	d, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD or RFC 3339"})
		return time.Time{}, false
	}
	return d, true
}
