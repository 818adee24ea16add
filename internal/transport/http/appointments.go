package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"agenda/backend/internal/domain"
	"agenda/backend/internal/metrics"
	"agenda/backend/internal/service/appointments"
)

type createAppointmentRequest struct {
	ProviderID string `json:"provider_id" binding:"required"`
	Date       string `json:"date" binding:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type appointmentResponse struct {
	ID          string        `json:"id"`
	ClientID    string        `json:"client_id"`
	ProviderID  string        `json:"provider_id"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Client      *userResponse `json:"client,omitempty"`
	Provider    *userResponse `json:"provider,omitempty"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	out := appointmentResponse{
		ID:          a.ID.String(),
		ClientID:    a.ClientID.String(),
		ProviderID:  a.ProviderID.String(),
		ScheduledAt: a.ScheduledAt,
		CancelledAt: a.CancelledAt,
		CreatedAt:   a.CreatedAt,
	}
	if a.Client != nil {
		out.Client = &userResponse{ID: a.Client.ID.String(), Name: a.Client.Name}
	}
	if a.Provider != nil {
		out.Provider = &userResponse{ID: a.Provider.ID.String(), Name: a.Provider.Name}
	}
	return out
}

func toAppointmentResponses(rows []domain.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(rows))
	for _, a := range rows {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func (s *Server) createAppointment(c *gin.Context) {
	log := s.log.With(slog.String("handler", "createAppointment"))

	clientID, ok := requesterID(c)
	if !ok {
		return
	}

	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("invalid request", slog.Any("err", err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation fails"})
		return
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider_id must be a valid id"})
		return
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be RFC 3339"})
		return
	}

	appt, err := s.svc.Create(c.Request.Context(), appointments.CreateInput{
		ClientID:   clientID,
		ProviderID: providerID,
		Date:       date,
	})
	if err != nil {
		var vErr *appointments.ValidationError
		switch {
		case errors.As(err, &vErr):
			log.Warn("invalid request", slog.Any("err", err))
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		case errors.Is(err, appointments.ErrInvalidProvider):
			c.JSON(http.StatusBadRequest, gin.H{"error": "you can only create appointments with providers"})
		case errors.Is(err, appointments.ErrPastDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "past dates are not permitted"})
		case errors.Is(err, appointments.ErrSlotTaken):
			metrics.IncSlotConflict()
			log.Info(
				"slot conflict",
				slog.String("provider_id", providerID.String()),
				slog.Time("date", date),
			)
			c.JSON(http.StatusConflict, gin.H{"error": "appointment date is not available"})
		default:
			log.Error("appointment create failed", slog.Any("err", err), slog.String("client_id", clientID.String()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	metrics.IncBookingCreated()
	log.Info(
		"appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("client_id", appt.ClientID.String()),
		slog.String("provider_id", appt.ProviderID.String()),
		slog.Time("scheduled_at", appt.ScheduledAt),
	)
	c.JSON(http.StatusCreated, toAppointmentResponse(appt))
}

func (s *Server) listAppointments(c *gin.Context) {
	log := s.log.With(slog.String("handler", "listAppointments"))

	clientID, ok := requesterID(c)
	if !ok {
		return
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
			return
		}
		page = p
	}

	rows, err := s.svc.ListForClient(c.Request.Context(), clientID, page)
	if err != nil {
		var vErr *appointments.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
			return
		}
		log.Error("appointment list failed", slog.Any("err", err), slog.String("client_id", clientID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, toAppointmentResponses(rows))
}

func (s *Server) cancelAppointment(c *gin.Context) {
	log := s.log.With(slog.String("handler", "cancelAppointment"))

	requester, ok := requesterID(c)
	if !ok {
		return
	}
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "appointment id must be a valid id"})
		return
	}

	appt, err := s.svc.Cancel(c.Request.Context(), appointmentID, requester)
	if err != nil {
		var vErr *appointments.ValidationError
		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
		case errors.Is(err, appointments.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "appointment not found"})
		case errors.Is(err, appointments.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "you don't have permission to cancel this appointment"})
		case errors.Is(err, appointments.ErrAlreadyCancelled):
			c.JSON(http.StatusConflict, gin.H{"error": "appointment is already cancelled"})
		case errors.Is(err, appointments.ErrTooLateToCancel):
			c.JSON(http.StatusBadRequest, gin.H{"error": "it is too late to cancel this appointment"})
		default:
			log.Error("appointment cancel failed", slog.Any("err", err), slog.String("appointment_id", appointmentID.String()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	metrics.IncBookingCancelled()
	log.Info(
		"appointment cancelled",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("client_id", appt.ClientID.String()),
	)
	c.JSON(http.StatusOK, toAppointmentResponse(appt))
}
