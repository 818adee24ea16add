package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"agenda/backend/internal/notify/feed"
)

func (s *Server) listNotifications(c *gin.Context) {
	log := s.log.With(slog.String("handler", "listNotifications"))

	recipient, ok := requesterID(c)
	if !ok {
		return
	}

	rows, err := s.feed.ListForRecipient(c.Request.Context(), recipient)
	if err != nil {
		log.Error("notification list failed", slog.Any("err", err), slog.String("user_id", recipient.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) markNotificationRead(c *gin.Context) {
	log := s.log.With(slog.String("handler", "markNotificationRead"))

	recipient, ok := requesterID(c)
	if !ok {
		return
	}

	n, err := s.feed.MarkRead(c.Request.Context(), c.Param("id"), recipient)
	if err != nil {
		if errors.Is(err, feed.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		log.Error("notification update failed", slog.Any("err", err), slog.String("user_id", recipient.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, n)
}
