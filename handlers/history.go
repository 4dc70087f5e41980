package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"datalens/models"
)

// HistoryHandler returns a session's stored exchanges
// @Summary      Get session history
// @Description  Return the question/answer exchanges stored for a session, oldest first
// @Tags         Query
// @Produce      json
// @Param        session  path      string  true  "Session ID"
// @Success      200      {array}   models.ChatHistory
// @Failure      500      {object}  models.QueryResponse
// @Router       /api/history/{session} [get]
func (h *Handlers) HistoryHandler(c *gin.Context) {
	sessionID := c.Param("session")

	history, err := h.history.History(sessionID)
	if err != nil {
		log.WithError(err).WithField("session", sessionID).Error("failed to read history")
		c.JSON(http.StatusInternalServerError, models.QueryResponse{
			Error:     "Failed to retrieve history",
			SessionID: sessionID,
		})
		return
	}

	if history == nil {
		history = []models.ChatHistory{}
	}
	c.JSON(http.StatusOK, history)
}
