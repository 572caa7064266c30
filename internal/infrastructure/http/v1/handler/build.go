package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) BuildStatus(c *gin.Context) {
	status := h.status.Status()
	h.RespondWithJSON(c, http.StatusOK, status.Phase, status)
}
