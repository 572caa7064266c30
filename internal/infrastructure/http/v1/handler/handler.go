package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/usecase"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type StatusProvider interface {
	Status() usecase.BuildStatus
}

type TileReader interface {
	Tile(ctx context.Context, c tile.Coord) ([]byte, bool, error)
}

type Handler struct {
	status StatusProvider
	tiles  TileReader
}

func NewHandler(s StatusProvider, t TileReader) *Handler {
	return &Handler{
		status: s,
		tiles:  t,
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}
