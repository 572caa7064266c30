package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/tile"
	"github.com/jaennil/guide_helper/backend/tilebuilder/internal/usecase"
	"github.com/jaennil/guide_helper/backend/tilebuilder/pkg/logger"
)

// Tile serves one tile straight from the store the build is writing to.
func (h *Handler) Tile(c *gin.Context) {
	l := logger.FromContext(c.Request.Context())

	tileset := c.Param("tileset")

	var zxy [3]uint32
	for i, name := range []string{"z", "x", "y"} {
		v, err := strconv.ParseUint(c.Param(name), 10, 32)
		if err != nil {
			l.Warn("invalid tile parameter", name, c.Param(name), "error", err)
			h.RespondWithJSON(c, http.StatusBadRequest, name+" should be a non-negative integer", nil)
			return
		}
		zxy[i] = uint32(v)
	}

	coord := tile.New(tileset, zxy[0], zxy[1], zxy[2])
	if !coord.Valid() {
		h.RespondWithJSON(c, http.StatusBadRequest, "tile is outside the grid", nil)
		return
	}

	data, found, err := h.tiles.Tile(c.Request.Context(), coord)
	if err != nil {
		if errors.Is(err, usecase.ErrStoreNotReady) {
			h.RespondWithJSON(c, http.StatusServiceUnavailable, err.Error(), nil)
			return
		}
		l.Error("failed to read tile", "tile", coord.String(), "error", err)
		_ = c.Error(err)
		h.RespondWithInternalServerError(c)
		return
	}

	if !found {
		h.RespondWithJSON(c, http.StatusNotFound, "tile not cached", nil)
		return
	}

	c.Data(http.StatusOK, http.DetectContentType(data), data)
}
