package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pageant-backend/internal/domains/contestant"
	res "pageant-backend/internal/shared/response"
)

type ContestantHandler struct {
	repo contestant.Repository
}

func NewContestantHandler(repo contestant.Repository) *ContestantHandler {
	return &ContestantHandler{repo: repo}
}

// List returns active contestants, optionally filtered by event.
// GET /api/v1/contestants?event=<slug>
func (h *ContestantHandler) List(c *gin.Context) {
	contestants, err := h.repo.List(c.Request.Context(), c.Query("event"))
	if err != nil {
		res.InternalServerError(c, "failed to list contestants")
		return
	}

	res.Success(c, http.StatusOK, contestants)
}

// GetByID returns a single contestant with its current vote total.
// GET /api/v1/contestants/:id
func (h *ContestantHandler) GetByID(c *gin.Context) {
	found, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, contestant.ErrContestantNotFound) {
			res.NotFound(c, "contestant not found")
			return
		}
		res.InternalServerError(c, "failed to get contestant")
		return
	}

	res.Success(c, http.StatusOK, found)
}
