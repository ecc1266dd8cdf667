package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptdeck/promptdeck/repository"
)

// ProfileHandler exposes author profiles over HTTP.
type ProfileHandler struct {
	repo *repository.ProfileRepository
}

func NewProfileHandler(repo *repository.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{repo: repo}
}

// GET /api/profiles/:username
func (h *ProfileHandler) GetByUsername(c *gin.Context) {
	profile, err := h.repo.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
