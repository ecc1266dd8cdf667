package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptdeck/promptdeck/domain"
	"github.com/promptdeck/promptdeck/repository"
)

// CollectionHandler exposes the collection repository over HTTP.
type CollectionHandler struct {
	repo *repository.CollectionRepository
}

func NewCollectionHandler(repo *repository.CollectionRepository) *CollectionHandler {
	return &CollectionHandler{repo: repo}
}

type createCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// GET /api/collections
func (h *CollectionHandler) List(c *gin.Context) {
	ownerID := c.GetHeader("X-User-ID")
	if ownerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	collections, err := h.repo.List(c.Request.Context(), ownerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": collections})
}

// GET /api/collections/:id
func (h *CollectionHandler) Get(c *gin.Context) {
	col, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

// POST /api/collections
func (h *CollectionHandler) Create(c *gin.Context) {
	var body createCollectionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	col, err := h.repo.Create(c.Request.Context(), domain.CreateCollectionInput{
		Name:        body.Name,
		Description: body.Description,
		OwnerID:     c.GetHeader("X-User-ID"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, col)
}

type updateCollectionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// PATCH /api/collections/:id
func (h *CollectionHandler) Update(c *gin.Context) {
	var body updateCollectionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	col, err := h.repo.Update(c.Request.Context(), c.Param("id"), domain.UpdateCollectionInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, col)
}

// DELETE /api/collections/:id
func (h *CollectionHandler) Delete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/collections/:id/prompts/:promptID
func (h *CollectionHandler) AddPrompt(c *gin.Context) {
	err := h.repo.AddPrompt(c.Request.Context(), c.Param("id"), c.Param("promptID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/collections/:id/prompts/:promptID
func (h *CollectionHandler) RemovePrompt(c *gin.Context) {
	err := h.repo.RemovePrompt(c.Request.Context(), c.Param("id"), c.Param("promptID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
