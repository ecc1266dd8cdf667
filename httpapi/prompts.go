package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/promptdeck/promptdeck/domain"
	"github.com/promptdeck/promptdeck/repository"
)

// PromptHandler exposes the prompt repository over HTTP.
type PromptHandler struct {
	repo *repository.PromptRepository
}

func NewPromptHandler(repo *repository.PromptRepository) *PromptHandler {
	return &PromptHandler{repo: repo}
}

type createPromptRequest struct {
	Title      string   `json:"title"`
	PromptText string   `json:"prompt_text"`
	Type       string   `json:"type"`
	Tags       []string `json:"tags"`
}

type updatePromptRequest struct {
	Title      *string   `json:"title"`
	PromptText *string   `json:"prompt_text"`
	Type       *string   `json:"type"`
	Tags       *[]string `json:"tags"`
}

// GET /api/prompts
func (h *PromptHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	f := domain.PromptFilters{
		Query:    strings.TrimSpace(c.Query("q")),
		AuthorID: strings.TrimSpace(c.Query("author")),
		SortBy:   domain.SortOrder(c.Query("sort")),
		Page:     page,
		PageSize: pageSize,
	}
	for _, t := range c.QueryArray("type") {
		f.Types = append(f.Types, domain.PromptType(t))
	}
	if tags := c.Query("tags"); tags != "" {
		f.Tags = strings.Split(tags, ",")
	}

	pageResult, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pageResult)
}

// GET /api/prompts/trending
func (h *PromptHandler) Trending(c *gin.Context) {
	period := domain.TrendingPeriod(c.DefaultQuery("period", string(domain.TrendingWeek)))
	switch period {
	case domain.TrendingDay, domain.TrendingWeek, domain.TrendingMonth:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "period must be day, week, or month"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	prompts, err := h.repo.Trending(c.Request.Context(), period, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": prompts})
}

// GET /api/prompts/:id
func (h *PromptHandler) Get(c *gin.Context) {
	p, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /api/p/:slug
//
// The public prompt page. Serving it counts as a view.
func (h *PromptHandler) GetBySlug(c *gin.Context) {
	p, err := h.repo.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.repo.IncrementView(c.Request.Context(), p.ID)
	c.JSON(http.StatusOK, p)
}

// POST /api/prompts
func (h *PromptHandler) Create(c *gin.Context) {
	var body createPromptRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := h.repo.Create(c.Request.Context(), domain.CreatePromptInput{
		Title:      body.Title,
		PromptText: body.PromptText,
		Type:       domain.PromptType(body.Type),
		Tags:       body.Tags,
		AuthorID:   c.GetHeader("X-User-ID"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// PATCH /api/prompts/:id
func (h *PromptHandler) Update(c *gin.Context) {
	var body updatePromptRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	in := domain.UpdatePromptInput{
		Title:      body.Title,
		PromptText: body.PromptText,
		Tags:       body.Tags,
	}
	if body.Type != nil {
		t := domain.PromptType(*body.Type)
		in.Type = &t
	}

	p, err := h.repo.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DELETE /api/prompts/:id
func (h *PromptHandler) Delete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/prompts/:id/like
func (h *PromptHandler) ToggleLike(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	result, err := h.repo.ToggleLike(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// POST /api/prompts/:id/copy
//
// Fired when a user copies the prompt text. Always succeeds from the
// client's perspective; the count lands best-effort.
func (h *PromptHandler) Copy(c *gin.Context) {
	h.repo.IncrementCopy(c.Request.Context(), c.Param("id"))
	c.Status(http.StatusAccepted)
}
