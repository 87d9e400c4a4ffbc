package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SlugChecker answers custom slug availability.
type SlugChecker interface {
	Check(ctx context.Context, slug string) (bool, error)
}

type SlugHandler struct {
	checker SlugChecker
}

func NewSlugHandler(checker SlugChecker) *SlugHandler {
	return &SlugHandler{
		checker: checker,
	}
}

// CheckSlug reports whether a custom slug is still free. The answer is
// advisory; the uniqueness constraint at create has the final word.
func (h *SlugHandler) CheckSlug(c *gin.Context) {
	slug := c.Query("slug")
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Slug parameter is required",
		})
		return
	}

	available, err := h.checker.Check(c.Request.Context(), slug)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"slug":      slug,
		"available": available,
	})
}
