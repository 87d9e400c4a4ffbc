package handler

import (
	"context"
	"net/http"

	"github.com/dkrylov/shortshare/internal/identity"
	"github.com/dkrylov/shortshare/internal/model"
	"github.com/dkrylov/shortshare/internal/service"
	"github.com/gin-gonic/gin"
)

// LinkService is the slice of the service layer the link handler consumes.
type LinkService interface {
	Create(ctx context.Context, principal identity.Principal, req *model.CreateLinkRequest) (*model.LinkResponse, error)
	Resolve(ctx context.Context, shortKey string, rc service.ResolveContext) (*model.LinkResponse, error)
	VerifyPassword(ctx context.Context, shortKey, password string) (bool, error)
	Delete(ctx context.Context, principal identity.Principal, shortKey string) error
	GetInfo(ctx context.Context, principal identity.Principal, shortKey string) (*model.LinkResponse, error)
	ListOwned(ctx context.Context, principal identity.Principal) ([]*model.LinkResponse, error)
}

type LinkHandler struct {
	linkService LinkService
}

func NewLinkHandler(linkService LinkService) *LinkHandler {
	return &LinkHandler{
		linkService: linkService,
	}
}

func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req model.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format",
		})
		return
	}

	response, err := h.linkService.Create(c.Request.Context(), identity.FromContext(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// Redirect resolves a short key and issues the redirect. The click counter
// was already incremented by the time the 302 goes out.
func (h *LinkHandler) Redirect(c *gin.Context) {
	shortKey := c.Param("shortKey")
	if shortKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Short key is required",
		})
		return
	}

	response, err := h.linkService.Resolve(c.Request.Context(), shortKey, service.ResolveContext{
		Principal: identity.FromContext(c),
		Password:  c.Query("password"),
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.Redirect(http.StatusFound, response.OriginalURL)
}

// GetLink returns link metadata to its owner.
func (h *LinkHandler) GetLink(c *gin.Context) {
	shortKey := c.Param("shortKey")

	response, err := h.linkService.GetInfo(c.Request.Context(), identity.FromContext(c), shortKey)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *LinkHandler) DeleteLink(c *gin.Context) {
	shortKey := c.Param("shortKey")

	if err := h.linkService.Delete(c.Request.Context(), identity.FromContext(c), shortKey); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Link deleted",
	})
}

func (h *LinkHandler) VerifyPassword(c *gin.Context) {
	shortKey := c.Param("shortKey")

	var req model.VerifyPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format",
		})
		return
	}

	valid, err := h.linkService.VerifyPassword(c.Request.Context(), shortKey, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": valid,
	})
}

func (h *LinkHandler) ListLinks(c *gin.Context) {
	responses, err := h.linkService.ListOwned(c.Request.Context(), identity.FromContext(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"links": responses,
	})
}
