package handler

import (
	"context"
	"net/http"

	"github.com/dkrylov/shortshare/internal/identity"
	"github.com/dkrylov/shortshare/internal/model"
	"github.com/dkrylov/shortshare/internal/service"
	"github.com/gin-gonic/gin"
)

// ShareService is the slice of the service layer the share handler consumes.
type ShareService interface {
	Create(ctx context.Context, principal identity.Principal, req *model.CreateShareRequest) (*model.ShareResponse, error)
	Resolve(ctx context.Context, shortKey string, rc service.ResolveContext) (*model.ShareResponse, error)
	VerifyPassword(ctx context.Context, shortKey, password string) (bool, error)
	Delete(ctx context.Context, principal identity.Principal, shortKey string) error
	GetInfo(ctx context.Context, principal identity.Principal, shortKey string) (*model.ShareResponse, error)
	ListOwned(ctx context.Context, principal identity.Principal) ([]*model.ShareResponse, error)
}

type ShareHandler struct {
	shareService ShareService
}

func NewShareHandler(shareService ShareService) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
	}
}

func (h *ShareHandler) CreateShare(c *gin.Context) {
	var req model.CreateShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format",
		})
		return
	}

	response, err := h.shareService.Create(c.Request.Context(), identity.FromContext(c), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// ResolveShare returns the share payload. Denied resolutions carry only the
// reason code, never content.
func (h *ShareHandler) ResolveShare(c *gin.Context) {
	shortKey := c.Param("shortKey")
	if shortKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Short key is required",
		})
		return
	}

	response, err := h.shareService.Resolve(c.Request.Context(), shortKey, service.ResolveContext{
		Principal: identity.FromContext(c),
		Password:  c.Query("password"),
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *ShareHandler) GetShare(c *gin.Context) {
	shortKey := c.Param("shortKey")

	response, err := h.shareService.GetInfo(c.Request.Context(), identity.FromContext(c), shortKey)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *ShareHandler) DeleteShare(c *gin.Context) {
	shortKey := c.Param("shortKey")

	if err := h.shareService.Delete(c.Request.Context(), identity.FromContext(c), shortKey); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Share deleted",
	})
}

func (h *ShareHandler) VerifyPassword(c *gin.Context) {
	shortKey := c.Param("shortKey")

	var req model.VerifyPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid JSON format",
		})
		return
	}

	valid, err := h.shareService.VerifyPassword(c.Request.Context(), shortKey, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": valid,
	})
}

func (h *ShareHandler) ListShares(c *gin.Context) {
	responses, err := h.shareService.ListOwned(c.Request.Context(), identity.FromContext(c))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"shares": responses,
	})
}
