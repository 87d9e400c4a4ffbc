package handler

import (
	"errors"
	"net/http"

	apperrors "github.com/dkrylov/shortshare/internal/errors"
	"github.com/gin-gonic/gin"
)

// handleError maps the error taxonomy to stable machine-readable codes.
// Clients distinguish "never existed" (404), "existed but gone" (410),
// "exists but not yours" (403) and "needs a password" (401) without parsing
// message text. Store faults are the only 503: those may be retried, policy
// denials must not be.
func handleError(c *gin.Context, err error) {
	if apperrors.IsValidationError(err) {
		validationErr := apperrors.GetValidationError(err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": validationErr.Message,
			"field":   validationErr.Field,
		})
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Resource not found",
		})
	case errors.Is(err, apperrors.ErrExpired):
		c.JSON(http.StatusGone, gin.H{
			"error":   "expired",
			"message": "Resource has expired",
		})
	case errors.Is(err, apperrors.ErrLimitReached):
		c.JSON(http.StatusGone, gin.H{
			"error":   "limit_reached",
			"message": "View limit has been reached",
		})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "unauthorized",
			"message": "You do not have access to this resource",
		})
	case errors.Is(err, apperrors.ErrPasswordRequired):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "password_required",
			"message": "This resource is password protected",
		})
	case errors.Is(err, apperrors.ErrInvalidPassword):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "invalid_password",
			"message": "Invalid password",
		})
	case errors.Is(err, apperrors.ErrKeyExists):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"message": "Short key is already taken",
		})
	case errors.Is(err, apperrors.ErrQuotaExceeded):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "quota_exceeded",
			"message": "Creation quota exceeded for your tier",
		})
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "store_unavailable",
			"message": "Storage is temporarily unavailable, please retry",
		})
	default:
		if apperrors.IsBusinessError(err) {
			businessErr := apperrors.GetBusinessError(err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "business_error",
				"message": businessErr.Message,
				"code":    businessErr.Code,
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}
}
