package utils

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/dkrylov/shortshare/internal/errors"
	"github.com/dkrylov/shortshare/internal/model"
)

const MaxSlugLength = 50

func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return apperrors.NewValidationError("url", "URL cannot be empty")
	}

	if len(rawURL) > 2048 {
		return apperrors.NewValidationError("url", "URL is too long (max 2048 characters)")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.NewValidationError("url", fmt.Sprintf("invalid URL format: %v", err))
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return apperrors.NewValidationError("url", "URL must start with http:// or https://")
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("url", "URL must contain a valid host")
	}

	return nil
}

// ValidateSlug enforces the custom slug charset [A-Za-z0-9_-], length and
// edge rules. Availability is the store's job, not ours.
func ValidateSlug(slug string) error {
	if slug == "" {
		return apperrors.NewValidationError("custom_slug", "slug cannot be empty")
	}

	if len(slug) > MaxSlugLength {
		return apperrors.NewValidationError("custom_slug", fmt.Sprintf("slug is too long (max %d characters)", MaxSlugLength))
	}

	if strings.HasPrefix(slug, "-") || strings.HasPrefix(slug, "_") ||
		strings.HasSuffix(slug, "-") || strings.HasSuffix(slug, "_") {
		return apperrors.NewValidationError("custom_slug", "slug cannot start or end with dash or underscore")
	}

	for _, char := range slug {
		if !isValidSlugChar(char) {
			return apperrors.NewValidationError("custom_slug", "slug may only contain letters, digits, dash and underscore")
		}
	}

	return nil
}

func isValidSlugChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}

func ValidateShareContent(content, format string) error {
	if content == "" {
		return apperrors.NewValidationError("content", "content cannot be empty")
	}

	if len(content) > model.MaxContentSize {
		return apperrors.NewValidationError("content", fmt.Sprintf("content is too large (max %d bytes)", model.MaxContentSize))
	}

	switch format {
	case model.FormatPlain, model.FormatMarkdown, model.FormatCode:
		return nil
	default:
		return apperrors.NewValidationError("format", "format must be one of: plain, markdown, code")
	}
}

// SanitizeInput strips control characters and trims whitespace.
func SanitizeInput(input string) string {
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, input)

	return strings.TrimSpace(result)
}
