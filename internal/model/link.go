package model

import "time"

type ShortLink struct {
	ID           int64      `json:"id"`
	ShortKey     string     `json:"short_key"`
	OriginalURL  string     `json:"original_url"`
	OwnerID      *string    `json:"owner_id,omitempty"`
	PasswordHash *string    `json:"-"`
	CustomSlug   bool       `json:"custom_slug"`
	ClickCount   int64      `json:"click_count"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HasPassword reports whether resolving this link requires a password.
func (l *ShortLink) HasPassword() bool {
	return l.PasswordHash != nil && *l.PasswordHash != ""
}

type VerifyPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

type CreateLinkRequest struct {
	URL        string     `json:"url" binding:"required"`
	CustomSlug string     `json:"custom_slug"`
	Password   string     `json:"password"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// LinkResponse is what the API returns for a link. The password hash is
// deliberately not a field here.
type LinkResponse struct {
	ShortKey    string     `json:"short_key"`
	ShortURL    string     `json:"short_url"`
	OriginalURL string     `json:"original_url"`
	ClickCount  int64      `json:"click_count"`
	CustomSlug  bool       `json:"custom_slug"`
	Protected   bool       `json:"protected"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func NewLinkResponse(l *ShortLink, baseURL string) *LinkResponse {
	return &LinkResponse{
		ShortKey:    l.ShortKey,
		ShortURL:    baseURL + "/" + l.ShortKey,
		OriginalURL: l.OriginalURL,
		ClickCount:  l.ClickCount,
		CustomSlug:  l.CustomSlug,
		Protected:   l.HasPassword(),
		ExpiresAt:   l.ExpiresAt,
		CreatedAt:   l.CreatedAt,
	}
}
