package model

import "time"

// Content formats accepted for a text share.
const (
	FormatPlain    = "plain"
	FormatMarkdown = "markdown"
	FormatCode     = "code"
)

// MaxContentSize bounds share content (100 KiB).
const MaxContentSize = 100 * 1024

type TextShare struct {
	ID             int64      `json:"id"`
	ShortKey       string     `json:"short_key"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Format         string     `json:"format"`
	SyntaxLanguage *string    `json:"syntax_language,omitempty"`
	PasswordHash   *string    `json:"-"`
	IsPublic       bool       `json:"is_public"`
	OwnerID        *string    `json:"owner_id,omitempty"`
	ViewCount      int64      `json:"view_count"`
	ViewLimit      *int64     `json:"view_limit,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (s *TextShare) HasPassword() bool {
	return s.PasswordHash != nil && *s.PasswordHash != ""
}

type CreateShareRequest struct {
	Title          string     `json:"title"`
	Content        string     `json:"content" binding:"required"`
	Format         string     `json:"format"`
	SyntaxLanguage string     `json:"syntax_language"`
	CustomSlug     string     `json:"custom_slug"`
	Password       string     `json:"password"`
	IsPublic       *bool      `json:"is_public"`
	ViewLimit      *int64     `json:"view_limit"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// ShareResponse is the resolved payload of a text share. No password hash,
// no owner id.
type ShareResponse struct {
	ShortKey       string     `json:"short_key"`
	ShareURL       string     `json:"share_url"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Format         string     `json:"format"`
	SyntaxLanguage *string    `json:"syntax_language,omitempty"`
	IsPublic       bool       `json:"is_public"`
	Protected      bool       `json:"protected"`
	ViewCount      int64      `json:"view_count"`
	ViewLimit      *int64     `json:"view_limit,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func NewShareResponse(s *TextShare, baseURL string) *ShareResponse {
	return &ShareResponse{
		ShortKey:       s.ShortKey,
		ShareURL:       baseURL + "/s/" + s.ShortKey,
		Title:          s.Title,
		Content:        s.Content,
		Format:         s.Format,
		SyntaxLanguage: s.SyntaxLanguage,
		IsPublic:       s.IsPublic,
		Protected:      s.HasPassword(),
		ViewCount:      s.ViewCount,
		ViewLimit:      s.ViewLimit,
		ExpiresAt:      s.ExpiresAt,
		CreatedAt:      s.CreatedAt,
	}
}
