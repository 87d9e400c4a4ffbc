package repository

import (
	"context"
	"log"
	"time"

	"github.com/dkrylov/shortshare/internal/cache"
	"github.com/dkrylov/shortshare/internal/model"
)

// linkSnapshot is the cache-side form of a short link. The model's JSON tags
// strip the password hash for API responses, so the model cannot be cached
// as-is: a hash lost in the round trip would disable the password gate on
// every cache hit. The snapshot carries every field explicitly.
type linkSnapshot struct {
	ID           int64      `json:"id"`
	ShortKey     string     `json:"short_key"`
	OriginalURL  string     `json:"original_url"`
	OwnerID      *string    `json:"owner_id,omitempty"`
	PasswordHash *string    `json:"password_hash,omitempty"`
	CustomSlug   bool       `json:"custom_slug"`
	ClickCount   int64      `json:"click_count"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func newLinkSnapshot(l *model.ShortLink) *linkSnapshot {
	return &linkSnapshot{
		ID:           l.ID,
		ShortKey:     l.ShortKey,
		OriginalURL:  l.OriginalURL,
		OwnerID:      l.OwnerID,
		PasswordHash: l.PasswordHash,
		CustomSlug:   l.CustomSlug,
		ClickCount:   l.ClickCount,
		ExpiresAt:    l.ExpiresAt,
		CreatedAt:    l.CreatedAt,
	}
}

func (s *linkSnapshot) toModel() *model.ShortLink {
	return &model.ShortLink{
		ID:           s.ID,
		ShortKey:     s.ShortKey,
		OriginalURL:  s.OriginalURL,
		OwnerID:      s.OwnerID,
		PasswordHash: s.PasswordHash,
		CustomSlug:   s.CustomSlug,
		ClickCount:   s.ClickCount,
		ExpiresAt:    s.ExpiresAt,
		CreatedAt:    s.CreatedAt,
	}
}

// shareSnapshot mirrors linkSnapshot for text shares.
type shareSnapshot struct {
	ID             int64      `json:"id"`
	ShortKey       string     `json:"short_key"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Format         string     `json:"format"`
	SyntaxLanguage *string    `json:"syntax_language,omitempty"`
	PasswordHash   *string    `json:"password_hash,omitempty"`
	IsPublic       bool       `json:"is_public"`
	OwnerID        *string    `json:"owner_id,omitempty"`
	ViewCount      int64      `json:"view_count"`
	ViewLimit      *int64     `json:"view_limit,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func newShareSnapshot(s *model.TextShare) *shareSnapshot {
	return &shareSnapshot{
		ID:             s.ID,
		ShortKey:       s.ShortKey,
		Title:          s.Title,
		Content:        s.Content,
		Format:         s.Format,
		SyntaxLanguage: s.SyntaxLanguage,
		PasswordHash:   s.PasswordHash,
		IsPublic:       s.IsPublic,
		OwnerID:        s.OwnerID,
		ViewCount:      s.ViewCount,
		ViewLimit:      s.ViewLimit,
		ExpiresAt:      s.ExpiresAt,
		CreatedAt:      s.CreatedAt,
	}
}

func (s *shareSnapshot) toModel() *model.TextShare {
	return &model.TextShare{
		ID:             s.ID,
		ShortKey:       s.ShortKey,
		Title:          s.Title,
		Content:        s.Content,
		Format:         s.Format,
		SyntaxLanguage: s.SyntaxLanguage,
		PasswordHash:   s.PasswordHash,
		IsPublic:       s.IsPublic,
		OwnerID:        s.OwnerID,
		ViewCount:      s.ViewCount,
		ViewLimit:      s.ViewLimit,
		ExpiresAt:      s.ExpiresAt,
		CreatedAt:      s.CreatedAt,
	}
}

// CachedLinkRepository decorates a LinkRepository with a Redis snapshot
// cache. Only reads are cached: admission always goes to the database,
// because a cached counter must never decide whether a request is admitted.
type CachedLinkRepository struct {
	inner LinkRepository
	cache cache.Cache
}

func NewCachedLinkRepository(inner LinkRepository, c cache.Cache) LinkRepository {
	return &CachedLinkRepository{
		inner: inner,
		cache: c,
	}
}

func (r *CachedLinkRepository) Create(ctx context.Context, link *model.ShortLink) error {
	if err := r.inner.Create(ctx, link); err != nil {
		return err
	}

	cacheKey := cache.CacheKeys.Link(link.ShortKey)
	if err := r.cache.Set(ctx, cacheKey, newLinkSnapshot(link)); err != nil {
		log.Printf("Failed to cache link: %v", err)
	}

	return nil
}

func (r *CachedLinkRepository) GetByKey(ctx context.Context, shortKey string) (*model.ShortLink, error) {
	cacheKey := cache.CacheKeys.Link(shortKey)

	var cached linkSnapshot
	err := r.cache.Get(ctx, cacheKey, &cached)
	if err == nil {
		return cached.toModel(), nil
	}
	if err != cache.ErrCacheMiss {
		log.Printf("Cache error: %v", err)
	}

	link, err := r.inner.GetByKey(ctx, shortKey)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, cacheKey, newLinkSnapshot(link)); err != nil {
		log.Printf("Failed to cache link: %v", err)
	}

	return link, nil
}

func (r *CachedLinkRepository) ExistsByKey(ctx context.Context, shortKey string) (bool, error) {
	exists, err := r.cache.Exists(ctx, cache.CacheKeys.Link(shortKey))
	if err == nil && exists {
		return true, nil
	}

	return r.inner.ExistsByKey(ctx, shortKey)
}

// AdmitAndIncrement goes straight to the database; the cached snapshot is
// invalidated afterwards so the next read sees the fresh count.
func (r *CachedLinkRepository) AdmitAndIncrement(ctx context.Context, shortKey string, now time.Time) (int64, error) {
	newCount, err := r.inner.AdmitAndIncrement(ctx, shortKey, now)

	if cacheErr := r.cache.Delete(ctx, cache.CacheKeys.Link(shortKey)); cacheErr != nil {
		log.Printf("Failed to invalidate link cache: %v", cacheErr)
	}

	return newCount, err
}

func (r *CachedLinkRepository) AppendLog(ctx context.Context, entry *model.AccessLogEntry) error {
	return r.inner.AppendLog(ctx, entry)
}

func (r *CachedLinkRepository) Delete(ctx context.Context, shortKey, requester string) error {
	if err := r.inner.Delete(ctx, shortKey, requester); err != nil {
		return err
	}

	if err := r.cache.Delete(ctx, cache.CacheKeys.Link(shortKey)); err != nil {
		log.Printf("Failed to invalidate link cache: %v", err)
	}

	return nil
}

func (r *CachedLinkRepository) ListByOwner(ctx context.Context, owner string) ([]*model.ShortLink, error) {
	return r.inner.ListByOwner(ctx, owner)
}

func (r *CachedLinkRepository) CountByOwner(ctx context.Context, owner string) (int64, error) {
	return r.inner.CountByOwner(ctx, owner)
}

// CachedShareRepository mirrors CachedLinkRepository for text shares.
type CachedShareRepository struct {
	inner ShareRepository
	cache cache.Cache
}

func NewCachedShareRepository(inner ShareRepository, c cache.Cache) ShareRepository {
	return &CachedShareRepository{
		inner: inner,
		cache: c,
	}
}

func (r *CachedShareRepository) Create(ctx context.Context, share *model.TextShare) error {
	if err := r.inner.Create(ctx, share); err != nil {
		return err
	}

	cacheKey := cache.CacheKeys.Share(share.ShortKey)
	if err := r.cache.Set(ctx, cacheKey, newShareSnapshot(share)); err != nil {
		log.Printf("Failed to cache share: %v", err)
	}

	return nil
}

func (r *CachedShareRepository) GetByKey(ctx context.Context, shortKey string) (*model.TextShare, error) {
	cacheKey := cache.CacheKeys.Share(shortKey)

	var cached shareSnapshot
	err := r.cache.Get(ctx, cacheKey, &cached)
	if err == nil {
		return cached.toModel(), nil
	}
	if err != cache.ErrCacheMiss {
		log.Printf("Cache error: %v", err)
	}

	share, err := r.inner.GetByKey(ctx, shortKey)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, cacheKey, newShareSnapshot(share)); err != nil {
		log.Printf("Failed to cache share: %v", err)
	}

	return share, nil
}

func (r *CachedShareRepository) ExistsByKey(ctx context.Context, shortKey string) (bool, error) {
	exists, err := r.cache.Exists(ctx, cache.CacheKeys.Share(shortKey))
	if err == nil && exists {
		return true, nil
	}

	return r.inner.ExistsByKey(ctx, shortKey)
}

func (r *CachedShareRepository) AdmitAndIncrement(ctx context.Context, shortKey string, now time.Time) (int64, error) {
	newCount, err := r.inner.AdmitAndIncrement(ctx, shortKey, now)

	if cacheErr := r.cache.Delete(ctx, cache.CacheKeys.Share(shortKey)); cacheErr != nil {
		log.Printf("Failed to invalidate share cache: %v", cacheErr)
	}

	return newCount, err
}

func (r *CachedShareRepository) AppendLog(ctx context.Context, entry *model.AccessLogEntry) error {
	return r.inner.AppendLog(ctx, entry)
}

func (r *CachedShareRepository) Delete(ctx context.Context, shortKey, requester string) error {
	if err := r.inner.Delete(ctx, shortKey, requester); err != nil {
		return err
	}

	if err := r.cache.Delete(ctx, cache.CacheKeys.Share(shortKey)); err != nil {
		log.Printf("Failed to invalidate share cache: %v", err)
	}

	return nil
}

func (r *CachedShareRepository) ListByOwner(ctx context.Context, owner string) ([]*model.TextShare, error) {
	return r.inner.ListByOwner(ctx, owner)
}

func (r *CachedShareRepository) CountByOwner(ctx context.Context, owner string) (int64, error) {
	return r.inner.CountByOwner(ctx, owner)
}
