package repository

import (
	"context"
	"time"

	"github.com/dkrylov/shortshare/internal/model"
)

// LinkRepository is the store contract for short links.
//
// AdmitAndIncrement is the critical primitive: it re-evaluates the admission
// predicate (not expired) and increments the click counter as one statement,
// so the increment itself is the unit of admission. It returns the new count
// on admission, or ErrNotFound / ErrExpired.
type LinkRepository interface {
	Create(ctx context.Context, link *model.ShortLink) error
	GetByKey(ctx context.Context, shortKey string) (*model.ShortLink, error)
	ExistsByKey(ctx context.Context, shortKey string) (bool, error)
	AdmitAndIncrement(ctx context.Context, shortKey string, now time.Time) (int64, error)
	AppendLog(ctx context.Context, entry *model.AccessLogEntry) error
	Delete(ctx context.Context, shortKey, requester string) error
	ListByOwner(ctx context.Context, owner string) ([]*model.ShortLink, error)
	CountByOwner(ctx context.Context, owner string) (int64, error)
}

// ShareRepository is the store contract for text shares. AdmitAndIncrement
// additionally enforces the view limit inside the same statement and may
// return ErrLimitReached.
type ShareRepository interface {
	Create(ctx context.Context, share *model.TextShare) error
	GetByKey(ctx context.Context, shortKey string) (*model.TextShare, error)
	ExistsByKey(ctx context.Context, shortKey string) (bool, error)
	AdmitAndIncrement(ctx context.Context, shortKey string, now time.Time) (int64, error)
	AppendLog(ctx context.Context, entry *model.AccessLogEntry) error
	Delete(ctx context.Context, shortKey, requester string) error
	ListByOwner(ctx context.Context, owner string) ([]*model.TextShare, error)
	CountByOwner(ctx context.Context, owner string) (int64, error)
}
