// Package policy decides whether a resolution attempt may proceed. It is
// pure: verdicts are computed from a resource snapshot, the requester and a
// clock instant, with no I/O. The store's conditional increment re-checks the
// time/limit predicates at commit, so a verdict here is advisory for those
// two checks and authoritative for ownership and password gating.
package policy

import (
	"time"

	"github.com/dkrylov/shortshare/internal/model"
)

type Verdict int

const (
	Allow Verdict = iota
	DenyNotFound
	DenyExpired
	DenyLimitReached
	DenyUnauthorized
	DenyPasswordRequired
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case DenyNotFound:
		return "not_found"
	case DenyExpired:
		return "expired"
	case DenyLimitReached:
		return "limit_reached"
	case DenyUnauthorized:
		return "unauthorized"
	case DenyPasswordRequired:
		return "password_required"
	default:
		return "unknown"
	}
}

// Snapshot is the state a verdict is computed from. Exists=false stands in
// for a missing resource so callers have a single evaluation path.
type Snapshot struct {
	Exists      bool
	ExpiresAt   *time.Time
	Count       int64
	Limit       *int64 // nil = unlimited
	IsPublic    bool
	OwnerID     string // empty = unowned
	HasPassword bool
}

// Requester describes the caller. PasswordOK is set once a presented
// password has been verified against the stored hash; verification itself
// happens outside this package.
type Requester struct {
	Owner      string
	PasswordOK bool
}

// Evaluate applies the checks in fixed order: absence and expiry first so a
// missing or expired resource never reveals that it was private or password
// protected.
func Evaluate(s Snapshot, r Requester, now time.Time) Verdict {
	if !s.Exists {
		return DenyNotFound
	}
	if s.ExpiresAt != nil && now.After(*s.ExpiresAt) {
		return DenyExpired
	}
	if s.Limit != nil && s.Count >= *s.Limit {
		return DenyLimitReached
	}
	if !s.IsPublic && (r.Owner == "" || r.Owner != s.OwnerID) {
		return DenyUnauthorized
	}
	if s.HasPassword && !r.PasswordOK {
		return DenyPasswordRequired
	}
	return Allow
}

// LinkSnapshot builds a Snapshot from a short link. Links have no view
// limit and are always publicly resolvable; only expiry and password apply.
func LinkSnapshot(l *model.ShortLink) Snapshot {
	if l == nil {
		return Snapshot{}
	}
	s := Snapshot{
		Exists:      true,
		ExpiresAt:   l.ExpiresAt,
		Count:       l.ClickCount,
		IsPublic:    true,
		HasPassword: l.HasPassword(),
	}
	if l.OwnerID != nil {
		s.OwnerID = *l.OwnerID
	}
	return s
}

func ShareSnapshot(t *model.TextShare) Snapshot {
	if t == nil {
		return Snapshot{}
	}
	s := Snapshot{
		Exists:      true,
		ExpiresAt:   t.ExpiresAt,
		Count:       t.ViewCount,
		Limit:       t.ViewLimit,
		IsPublic:    t.IsPublic,
		HasPassword: t.HasPassword(),
	}
	if t.OwnerID != nil {
		s.OwnerID = *t.OwnerID
	}
	return s
}
