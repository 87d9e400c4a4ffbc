package service

import (
	"context"
	"fmt"

	"github.com/dkrylov/shortshare/internal/config"
	"github.com/dkrylov/shortshare/internal/identity"
)

// ResourceCounter is the slice of a repository the quota check needs.
type ResourceCounter interface {
	CountByOwner(ctx context.Context, owner string) (int64, error)
}

// QuotaDecision reports the outcome of a creation quota check.
type QuotaDecision struct {
	Allowed bool
	Usage   int64
	Limit   int // -1 = unlimited
}

// QuotaService compares a principal's existing resources against the tier
// ceiling from config. The check is advisory: it is not atomic with the
// creation that follows, so two racing creations at the boundary may let one
// slip over. That is an accepted soft limit, not a correctness invariant.
type QuotaService struct {
	counters []ResourceCounter
	cfg      *config.Config
}

func NewQuotaService(cfg *config.Config, counters ...ResourceCounter) *QuotaService {
	return &QuotaService{
		counters: counters,
		cfg:      cfg,
	}
}

// CanCreate sums the principal's resources across all counted kinds and
// checks them against the tier ceiling.
func (s *QuotaService) CanCreate(ctx context.Context, principal identity.Principal) (QuotaDecision, error) {
	limit := s.cfg.QuotaFor(principal.Tier)
	if limit < 0 {
		return QuotaDecision{Allowed: true, Limit: limit}, nil
	}

	var usage int64
	for _, counter := range s.counters {
		count, err := counter.CountByOwner(ctx, principal.Owner())
		if err != nil {
			return QuotaDecision{}, fmt.Errorf("failed to count owned resources: %w", err)
		}
		usage += count
	}

	return QuotaDecision{
		Allowed: usage < int64(limit),
		Usage:   usage,
		Limit:   limit,
	}, nil
}
