package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dkrylov/shortshare/internal/identity"
)

type stubCounter struct {
	count int64
	err   error
	calls int
}

func (s *stubCounter) CountByOwner(ctx context.Context, owner string) (int64, error) {
	s.calls++
	return s.count, s.err
}

func TestQuotaService_CanCreate(t *testing.T) {
	tests := []struct {
		name        string
		tier        string
		counts      []int64
		wantAllowed bool
		wantUsage   int64
	}{
		{"guest under limit", identity.TierGuest, []int64{4, 5}, true, 9},
		{"guest at limit", identity.TierGuest, []int64{5, 5}, false, 10},
		{"guest over limit", identity.TierGuest, []int64{8, 7}, false, 15},
		{"free unlimited", identity.TierFree, []int64{500, 500}, true, 0},
		{"premium unlimited", "premium", []int64{500, 500}, true, 0},
		{"unknown tier falls back to guest", "enterprise", []int64{5, 5}, false, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counters := make([]*stubCounter, len(tt.counts))
			resourceCounters := make([]ResourceCounter, len(tt.counts))
			for i, count := range tt.counts {
				counters[i] = &stubCounter{count: count}
				resourceCounters[i] = counters[i]
			}

			svc := NewQuotaService(testConfig(), resourceCounters...)
			principal := identity.Principal{GuestID: "guest:x", Tier: tt.tier}

			decision, err := svc.CanCreate(context.Background(), principal)
			if err != nil {
				t.Fatalf("CanCreate() error = %v", err)
			}

			if decision.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", decision.Allowed, tt.wantAllowed)
			}
			if decision.Usage != tt.wantUsage {
				t.Errorf("Usage = %d, want %d", decision.Usage, tt.wantUsage)
			}
		})
	}
}

func TestQuotaService_UnlimitedSkipsCounting(t *testing.T) {
	counter := &stubCounter{count: 999}
	svc := NewQuotaService(testConfig(), counter)

	_, err := svc.CanCreate(context.Background(), identity.Principal{UserID: "user:1", Tier: identity.TierFree})
	if err != nil {
		t.Fatalf("CanCreate() error = %v", err)
	}

	if counter.calls != 0 {
		t.Errorf("unlimited tier counted resources %d times, want 0", counter.calls)
	}
}

func TestQuotaService_CounterFailure(t *testing.T) {
	counter := &stubCounter{err: errors.New("database down")}
	svc := NewQuotaService(testConfig(), counter)

	_, err := svc.CanCreate(context.Background(), identity.Principal{GuestID: "guest:x", Tier: identity.TierGuest})
	if err == nil {
		t.Error("CanCreate() should surface counter failures")
	}
}
