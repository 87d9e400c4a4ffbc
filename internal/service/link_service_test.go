package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkrylov/shortshare/internal/config"
	apperrors "github.com/dkrylov/shortshare/internal/errors"
	"github.com/dkrylov/shortshare/internal/identity"
	"github.com/dkrylov/shortshare/internal/model"
)

// mockLinkRepository keeps links in a map. AdmitAndIncrement holds the
// mutex across predicate and increment, mirroring the single conditional
// UPDATE of the real store.
type mockLinkRepository struct {
	mu         sync.Mutex
	links      map[string]*model.ShortLink
	logs       []*model.AccessLogEntry
	nextID     int64
	failCreate int // first N creates return ErrKeyExists
	shouldFail bool
}

func newMockLinkRepository() *mockLinkRepository {
	return &mockLinkRepository{
		links: make(map[string]*model.ShortLink),
	}
}

func (m *mockLinkRepository) Create(ctx context.Context, link *model.ShortLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFail {
		return apperrors.NewStoreError("create link", errors.New("database down"))
	}

	if m.failCreate > 0 {
		m.failCreate--
		return apperrors.ErrKeyExists
	}

	if _, exists := m.links[link.ShortKey]; exists {
		return apperrors.ErrKeyExists
	}

	m.nextID++
	link.ID = m.nextID
	stored := *link
	m.links[link.ShortKey] = &stored
	return nil
}

func (m *mockLinkRepository) GetByKey(ctx context.Context, shortKey string) (*model.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldFail {
		return nil, apperrors.NewStoreError("get link", errors.New("database down"))
	}

	link, exists := m.links[shortKey]
	if !exists {
		return nil, apperrors.ErrNotFound
	}

	snapshot := *link
	return &snapshot, nil
}

func (m *mockLinkRepository) ExistsByKey(ctx context.Context, shortKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.links[shortKey]
	return exists, nil
}

func (m *mockLinkRepository) AdmitAndIncrement(ctx context.Context, shortKey string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[shortKey]
	if !exists {
		return 0, apperrors.ErrNotFound
	}
	if link.ExpiresAt != nil && now.After(*link.ExpiresAt) {
		return 0, apperrors.ErrExpired
	}

	link.ClickCount++
	return link.ClickCount, nil
}

func (m *mockLinkRepository) AppendLog(ctx context.Context, entry *model.AccessLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logs = append(m.logs, entry)
	return nil
}

func (m *mockLinkRepository) Delete(ctx context.Context, shortKey, requester string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[shortKey]
	if !exists {
		return apperrors.ErrNotFound
	}
	if link.OwnerID == nil || *link.OwnerID != requester {
		return apperrors.ErrUnauthorized
	}

	delete(m.links, shortKey)
	return nil
}

func (m *mockLinkRepository) ListByOwner(ctx context.Context, owner string) ([]*model.ShortLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var links []*model.ShortLink
	for _, link := range m.links {
		if link.OwnerID != nil && *link.OwnerID == owner {
			snapshot := *link
			links = append(links, &snapshot)
		}
	}
	return links, nil
}

func (m *mockLinkRepository) CountByOwner(ctx context.Context, owner string) (int64, error) {
	links, _ := m.ListByOwner(ctx, owner)
	return int64(len(links)), nil
}

func (m *mockLinkRepository) logCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			QuotaTiers: map[string]int{
				"guest":   10,
				"free":    -1,
				"premium": -1,
			},
		},
	}
}

func newTestLinkService(repo *mockLinkRepository) (*LinkService, *AuditLogger) {
	audit := NewAuditLogger(repo, 16)
	quota := NewQuotaService(testConfig(), repo)
	return NewLinkService(repo, quota, audit, "http://localhost:8080", 7, 5), audit
}

func guestPrincipal(id string) identity.Principal {
	return identity.Principal{GuestID: "guest:" + id, Tier: identity.TierGuest}
}

func drainAudit(t *testing.T, audit *AuditLogger) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := audit.Shutdown(ctx); err != nil {
		t.Fatalf("audit shutdown: %v", err)
	}
}

func TestLinkService_Create(t *testing.T) {
	tests := []struct {
		name    string
		request *model.CreateLinkRequest
		setup   func(*mockLinkRepository)
		wantErr error
	}{
		{
			name:    "valid URL",
			request: &model.CreateLinkRequest{URL: "https://example.com"},
		},
		{
			name:    "invalid URL",
			request: &model.CreateLinkRequest{URL: "not-a-url"},
			wantErr: &apperrors.ValidationError{},
		},
		{
			name:    "valid custom slug",
			request: &model.CreateLinkRequest{URL: "https://example.com", CustomSlug: "my-link"},
		},
		{
			name:    "invalid custom slug",
			request: &model.CreateLinkRequest{URL: "https://example.com", CustomSlug: "my link"},
			wantErr: &apperrors.ValidationError{},
		},
		{
			name:    "custom slug taken",
			request: &model.CreateLinkRequest{URL: "https://example.com", CustomSlug: "taken"},
			setup: func(m *mockLinkRepository) {
				owner := "guest:other"
				m.links["taken"] = &model.ShortLink{ShortKey: "taken", OwnerID: &owner}
			},
			wantErr: apperrors.ErrKeyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockLinkRepository()
			if tt.setup != nil {
				tt.setup(repo)
			}
			svc, audit := newTestLinkService(repo)
			defer drainAudit(t, audit)

			resp, err := svc.Create(context.Background(), guestPrincipal("a"), tt.request)

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Create() error = %v", err)
				}
				if resp.ShortKey == "" {
					t.Error("Create() returned empty short key")
				}
				if resp.ClickCount != 0 {
					t.Errorf("Create() click count = %d, want 0", resp.ClickCount)
				}
				if !strings.HasPrefix(resp.ShortURL, "http://localhost:8080/") {
					t.Errorf("Create() short URL = %q", resp.ShortURL)
				}
				return
			}

			if _, ok := tt.wantErr.(*apperrors.ValidationError); ok {
				if !apperrors.IsValidationError(err) {
					t.Errorf("Create() error = %v, want validation error", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLinkService_Create_RetriesOnConflict(t *testing.T) {
	repo := newMockLinkRepository()
	repo.failCreate = 3
	svc, audit := newTestLinkService(repo)
	defer drainAudit(t, audit)

	resp, err := svc.Create(context.Background(), guestPrincipal("a"), &model.CreateLinkRequest{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Create() should retry past conflicts, got error %v", err)
	}
	if resp.ShortKey == "" {
		t.Error("Create() returned empty short key")
	}
}

func TestLinkService_Create_GivesUpAfterMaxRetries(t *testing.T) {
	repo := newMockLinkRepository()
	repo.failCreate = 100
	svc, audit := newTestLinkService(repo)
	defer drainAudit(t, audit)

	_, err := svc.Create(context.Background(), guestPrincipal("a"), &model.CreateLinkRequest{URL: "https://example.com"})
	if !apperrors.IsBusinessError(err) {
		t.Errorf("Create() error = %v, want key generation business error", err)
	}
}

func TestLinkService_Create_QuotaExceeded(t *testing.T) {
	repo := newMockLinkRepository()
	svc, audit := newTestLinkService(repo)
	defer drainAudit(t, audit)

	principal := guestPrincipal("hoarder")
	for i := 0; i < 10; i++ {
		_, err := svc.Create(context.Background(), principal, &model.CreateLinkRequest{URL: "https://example.com"})
		if err != nil {
			t.Fatalf("Create() #%d error = %v", i, err)
		}
	}

	_, err := svc.Create(context.Background(), principal, &model.CreateLinkRequest{URL: "https://example.com"})
	if !errors.Is(err, apperrors.ErrQuotaExceeded) {
		t.Errorf("Create() error = %v, want ErrQuotaExceeded", err)
	}

	// A different guest is unaffected.
	if _, err := svc.Create(context.Background(), guestPrincipal("b"), &model.CreateLinkRequest{URL: "https://example.com"}); err != nil {
		t.Errorf("Create() by other principal error = %v", err)
	}
}

func TestLinkService_Resolve(t *testing.T) {
	repo := newMockLinkRepository()
	svc, audit := newTestLinkService(repo)

	created, err := svc.Create(context.Background(), guestPrincipal("a"), &model.CreateLinkRequest{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	resp, err := svc.Resolve(context.Background(), created.ShortKey, ResolveContext{
		Principal: guestPrincipal("visitor"),
		IPAddress: "203.0.113.7",
		UserAgent: "test-agent",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resp.OriginalURL != "https://example.com" {
		t.Errorf("Resolve() target = %q, want https://example.com", resp.OriginalURL)
	}
	if resp.ClickCount != 1 {
		t.Errorf("Resolve() click count = %d, want 1", resp.ClickCount)
	}

	drainAudit(t, audit)
	if repo.logCount() != 1 {
		t.Errorf("log entries = %d, want 1", repo.logCount())
	}
}

func TestLinkService_Resolve_NotFound(t *testing.T) {
	repo := newMockLinkRepository()
	svc, audit := newTestLinkService(repo)
	defer drainAudit(t, audit)

	_, err := svc.Resolve(context.Background(), "missing", ResolveContext{Principal: guestPrincipal("a")})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestLinkService_Resolve_Expired(t *testing.T) {
	repo := newMockLinkRepository()
	svc, audit := newTestLinkService(repo)

	past := time.Now().Add(-time.Second)
	created, err := svc.Create(context.Background(), guestPrincipal("a"), &model.CreateLinkRequest{
		URL:       "https://example.com",
		ExpiresAt: &past,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.Resolve(context.Background(), created.ShortKey, ResolveContext{Principal: guestPrincipal("b")})
	if !errors.Is(err, apperrors.ErrExpired) {
		t.Errorf("Resolve() error = %v, want ErrExpired", err)
	}

	drainAudit(t, audit)
	if repo.logCount() != 0 {
		t.Errorf("denied resolution wrote %d log entries, want 0", repo.logCount())
	}
}

func TestLinkService_Resolve_PasswordFlow(t *testing.T) {
	repo := newMockLinkRepository()
	svc, audit := newTestLinkService(repo)
	defer drainAudit(t, audit)

	created, err := svc.Create(context.Background(), guestPrincipal("a"), &model.CreateLinkRequest{
		URL:      "https://example.com",
		Password: "s3cret",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Without a password.
	_, err = svc.Resolve(context.Background(), created.ShortKey, ResolveContext{Principal: guestPrincipal("b")})
	if !errors.Is(err, apperrors.ErrPasswordRequired) {
		t.Fatalf("Resolve() error = %v, want ErrPasswordRequired", err)
	}

	// Wrong password.
	_, err = svc.Resolve(context.Background(), created.ShortKey, ResolveContext{
		Principal: guestPrincipal("b"),
		Password:  "wrong",
	})
	if !errors.Is(err, apperrors.ErrInvalidPassword) {
		t.Fatalf("Resolve() error = %v, want ErrInvalidPassword", err)
	}

	// No counter movement on denials.
	link, _ := repo.GetByKey(context.Background(), created.ShortKey)
	if link.ClickCount != 0 {
		t.Errorf("click count after denials = %d, want 0", link.ClickCount)
	}

	// Correct password.
	resp, err := svc.Resolve(context.Background(), created.ShortKey, ResolveContext{
		Principal: guestPrincipal("b"),
		Password:  "s3cret",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resp.ClickCount != 1 {
		t.Errorf("click count = %d, want 1", resp.ClickCount)
	}
}

func TestLinkService_Resolve_ExpiredBeforePassword(t *testing.T) {
	repo := newMockLinkRepository()
	svc, audit := newTestLinkService(repo)
	defer drainAudit(t, audit)

	past := time.Now().Add(-time.Hour)
	created, err := svc.Create(context.Background(), guestPrincipal("a"), &model.CreateLinkRequest{
		URL:       "https://example.com",
		Password:  "s3cret",
		ExpiresAt: &past,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Expiry outranks the password gate: a dead link answers expired even
	// when a wrong password is attached, revealing nothing about protection.
	_, err = svc.Resolve(context.Background(), created.ShortKey, ResolveContext{
		Principal: guestPrincipal("b"),
		Password:  "wrong",
	})
	if !errors.Is(err, apperrors.ErrExpired) {
		t.Errorf("Resolve(expired, wrong password) error = %v, want ErrExpired", err)
	}

	link, _ := repo.GetByKey(context.Background(), created.ShortKey)
	if link.ClickCount != 0 {
		t.Errorf("click count = %d, want 0 after denial", link.ClickCount)
	}
}

func TestLinkService_VerifyPassword(t *testing.T) {
	repo := newMockLinkRepository()
	svc, audit := newTestLinkService(repo)
	defer drainAudit(t, audit)

	created, err := svc.Create(context.Background(), guestPrincipal("a"), &model.CreateLinkRequest{
		URL:      "https://example.com",
		Password: "s3cret",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	valid, err := svc.VerifyPassword(context.Background(), created.ShortKey, "s3cret")
	if err != nil || !valid {
		t.Errorf("VerifyPassword(correct) = %v, %v; want true, nil", valid, err)
	}

	valid, err = svc.VerifyPassword(context.Background(), created.ShortKey, "wrong")
	if err != nil || valid {
		t.Errorf("VerifyPassword(wrong) = %v, %v; want false, nil", valid, err)
	}

	if _, err := svc.VerifyPassword(context.Background(), "missing", "x"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("VerifyPassword(missing key) error = %v, want ErrNotFound", err)
	}

	link, _ := repo.GetByKey(context.Background(), created.ShortKey)
	if link.ClickCount != 0 {
		t.Errorf("VerifyPassword moved the counter to %d", link.ClickCount)
	}
}

func TestLinkService_Resolve_MonotonicCounter(t *testing.T) {
	repo := newMockLinkRepository()
	svc, audit := newTestLinkService(repo)

	created, err := svc.Create(context.Background(), guestPrincipal("a"), &model.CreateLinkRequest{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Resolve(context.Background(), created.ShortKey, ResolveContext{
				Principal: guestPrincipal(fmt.Sprintf("v%d", i)),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent Resolve() error = %v", err)
		}
	}

	link, _ := repo.GetByKey(context.Background(), created.ShortKey)
	if link.ClickCount != n {
		t.Errorf("final click count = %d, want exactly %d", link.ClickCount, n)
	}

	drainAudit(t, audit)
}

func TestLinkService_Delete(t *testing.T) {
	repo := newMockLinkRepository()
	svc, audit := newTestLinkService(repo)
	defer drainAudit(t, audit)

	owner := guestPrincipal("owner")
	created, err := svc.Create(context.Background(), owner, &model.CreateLinkRequest{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Non-owner is refused.
	if err := svc.Delete(context.Background(), guestPrincipal("stranger"), created.ShortKey); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("Delete() by stranger error = %v, want ErrUnauthorized", err)
	}

	if err := svc.Delete(context.Background(), owner, created.ShortKey); err != nil {
		t.Errorf("Delete() by owner error = %v", err)
	}

	// Second delete is a plain NotFound.
	if err := svc.Delete(context.Background(), owner, created.ShortKey); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestLinkService_GetInfo_OwnerOnly(t *testing.T) {
	repo := newMockLinkRepository()
	svc, audit := newTestLinkService(repo)
	defer drainAudit(t, audit)

	owner := guestPrincipal("owner")
	created, err := svc.Create(context.Background(), owner, &model.CreateLinkRequest{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.GetInfo(context.Background(), owner, created.ShortKey); err != nil {
		t.Errorf("GetInfo() by owner error = %v", err)
	}

	if _, err := svc.GetInfo(context.Background(), guestPrincipal("stranger"), created.ShortKey); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Errorf("GetInfo() by stranger error = %v, want ErrUnauthorized", err)
	}
}

func TestLinkService_ListOwned(t *testing.T) {
	repo := newMockLinkRepository()
	svc, audit := newTestLinkService(repo)
	defer drainAudit(t, audit)

	owner := guestPrincipal("owner")
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(context.Background(), owner, &model.CreateLinkRequest{URL: "https://example.com"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	links, err := svc.ListOwned(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListOwned() error = %v", err)
	}
	if len(links) != 3 {
		t.Errorf("ListOwned() returned %d links, want 3", len(links))
	}

	links, err = svc.ListOwned(context.Background(), guestPrincipal("other"))
	if err != nil {
		t.Fatalf("ListOwned() error = %v", err)
	}
	if len(links) != 0 {
		t.Errorf("ListOwned() for other principal returned %d links, want 0", len(links))
	}
}
