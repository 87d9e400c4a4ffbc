package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/dkrylov/shortshare/internal/errors"
	"github.com/dkrylov/shortshare/internal/identity"
	"github.com/dkrylov/shortshare/internal/model"
	"github.com/dkrylov/shortshare/internal/policy"
	"github.com/dkrylov/shortshare/internal/repository"
	"github.com/dkrylov/shortshare/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ResolveContext carries the request-side facts a resolution needs: who is
// asking, an optionally presented password, and the log fields.
type ResolveContext struct {
	Principal identity.Principal
	Password  string
	IPAddress string
	UserAgent string
}

type LinkService struct {
	linkRepo   repository.LinkRepository
	quota      *QuotaService
	audit      *AuditLogger
	baseURL    string
	keyLength  int
	maxRetries int
}

func NewLinkService(linkRepo repository.LinkRepository, quota *QuotaService, audit *AuditLogger, baseURL string, keyLength, maxRetries int) *LinkService {
	if keyLength <= 0 {
		keyLength = utils.DefaultShortKeyLength
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &LinkService{
		linkRepo:   linkRepo,
		quota:      quota,
		audit:      audit,
		baseURL:    baseURL,
		keyLength:  keyLength,
		maxRetries: maxRetries,
	}
}

func (s *LinkService) Create(ctx context.Context, principal identity.Principal, req *model.CreateLinkRequest) (*model.LinkResponse, error) {
	sanitizedURL := utils.SanitizeInput(req.URL)
	if err := utils.ValidateURL(sanitizedURL); err != nil {
		return nil, err
	}

	if req.CustomSlug != "" {
		if err := utils.ValidateSlug(req.CustomSlug); err != nil {
			return nil, err
		}
	}

	decision, err := s.quota.CanCreate(ctx, principal)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %d of %d used", apperrors.ErrQuotaExceeded, decision.Usage, decision.Limit)
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	owner := principal.Owner()
	link := &model.ShortLink{
		OriginalURL:  sanitizedURL,
		OwnerID:      &owner,
		PasswordHash: passwordHash,
		ExpiresAt:    req.ExpiresAt,
		CreatedAt:    time.Now(),
	}

	if req.CustomSlug != "" {
		// Custom slug: a single attempt, the uniqueness constraint decides
		// between simultaneous claims.
		link.ShortKey = req.CustomSlug
		link.CustomSlug = true
		if err := s.linkRepo.Create(ctx, link); err != nil {
			return nil, err
		}
		return model.NewLinkResponse(link, s.baseURL), nil
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		key, err := utils.GenerateShortKeyWithLength(s.keyLength)
		if err != nil {
			return nil, apperrors.NewBusinessError("KEY_GENERATION", "failed to generate short key", err)
		}

		link.ShortKey = key
		err = s.linkRepo.Create(ctx, link)
		if err == nil {
			return model.NewLinkResponse(link, s.baseURL), nil
		}
		if !errors.Is(err, apperrors.ErrKeyExists) {
			return nil, err
		}
	}

	return nil, apperrors.ErrKeyGeneration
}

// Resolve returns the redirect target for a short key. On admission the
// click counter has already been incremented by the store's conditional
// update; the log entry is queued best-effort.
func (s *LinkService) Resolve(ctx context.Context, shortKey string, rc ResolveContext) (*model.LinkResponse, error) {
	if shortKey == "" {
		return nil, apperrors.NewValidationError("shortKey", "short key cannot be empty")
	}

	link, err := s.linkRepo.GetByKey(ctx, shortKey)
	if err != nil {
		return nil, err
	}

	// Policy runs before any password work. An expired link answers
	// ErrExpired even when a wrong password is attached; the password is
	// only checked once it is the sole blocker.
	requester := policy.Requester{Owner: rc.Principal.Owner()}
	now := time.Now()

	verdict := policy.Evaluate(policy.LinkSnapshot(link), requester, now)
	if verdict == policy.DenyPasswordRequired && rc.Password != "" {
		if !checkPassword(link.PasswordHash, rc.Password) {
			return nil, apperrors.ErrInvalidPassword
		}
		requester.PasswordOK = true
		verdict = policy.Evaluate(policy.LinkSnapshot(link), requester, now)
	}
	if verdict != policy.Allow {
		return nil, denialError(verdict)
	}

	// The snapshot may be stale; the conditional update re-checks expiry
	// and is the actual admission decision.
	newCount, err := s.linkRepo.AdmitAndIncrement(ctx, shortKey, now)
	if err != nil {
		return nil, err
	}
	link.ClickCount = newCount

	s.audit.Record(&model.AccessLogEntry{
		ID:        uuid.NewString(),
		ShortKey:  shortKey,
		IPAddress: rc.IPAddress,
		UserAgent: rc.UserAgent,
		CreatedAt: now,
	})

	return model.NewLinkResponse(link, s.baseURL), nil
}

// VerifyPassword checks a presented password against the stored hash.
// No counter is touched.
func (s *LinkService) VerifyPassword(ctx context.Context, shortKey, password string) (bool, error) {
	link, err := s.linkRepo.GetByKey(ctx, shortKey)
	if err != nil {
		return false, err
	}

	if !link.HasPassword() {
		return true, nil
	}

	return checkPassword(link.PasswordHash, password), nil
}

func (s *LinkService) Delete(ctx context.Context, principal identity.Principal, shortKey string) error {
	if shortKey == "" {
		return apperrors.NewValidationError("shortKey", "short key cannot be empty")
	}

	return s.linkRepo.Delete(ctx, shortKey, principal.Owner())
}

// GetInfo returns link metadata (click count, expiry) to its owner.
func (s *LinkService) GetInfo(ctx context.Context, principal identity.Principal, shortKey string) (*model.LinkResponse, error) {
	link, err := s.linkRepo.GetByKey(ctx, shortKey)
	if err != nil {
		return nil, err
	}

	if link.OwnerID == nil || *link.OwnerID != principal.Owner() {
		return nil, apperrors.ErrUnauthorized
	}

	return model.NewLinkResponse(link, s.baseURL), nil
}

func (s *LinkService) ListOwned(ctx context.Context, principal identity.Principal) ([]*model.LinkResponse, error) {
	links, err := s.linkRepo.ListByOwner(ctx, principal.Owner())
	if err != nil {
		return nil, err
	}

	responses := make([]*model.LinkResponse, 0, len(links))
	for _, link := range links {
		responses = append(responses, model.NewLinkResponse(link, s.baseURL))
	}
	return responses, nil
}

func denialError(v policy.Verdict) error {
	switch v {
	case policy.DenyNotFound:
		return apperrors.ErrNotFound
	case policy.DenyExpired:
		return apperrors.ErrExpired
	case policy.DenyLimitReached:
		return apperrors.ErrLimitReached
	case policy.DenyUnauthorized:
		return apperrors.ErrUnauthorized
	case policy.DenyPasswordRequired:
		return apperrors.ErrPasswordRequired
	default:
		return apperrors.NewBusinessError("POLICY", fmt.Sprintf("unexpected verdict %v", v), nil)
	}
}

func hashPassword(password string) (*string, error) {
	if password == "" {
		return nil, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.NewBusinessError("PASSWORD_HASH", "failed to hash password", err)
	}

	s := string(hash)
	return &s, nil
}

// checkPassword is constant-time with respect to the stored hash.
func checkPassword(hash *string, password string) bool {
	if hash == nil || *hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)) == nil
}
