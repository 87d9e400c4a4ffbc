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
)

type ShareService struct {
	shareRepo  repository.ShareRepository
	quota      *QuotaService
	audit      *AuditLogger
	baseURL    string
	keyLength  int
	maxRetries int
}

func NewShareService(shareRepo repository.ShareRepository, quota *QuotaService, audit *AuditLogger, baseURL string, keyLength, maxRetries int) *ShareService {
	if keyLength <= 0 {
		keyLength = utils.DefaultShortKeyLength
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &ShareService{
		shareRepo:  shareRepo,
		quota:      quota,
		audit:      audit,
		baseURL:    baseURL,
		keyLength:  keyLength,
		maxRetries: maxRetries,
	}
}

func (s *ShareService) Create(ctx context.Context, principal identity.Principal, req *model.CreateShareRequest) (*model.ShareResponse, error) {
	format := req.Format
	if format == "" {
		format = model.FormatPlain
	}

	if err := utils.ValidateShareContent(req.Content, format); err != nil {
		return nil, err
	}

	if req.CustomSlug != "" {
		if err := utils.ValidateSlug(req.CustomSlug); err != nil {
			return nil, err
		}
	}

	if req.ViewLimit != nil && *req.ViewLimit <= 0 {
		return nil, apperrors.NewValidationError("view_limit", "view limit must be positive")
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

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	var syntaxLanguage *string
	if req.SyntaxLanguage != "" {
		lang := utils.SanitizeInput(req.SyntaxLanguage)
		syntaxLanguage = &lang
	}

	owner := principal.Owner()
	share := &model.TextShare{
		Title:          utils.SanitizeInput(req.Title),
		Content:        req.Content,
		Format:         format,
		SyntaxLanguage: syntaxLanguage,
		PasswordHash:   passwordHash,
		IsPublic:       isPublic,
		OwnerID:        &owner,
		ViewLimit:      req.ViewLimit,
		ExpiresAt:      req.ExpiresAt,
		CreatedAt:      time.Now(),
	}

	if req.CustomSlug != "" {
		share.ShortKey = req.CustomSlug
		if err := s.shareRepo.Create(ctx, share); err != nil {
			return nil, err
		}
		return model.NewShareResponse(share, s.baseURL), nil
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		key, err := utils.GenerateShortKeyWithLength(s.keyLength)
		if err != nil {
			return nil, apperrors.NewBusinessError("KEY_GENERATION", "failed to generate short key", err)
		}

		share.ShortKey = key
		err = s.shareRepo.Create(ctx, share)
		if err == nil {
			return model.NewShareResponse(share, s.baseURL), nil
		}
		if !errors.Is(err, apperrors.ErrKeyExists) {
			return nil, err
		}
	}

	return nil, apperrors.ErrKeyGeneration
}

// Resolve returns the share content. Denials carry no payload: a private or
// password-protected share reveals nothing until the caller qualifies, and
// the view counter moves only on admission.
func (s *ShareService) Resolve(ctx context.Context, shortKey string, rc ResolveContext) (*model.ShareResponse, error) {
	if shortKey == "" {
		return nil, apperrors.NewValidationError("shortKey", "short key cannot be empty")
	}

	share, err := s.shareRepo.GetByKey(ctx, shortKey)
	if err != nil {
		return nil, err
	}

	// Policy runs before any password work. An expired, exhausted or private
	// share answers with its own denial even when a wrong password is
	// attached; the password is only checked once it is the sole blocker.
	requester := policy.Requester{Owner: rc.Principal.Owner()}
	now := time.Now()

	verdict := policy.Evaluate(policy.ShareSnapshot(share), requester, now)
	if verdict == policy.DenyPasswordRequired && rc.Password != "" {
		if !checkPassword(share.PasswordHash, rc.Password) {
			return nil, apperrors.ErrInvalidPassword
		}
		requester.PasswordOK = true
		verdict = policy.Evaluate(policy.ShareSnapshot(share), requester, now)
	}
	if verdict != policy.Allow {
		return nil, denialError(verdict)
	}

	// The increment is the unit of admission: the view-limit boundary is
	// decided inside this conditional update, not by the snapshot above.
	newCount, err := s.shareRepo.AdmitAndIncrement(ctx, shortKey, now)
	if err != nil {
		return nil, err
	}
	share.ViewCount = newCount

	s.audit.Record(&model.AccessLogEntry{
		ID:        uuid.NewString(),
		ShortKey:  shortKey,
		IPAddress: rc.IPAddress,
		UserAgent: rc.UserAgent,
		CreatedAt: now,
	})

	return model.NewShareResponse(share, s.baseURL), nil
}

func (s *ShareService) VerifyPassword(ctx context.Context, shortKey, password string) (bool, error) {
	share, err := s.shareRepo.GetByKey(ctx, shortKey)
	if err != nil {
		return false, err
	}

	if !share.HasPassword() {
		return true, nil
	}

	return checkPassword(share.PasswordHash, password), nil
}

func (s *ShareService) Delete(ctx context.Context, principal identity.Principal, shortKey string) error {
	if shortKey == "" {
		return apperrors.NewValidationError("shortKey", "short key cannot be empty")
	}

	return s.shareRepo.Delete(ctx, shortKey, principal.Owner())
}

func (s *ShareService) GetInfo(ctx context.Context, principal identity.Principal, shortKey string) (*model.ShareResponse, error) {
	share, err := s.shareRepo.GetByKey(ctx, shortKey)
	if err != nil {
		return nil, err
	}

	if share.OwnerID == nil || *share.OwnerID != principal.Owner() {
		return nil, apperrors.ErrUnauthorized
	}

	return model.NewShareResponse(share, s.baseURL), nil
}

func (s *ShareService) ListOwned(ctx context.Context, principal identity.Principal) ([]*model.ShareResponse, error) {
	shares, err := s.shareRepo.ListByOwner(ctx, principal.Owner())
	if err != nil {
		return nil, err
	}

	responses := make([]*model.ShareResponse, 0, len(shares))
	for _, share := range shares {
		responses = append(responses, model.NewShareResponse(share, s.baseURL))
	}
	return responses, nil
}

// SlugChecker answers custom slug availability across both resource kinds.
// The answer is advisory: two simultaneous claims of the same slug are
// settled by the store's uniqueness constraint at create.
type SlugChecker struct {
	links  repository.LinkRepository
	shares repository.ShareRepository
}

func NewSlugChecker(links repository.LinkRepository, shares repository.ShareRepository) *SlugChecker {
	return &SlugChecker{
		links:  links,
		shares: shares,
	}
}

func (c *SlugChecker) Check(ctx context.Context, slug string) (bool, error) {
	if err := utils.ValidateSlug(slug); err != nil {
		return false, err
	}

	taken, err := c.links.ExistsByKey(ctx, slug)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}

	taken, err = c.shares.ExistsByKey(ctx, slug)
	if err != nil {
		return false, err
	}

	return !taken, nil
}
