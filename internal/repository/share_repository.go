package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/dkrylov/shortshare/internal/errors"
	"github.com/dkrylov/shortshare/internal/model"
)

type PostgresShareRepository struct {
	db *sql.DB
}

func NewPostgresShareRepository(db *sql.DB) ShareRepository {
	return &PostgresShareRepository{
		db: db,
	}
}

func (r *PostgresShareRepository) Create(ctx context.Context, share *model.TextShare) error {
	query := `
	INSERT INTO text_shares (short_key, title, content, format, syntax_language, password_hash, is_public, owner_id, view_limit, expires_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (short_key) DO NOTHING
	RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		share.ShortKey,
		share.Title,
		share.Content,
		share.Format,
		share.SyntaxLanguage,
		share.PasswordHash,
		share.IsPublic,
		share.OwnerID,
		share.ViewLimit,
		share.ExpiresAt,
		share.CreatedAt,
	).Scan(&share.ID)

	if err == sql.ErrNoRows {
		return apperrors.ErrKeyExists
	}

	if err != nil {
		return apperrors.NewStoreError("create share", err)
	}

	return nil
}

func (r *PostgresShareRepository) GetByKey(ctx context.Context, shortKey string) (*model.TextShare, error) {
	query := `
	SELECT id, short_key, title, content, format, syntax_language, password_hash, is_public, owner_id, view_count, view_limit, expires_at, created_at
	FROM text_shares
	WHERE short_key = $1
	`

	share := &model.TextShare{}
	err := r.db.QueryRowContext(ctx, query, shortKey).Scan(
		&share.ID,
		&share.ShortKey,
		&share.Title,
		&share.Content,
		&share.Format,
		&share.SyntaxLanguage,
		&share.PasswordHash,
		&share.IsPublic,
		&share.OwnerID,
		&share.ViewCount,
		&share.ViewLimit,
		&share.ExpiresAt,
		&share.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("share '%s': %w", shortKey, apperrors.ErrNotFound)
	}

	if err != nil {
		return nil, apperrors.NewStoreError("get share", err)
	}

	return share, nil
}

func (r *PostgresShareRepository) ExistsByKey(ctx context.Context, shortKey string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM text_shares WHERE short_key = $1)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, shortKey).Scan(&exists)
	if err != nil {
		return false, apperrors.NewStoreError("check share existence", err)
	}

	return exists, nil
}

// AdmitAndIncrement enforces expiry and the view limit inside a single
// conditional UPDATE. Two concurrent resolvers at view_count == view_limit-1
// cannot both pass: the row lock serializes them and the second sees the
// incremented count fail the predicate.
func (r *PostgresShareRepository) AdmitAndIncrement(ctx context.Context, shortKey string, now time.Time) (int64, error) {
	query := `
	UPDATE text_shares
	SET view_count = view_count + 1
	WHERE short_key = $1
	  AND (expires_at IS NULL OR expires_at > $2)
	  AND (view_limit IS NULL OR view_count < view_limit)
	RETURNING view_count
	`

	var newCount int64
	err := r.db.QueryRowContext(ctx, query, shortKey, now).Scan(&newCount)
	if err == nil {
		return newCount, nil
	}

	if err != sql.ErrNoRows {
		return 0, apperrors.NewStoreError("admit share", err)
	}

	// The predicate refused the update. Re-read to tell absent, expired
	// and over-limit apart; expiry is reported first, matching the policy
	// evaluation order.
	var expiresAt *time.Time
	var viewCount int64
	var viewLimit *int64
	err = r.db.QueryRowContext(
		ctx,
		`SELECT expires_at, view_count, view_limit FROM text_shares WHERE short_key = $1`,
		shortKey,
	).Scan(&expiresAt, &viewCount, &viewLimit)

	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("share '%s': %w", shortKey, apperrors.ErrNotFound)
	}
	if err != nil {
		return 0, apperrors.NewStoreError("classify share denial", err)
	}

	if expiresAt != nil && now.After(*expiresAt) {
		return 0, apperrors.ErrExpired
	}
	return 0, apperrors.ErrLimitReached
}

func (r *PostgresShareRepository) AppendLog(ctx context.Context, entry *model.AccessLogEntry) error {
	query := `
	INSERT INTO share_view_logs (id, short_key, ip_address, user_agent, created_at)
	VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.ShortKey,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return apperrors.NewStoreError("append view log", err)
	}

	return nil
}

func (r *PostgresShareRepository) Delete(ctx context.Context, shortKey, requester string) error {
	query := `DELETE FROM text_shares WHERE short_key = $1 AND owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, shortKey, requester)
	if err != nil {
		return apperrors.NewStoreError("delete share", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewStoreError("delete share", err)
	}
	if affected > 0 {
		return nil
	}

	exists, err := r.ExistsByKey(ctx, shortKey)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.ErrUnauthorized
	}
	return fmt.Errorf("share '%s': %w", shortKey, apperrors.ErrNotFound)
}

func (r *PostgresShareRepository) ListByOwner(ctx context.Context, owner string) ([]*model.TextShare, error) {
	query := `
	SELECT id, short_key, title, content, format, syntax_language, password_hash, is_public, owner_id, view_count, view_limit, expires_at, created_at
	FROM text_shares
	WHERE owner_id = $1
	ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, apperrors.NewStoreError("list shares by owner", err)
	}
	defer rows.Close()

	var shares []*model.TextShare
	for rows.Next() {
		share := &model.TextShare{}
		if err := rows.Scan(
			&share.ID,
			&share.ShortKey,
			&share.Title,
			&share.Content,
			&share.Format,
			&share.SyntaxLanguage,
			&share.PasswordHash,
			&share.IsPublic,
			&share.OwnerID,
			&share.ViewCount,
			&share.ViewLimit,
			&share.ExpiresAt,
			&share.CreatedAt,
		); err != nil {
			return nil, apperrors.NewStoreError("scan share row", err)
		}
		shares = append(shares, share)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list shares by owner", err)
	}

	return shares, nil
}

func (r *PostgresShareRepository) CountByOwner(ctx context.Context, owner string) (int64, error) {
	query := `SELECT COUNT(*) FROM text_shares WHERE owner_id = $1`

	var count int64
	err := r.db.QueryRowContext(ctx, query, owner).Scan(&count)
	if err != nil {
		return 0, apperrors.NewStoreError("count shares by owner", err)
	}

	return count, nil
}
