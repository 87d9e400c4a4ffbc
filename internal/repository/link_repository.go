package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/dkrylov/shortshare/internal/errors"
	"github.com/dkrylov/shortshare/internal/model"
)

type PostgresLinkRepository struct {
	db *sql.DB
}

func NewPostgresLinkRepository(db *sql.DB) LinkRepository {
	return &PostgresLinkRepository{
		db: db,
	}
}

func (r *PostgresLinkRepository) Create(ctx context.Context, link *model.ShortLink) error {
	query := `
	INSERT INTO short_links (short_key, original_url, owner_id, password_hash, custom_slug, expires_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (short_key) DO NOTHING
	RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		link.ShortKey,
		link.OriginalURL,
		link.OwnerID,
		link.PasswordHash,
		link.CustomSlug,
		link.ExpiresAt,
		link.CreatedAt,
	).Scan(&link.ID)

	if err == sql.ErrNoRows {
		return apperrors.ErrKeyExists
	}

	if err != nil {
		return apperrors.NewStoreError("create link", err)
	}

	return nil
}

func (r *PostgresLinkRepository) GetByKey(ctx context.Context, shortKey string) (*model.ShortLink, error) {
	query := `
	SELECT id, short_key, original_url, owner_id, password_hash, custom_slug, click_count, expires_at, created_at
	FROM short_links
	WHERE short_key = $1
	`

	link := &model.ShortLink{}
	err := r.db.QueryRowContext(ctx, query, shortKey).Scan(
		&link.ID,
		&link.ShortKey,
		&link.OriginalURL,
		&link.OwnerID,
		&link.PasswordHash,
		&link.CustomSlug,
		&link.ClickCount,
		&link.ExpiresAt,
		&link.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("link '%s': %w", shortKey, apperrors.ErrNotFound)
	}

	if err != nil {
		return nil, apperrors.NewStoreError("get link", err)
	}

	return link, nil
}

func (r *PostgresLinkRepository) ExistsByKey(ctx context.Context, shortKey string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM short_links WHERE short_key = $1)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, shortKey).Scan(&exists)
	if err != nil {
		return false, apperrors.NewStoreError("check link existence", err)
	}

	return exists, nil
}

// AdmitAndIncrement admits a resolution and bumps the click counter in one
// conditional UPDATE. The expiry predicate is checked inside the statement,
// so concurrent resolvers at the boundary are serialized by the row lock.
func (r *PostgresLinkRepository) AdmitAndIncrement(ctx context.Context, shortKey string, now time.Time) (int64, error) {
	query := `
	UPDATE short_links
	SET click_count = click_count + 1
	WHERE short_key = $1
	  AND (expires_at IS NULL OR expires_at > $2)
	RETURNING click_count
	`

	var newCount int64
	err := r.db.QueryRowContext(ctx, query, shortKey, now).Scan(&newCount)
	if err == nil {
		return newCount, nil
	}

	if err != sql.ErrNoRows {
		return 0, apperrors.NewStoreError("admit link", err)
	}

	// Predicate refused the update: classify whether the row is missing
	// or merely expired.
	var expiresAt *time.Time
	err = r.db.QueryRowContext(ctx, `SELECT expires_at FROM short_links WHERE short_key = $1`, shortKey).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("link '%s': %w", shortKey, apperrors.ErrNotFound)
	}
	if err != nil {
		return 0, apperrors.NewStoreError("classify link denial", err)
	}

	return 0, apperrors.ErrExpired
}

func (r *PostgresLinkRepository) AppendLog(ctx context.Context, entry *model.AccessLogEntry) error {
	query := `
	INSERT INTO click_logs (id, short_key, ip_address, user_agent, created_at)
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
		return apperrors.NewStoreError("append click log", err)
	}

	return nil
}

// Delete removes a link iff the requester owns it. The owner check happens
// in the same statement as the delete, so a racing ownership check cannot
// slip between check and mutation.
func (r *PostgresLinkRepository) Delete(ctx context.Context, shortKey, requester string) error {
	query := `DELETE FROM short_links WHERE short_key = $1 AND owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, shortKey, requester)
	if err != nil {
		return apperrors.NewStoreError("delete link", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewStoreError("delete link", err)
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
	return fmt.Errorf("link '%s': %w", shortKey, apperrors.ErrNotFound)
}

func (r *PostgresLinkRepository) ListByOwner(ctx context.Context, owner string) ([]*model.ShortLink, error) {
	query := `
	SELECT id, short_key, original_url, owner_id, password_hash, custom_slug, click_count, expires_at, created_at
	FROM short_links
	WHERE owner_id = $1
	ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, apperrors.NewStoreError("list links by owner", err)
	}
	defer rows.Close()

	var links []*model.ShortLink
	for rows.Next() {
		link := &model.ShortLink{}
		if err := rows.Scan(
			&link.ID,
			&link.ShortKey,
			&link.OriginalURL,
			&link.OwnerID,
			&link.PasswordHash,
			&link.CustomSlug,
			&link.ClickCount,
			&link.ExpiresAt,
			&link.CreatedAt,
		); err != nil {
			return nil, apperrors.NewStoreError("scan link row", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list links by owner", err)
	}

	return links, nil
}

func (r *PostgresLinkRepository) CountByOwner(ctx context.Context, owner string) (int64, error) {
	query := `SELECT COUNT(*) FROM short_links WHERE owner_id = $1`

	var count int64
	err := r.db.QueryRowContext(ctx, query, owner).Scan(&count)
	if err != nil {
		return 0, apperrors.NewStoreError("count links by owner", err)
	}

	return count, nil
}
