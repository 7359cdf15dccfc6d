package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pinceletas/user-auth-service/app/entity"
)

type ResetTokenRepository struct {
	db DBTX
}

func NewResetTokenRepository(db DBTX) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

func (r *ResetTokenRepository) Create(ctx context.Context, token *entity.ResetToken) error {
	query := `
		INSERT INTO reset_tokens (code, email, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		token.Code,
		token.Email,
		token.ExpiresAt,
		token.Used,
		token.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	token.ID = uint64(id)
	return nil
}

// FindUnusedByCode returns nil for both never-issued and already-used codes;
// callers must not distinguish the two.
func (r *ResetTokenRepository) FindUnusedByCode(ctx context.Context, code string) (*entity.ResetToken, error) {
	query := `
		SELECT id, code, email, expires_at, used, created_at
		FROM reset_tokens WHERE code = ? AND used = 0
	`
	token := &entity.ResetToken{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&token.ID,
		&token.Code,
		&token.Email,
		&token.ExpiresAt,
		&token.Used,
		&token.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// MarkUsed flips used exactly once. A zero row count means another caller
// already consumed the code; the conditional update is what makes
// concurrent consumption first-writer-wins.
func (r *ResetTokenRepository) MarkUsed(ctx context.Context, id uint64) (int64, error) {
	query := `UPDATE reset_tokens SET used = 1 WHERE id = ? AND used = 0`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteByEmail invalidates every outstanding code for the email.
func (r *ResetTokenRepository) DeleteByEmail(ctx context.Context, email string) error {
	query := `DELETE FROM reset_tokens WHERE email = ?`
	_, err := r.db.ExecContext(ctx, query, email)
	return err
}

// DeleteExpiredBefore purges tokens past expiry regardless of used.
// Idempotent; safe to run concurrently.
func (r *ResetTokenRepository) DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM reset_tokens WHERE expires_at < ?`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
