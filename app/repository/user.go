package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pinceletas/user-auth-service/app/entity"
)

const userColumns = `id, email, password_hash, role, active, first_name, last_name, phone,
	       street, number, city, province, country, postal_code,
	       firebase_uid, provider, display_name, terms_accepted, terms_accepted_at,
	       last_activity_at, created_at, updated_at`

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (email, password_hash, role, active, first_name, last_name, phone,
			street, number, city, province, country, postal_code,
			firebase_uid, provider, display_name, terms_accepted, terms_accepted_at,
			last_activity_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Active,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Street,
		user.Number,
		user.City,
		user.Province,
		user.Country,
		user.PostalCode,
		user.FirebaseUID,
		user.Provider,
		user.DisplayName,
		user.TermsAccepted,
		user.TermsAcceptedAt,
		user.LastActivityAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = uint64(id)
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE email = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) FindByFirebaseUID(ctx context.Context, uid string) (*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users WHERE firebase_uid = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, uid))
}

// LockByEmail takes a row lock on the account for the duration of the
// enclosing transaction. Used to serialize per-email reset-code issuance.
func (r *UserRepository) LockByEmail(ctx context.Context, email string) (uint64, error) {
	query := `SELECT id FROM users WHERE email = ? FOR UPDATE`
	var id uint64
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT COUNT(1) FROM users WHERE email = ?`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	query := `
		UPDATE users SET
			email = ?,
			password_hash = ?,
			role = ?,
			active = ?,
			first_name = ?,
			last_name = ?,
			phone = ?,
			street = ?,
			number = ?,
			city = ?,
			province = ?,
			country = ?,
			postal_code = ?,
			firebase_uid = ?,
			provider = ?,
			display_name = ?,
			terms_accepted = ?,
			terms_accepted_at = ?,
			updated_at = ?
		WHERE id = ?
	`
	user.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Active,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.Street,
		user.Number,
		user.City,
		user.Province,
		user.Country,
		user.PostalCode,
		user.FirebaseUID,
		user.Provider,
		user.DisplayName,
		user.TermsAccepted,
		user.TermsAcceptedAt,
		user.UpdatedAt,
		user.ID,
	)
	return err
}

// AcceptTerms records terms acceptance once; re-accepting keeps the
// original timestamp.
func (r *UserRepository) AcceptTerms(ctx context.Context, userID uint64, at time.Time) error {
	query := `UPDATE users SET terms_accepted = 1, terms_accepted_at = ? WHERE id = ? AND terms_accepted = 0`
	_, err := r.db.ExecContext(ctx, query, at, userID)
	return err
}

// CountByActive reports how many accounts are in the given activation state.
func (r *UserRepository) CountByActive(ctx context.Context, active bool) (int64, error) {
	query := `SELECT COUNT(1) FROM users WHERE active = ?`
	var count int64
	if err := r.db.QueryRowContext(ctx, query, active).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *UserRepository) UpdateLastActivity(ctx context.Context, userID uint64, at time.Time) error {
	query := `UPDATE users SET last_activity_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, at, userID)
	return err
}

// DeactivateInactiveBefore flips active accounts whose last activity is
// older than cutoff in one bulk statement and returns the affected count.
func (r *UserRepository) DeactivateInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `UPDATE users SET active = 0 WHERE active = 1 AND last_activity_at < ?`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *UserRepository) Delete(ctx context.Context, id uint64) error {
	query := `DELETE FROM users WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *UserRepository) scanOne(row *sql.Row) (*entity.User, error) {
	user := &entity.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Active,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.Street,
		&user.Number,
		&user.City,
		&user.Province,
		&user.Country,
		&user.PostalCode,
		&user.FirebaseUID,
		&user.Provider,
		&user.DisplayName,
		&user.TermsAccepted,
		&user.TermsAcceptedAt,
		&user.LastActivityAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
