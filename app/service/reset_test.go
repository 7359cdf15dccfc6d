package service_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"

	"github.com/pinceletas/user-auth-service/app/entity"
	"github.com/pinceletas/user-auth-service/app/repository"
	"github.com/pinceletas/user-auth-service/app/service"
	"github.com/pinceletas/user-auth-service/config"
)

const (
	findUserByEmailQuery  = `(?s)SELECT id, email, password_hash, role, active, first_name, last_name, phone,\s+street, number, city, province, country, postal_code,\s+firebase_uid, provider, display_name, terms_accepted, terms_accepted_at,\s+last_activity_at, created_at, updated_at\s+FROM users WHERE email = \?`
	lockUserByEmailQuery  = `(?s)SELECT id FROM users WHERE email = \? FOR UPDATE`
	insertResetTokenQuery = `(?s)INSERT INTO reset_tokens \(code, email, expires_at, used, created_at\)\s+VALUES \(\?, \?, \?, \?, \?\)`
	findUnusedByCodeQuery = `(?s)SELECT id, code, email, expires_at, used, created_at\s+FROM reset_tokens WHERE code = \? AND used = 0`
	markUsedQuery         = `(?s)UPDATE reset_tokens SET used = 1 WHERE id = \? AND used = 0`
	deleteByEmailQuery    = `(?s)DELETE FROM reset_tokens WHERE email = \?`
	updateUserQuery       = `(?s)UPDATE users SET\s+email = \?,.*WHERE id = \?`
)

var userColumns = []string{
	"id",
	"email",
	"password_hash",
	"role",
	"active",
	"first_name",
	"last_name",
	"phone",
	"street",
	"number",
	"city",
	"province",
	"country",
	"postal_code",
	"firebase_uid",
	"provider",
	"display_name",
	"terms_accepted",
	"terms_accepted_at",
	"last_activity_at",
	"created_at",
	"updated_at",
}

var resetTokenColumns = []string{
	"id",
	"code",
	"email",
	"expires_at",
	"used",
	"created_at",
}

type fakeNotifier struct {
	email string
	code  string
	err   error
}

func (n *fakeNotifier) SendRecoveryCode(_ context.Context, email, code string) error {
	n.email = email
	n.code = code
	return n.err
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { _ = db.Close() }
}

func resetTestConfig() *config.Config {
	return &config.Config{
		Reset: config.ResetConfig{
			CodeTTL:         15 * time.Minute,
			CleanupInterval: time.Hour,
		},
	}
}

func newResetService(db *sql.DB, notifier service.Notifier) *service.PasswordResetService {
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewResetTokenRepository(db)
	return service.NewPasswordResetService(db, userRepo, tokenRepo, notifier, resetTestConfig())
}

func activeUserRow(email, passwordHash string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumns).AddRow(
		1, email, passwordHash, entity.RoleUser, true,
		"Ana", "Gomez", nil,
		nil, nil, nil, nil, nil, nil,
		nil, nil, nil,
		false, nil,
		now, now, now,
	)
}

func inactiveUserRow(email string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumns).AddRow(
		1, email, "hash", entity.RoleUser, false,
		"Ana", "Gomez", nil,
		nil, nil, nil, nil, nil, nil,
		nil, nil, nil,
		false, nil,
		now, now, now,
	)
}

func TestPasswordResetService_Initiate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	notifier := &fakeNotifier{}
	svc := newResetService(db, notifier)

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(activeUserRow("user@example.com", "hash"))

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(deleteByEmailQuery).
		WithArgs("user@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertResetTokenQuery).
		WithArgs(sqlmock.AnyArg(), "user@example.com", sqlmock.AnyArg(), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	if err := svc.Initiate(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	if notifier.email != "user@example.com" {
		t.Errorf("expected notifier to receive user@example.com, got %s", notifier.email)
	}
	if !regexp.MustCompile(`^[1-9]\d{5}$`).MatchString(notifier.code) {
		t.Errorf("expected six digit code without leading zero, got %q", notifier.code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasswordResetService_Initiate_UnknownEmail(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	notifier := &fakeNotifier{}
	svc := newResetService(db, notifier)

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	err := svc.Initiate(context.Background(), "ghost@example.com")
	if !errors.Is(err, service.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if notifier.code != "" {
		t.Fatal("notifier must not be called for unknown emails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasswordResetService_Initiate_InactiveAccount(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	notifier := &fakeNotifier{}
	svc := newResetService(db, notifier)

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(inactiveUserRow("user@example.com"))

	err := svc.Initiate(context.Background(), "user@example.com")
	if !errors.Is(err, service.ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
	if notifier.code != "" {
		t.Fatal("notifier must not be called for inactive accounts")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// A delivery failure surfaces to the caller but the issued token stays in
// the ledger: the user can retry, which replaces it.
func TestPasswordResetService_Initiate_DeliveryFailure(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	notifier := &fakeNotifier{err: errors.New("provider down")}
	svc := newResetService(db, notifier)

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(activeUserRow("user@example.com", "hash"))

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(deleteByEmailQuery).
		WithArgs("user@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insertResetTokenQuery).
		WithArgs(sqlmock.AnyArg(), "user@example.com", sqlmock.AnyArg(), false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	err := svc.Initiate(context.Background(), "user@example.com")
	if !errors.Is(err, service.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasswordResetService_Complete(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	svc := newResetService(db, &fakeNotifier{})

	oldHash, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(findUnusedByCodeQuery).
		WithArgs("123456").
		WillReturnRows(sqlmock.NewRows(resetTokenColumns).
			AddRow(11, "123456", "user@example.com", now.Add(10*time.Minute), false, now))
	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(activeUserRow("user@example.com", string(oldHash)))
	mock.ExpectExec(markUsedQuery).
		WithArgs(uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateUserQuery).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := svc.Complete(context.Background(), "123456", "new-password", "new-password"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Shape validation happens before any lookup: a mismatched confirmation must
// not touch the ledger.
func TestPasswordResetService_Complete_PasswordMismatch(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	svc := newResetService(db, &fakeNotifier{})

	err := svc.Complete(context.Background(), "123456", "new-password", "different")
	if !errors.Is(err, service.ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasswordResetService_Complete_CodeNotFound(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	svc := newResetService(db, &fakeNotifier{})

	mock.ExpectBegin()
	mock.ExpectQuery(findUnusedByCodeQuery).
		WithArgs("999999").
		WillReturnRows(sqlmock.NewRows(resetTokenColumns))
	mock.ExpectRollback()

	err := svc.Complete(context.Background(), "999999", "new-password", "new-password")
	if !errors.Is(err, service.ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
}

// An expired code fails without being marked used; the cleanup sweep owns
// its removal.
func TestPasswordResetService_Complete_Expired(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	svc := newResetService(db, &fakeNotifier{})
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(findUnusedByCodeQuery).
		WithArgs("123456").
		WillReturnRows(sqlmock.NewRows(resetTokenColumns).
			AddRow(11, "123456", "user@example.com", now.Add(-time.Minute), false, now.Add(-16*time.Minute)))
	mock.ExpectRollback()

	err := svc.Complete(context.Background(), "123456", "new-password", "new-password")
	if !errors.Is(err, service.ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Losing the conditional update race reads as code-not-found; the token and
// password are untouched.
func TestPasswordResetService_Complete_AlreadyConsumed(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	svc := newResetService(db, &fakeNotifier{})

	oldHash, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(findUnusedByCodeQuery).
		WithArgs("123456").
		WillReturnRows(sqlmock.NewRows(resetTokenColumns).
			AddRow(11, "123456", "user@example.com", now.Add(10*time.Minute), false, now))
	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(activeUserRow("user@example.com", string(oldHash)))
	mock.ExpectExec(markUsedQuery).
		WithArgs(uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = svc.Complete(context.Background(), "123456", "new-password", "new-password")
	if !errors.Is(err, service.ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPasswordResetService_Complete_SamePassword(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()

	svc := newResetService(db, &fakeNotifier{})

	sameHash, err := bcrypt.GenerateFromPassword([]byte("same-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(findUnusedByCodeQuery).
		WithArgs("123456").
		WillReturnRows(sqlmock.NewRows(resetTokenColumns).
			AddRow(11, "123456", "user@example.com", now.Add(10*time.Minute), false, now))
	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(activeUserRow("user@example.com", string(sameHash)))
	mock.ExpectRollback()

	err = svc.Complete(context.Background(), "123456", "same-password", "same-password")
	if !errors.Is(err, service.ErrSamePassword) {
		t.Fatalf("expected ErrSamePassword, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
