package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/pinceletas/user-auth-service/app/entity"
	"github.com/pinceletas/user-auth-service/app/repository"
	"github.com/pinceletas/user-auth-service/config"
)

// codeRetries bounds regeneration attempts when a fresh code collides with
// an outstanding one (unique index on reset_tokens.code).
const codeRetries = 3

type resetUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
}

type resetTokenPurger interface {
	DeleteExpiredBefore(ctx context.Context, now time.Time) (int64, error)
}

// Notifier delivers recovery codes. Failures surface synchronously to the
// caller; there is no internal retry.
type Notifier interface {
	SendRecoveryCode(ctx context.Context, email, code string) error
}

// PasswordResetService owns the reset-token ledger and the recovery flow:
// single-use six-digit codes, bounded lifetime, invalidation of prior codes
// on re-request.
type PasswordResetService struct {
	db        *sql.DB
	userRepo  resetUserRepository
	tokenRepo resetTokenPurger
	notifier  Notifier
	cfg       *config.Config
}

func NewPasswordResetService(
	db *sql.DB,
	userRepo resetUserRepository,
	tokenRepo resetTokenPurger,
	notifier Notifier,
	cfg *config.Config,
) *PasswordResetService {
	return &PasswordResetService{
		db:        db,
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// Initiate starts a recovery attempt: validates the account, replaces any
// outstanding codes for the email with a fresh one, and hands the code to
// the notifier. A notifier failure does not roll the token back; the user
// can re-request, which invalidates it.
func (s *PasswordResetService) Initiate(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if !user.Active {
		return ErrAccountInactive
	}

	code, err := s.issueCode(ctx, email)
	if err != nil {
		return err
	}

	if err = s.notifier.SendRecoveryCode(ctx, email, code); err != nil {
		logrus.WithError(err).WithField("email", email).Error("Recovery code delivery failed")
		return fmt.Errorf("%w: %s", ErrDeliveryFailed, err.Error())
	}

	return nil
}

// issueCode replaces the email's outstanding tokens inside one transaction.
// The user row is locked first so concurrent requests for the same email
// serialize and can never leave two live codes behind.
func (s *PasswordResetService) issueCode(ctx context.Context, email string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	txUsers := repository.NewUserRepository(tx)
	if _, err = txUsers.LockByEmail(ctx, email); err != nil {
		return "", err
	}

	txTokens := repository.NewResetTokenRepository(tx)
	if err = txTokens.DeleteByEmail(ctx, email); err != nil {
		return "", err
	}

	var code string
	now := time.Now()
	for attempt := 0; ; attempt++ {
		code, err = generateResetCode()
		if err != nil {
			return "", err
		}

		err = txTokens.Create(ctx, &entity.ResetToken{
			Code:      code,
			Email:     email,
			ExpiresAt: now.Add(s.cfg.Reset.CodeTTL),
			Used:      false,
			CreatedAt: now,
		})
		if err == nil {
			break
		}
		if !isDuplicateKey(err) || attempt >= codeRetries {
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}

	return code, nil
}

// Complete consumes a recovery code and replaces the account password.
// Ordering is fixed: shape validation, then consumption, then account
// checks, then the password write. Consumption and the password write share
// one transaction, so a code is never burned without the password changing.
func (s *PasswordResetService) Complete(ctx context.Context, code, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txTokens := repository.NewResetTokenRepository(tx)
	token, err := txTokens.FindUnusedByCode(ctx, code)
	if err != nil {
		return err
	}
	if token == nil {
		return ErrCodeNotFound
	}

	if token.ExpiresAt.Before(time.Now()) {
		// Leave the token unused; the cleanup sweep will remove it.
		return ErrCodeExpired
	}

	txUsers := repository.NewUserRepository(tx)
	user, err := txUsers.FindByEmail(ctx, token.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if user.HasPassword() {
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(newPassword)) == nil {
			return ErrSamePassword
		}
	}

	rows, err := txTokens.MarkUsed(ctx, token.ID)
	if err != nil {
		return err
	}
	if rows == 0 {
		// Another request consumed the code between our read and the
		// conditional update; first writer wins.
		return ErrCodeNotFound
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.PasswordHash = sql.NullString{String: string(hashed), Valid: true}
	if err = txUsers.Update(ctx, user); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	logrus.WithField("email", user.Email).Info("Password reset completed")
	return nil
}

// PurgeExpired deletes every token past expiry, used or not.
func (s *PasswordResetService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tokenRepo.DeleteExpiredBefore(ctx, time.Now())
}

// generateResetCode draws a uniform six-digit code from crypto/rand.
func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
