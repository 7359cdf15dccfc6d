package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/pinceletas/user-auth-service/app/entity"
)

type UpdateProfileInput struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

type UpdateAddressInput struct {
	Street     string
	Number     string
	City       string
	Province   string
	Country    string
	PostalCode string
}

type ChangePasswordInput struct {
	CurrentPassword    string
	NewPassword        string
	ConfirmNewPassword string
}

// UserService covers the profile surface around the credential core.
type UserService struct {
	userRepo userRepository
}

func NewUserService(userRepo userRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, email string, in *UpdateProfileInput) (*entity.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if in.Email != user.Email {
		exists, err := s.userRepo.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrEmailTaken
		}
		user.Email = in.Email
	}

	user.FirstName = in.FirstName
	user.LastName = in.LastName
	user.Phone = nullString(in.Phone)

	if err = s.userRepo.Update(ctx, user); err != nil {
		if isDuplicateKey(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateAddress(ctx context.Context, email string, in *UpdateAddressInput) (*entity.User, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	user.Street = nullString(in.Street)
	user.Number = nullString(in.Number)
	user.City = nullString(in.City)
	user.Province = nullString(in.Province)
	user.Country = nullString(in.Country)
	user.PostalCode = nullString(in.PostalCode)

	if err = s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, email string, in *ChangePasswordInput) error {
	if in.NewPassword != in.ConfirmNewPassword {
		return ErrPasswordMismatch
	}

	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if !user.HasPassword() {
		return ErrWrongPassword
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(in.CurrentPassword)) != nil {
		return ErrWrongPassword
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(in.NewPassword)) == nil {
		return ErrSamePassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user.PasswordHash = sql.NullString{String: string(hashed), Valid: true}
	return s.userRepo.Update(ctx, user)
}

// AcceptTerms marks the account as having accepted the terms of service.
// Accepting again is a no-op that keeps the original acceptance time.
func (s *UserService) AcceptTerms(ctx context.Context, email string) error {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.TermsAccepted {
		return nil
	}

	if err = s.userRepo.AcceptTerms(ctx, user.ID, time.Now()); err != nil {
		return err
	}

	logrus.WithField("email", email).Info("Terms accepted")
	return nil
}

func (s *UserService) HasAcceptedTerms(ctx context.Context, email string) (bool, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return user.TermsAccepted, nil
}

// Deactivate is the self-service one-way switch; reactivation is an
// administrative operation.
func (s *UserService) Deactivate(ctx context.Context, email string) error {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	user.Active = false
	if err = s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	logrus.WithField("email", email).Info("Account deactivated")
	return nil
}

// Delete physically removes the account. Route-level authorization
// restricts this to admins.
func (s *UserService) Delete(ctx context.Context, email string) error {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err = s.userRepo.Delete(ctx, user.ID); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   email,
	}).Warn("Account deleted")
	return nil
}
