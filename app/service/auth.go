package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/pinceletas/user-auth-service/app/entity"
)

type userRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByID(ctx context.Context, id uint64) (*entity.User, error)
	FindByFirebaseUID(ctx context.Context, uid string) (*entity.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *entity.User) error
	UpdateLastActivity(ctx context.Context, userID uint64, at time.Time) error
	AcceptTerms(ctx context.Context, userID uint64, at time.Time) error
	Delete(ctx context.Context, id uint64) error
}

type tokenIssuer interface {
	Issue(email, role string) (string, error)
}

// FederatedIdentity is the verified result of a third-party ID token.
type FederatedIdentity struct {
	UID         string
	Email       string
	DisplayName string
	Provider    string
}

// FederatedVerifier validates externally issued identity tokens.
type FederatedVerifier interface {
	Verify(ctx context.Context, idToken string) (*FederatedIdentity, error)
}

type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	Phone           string
}

type FirebaseRegisterInput struct {
	IDToken   string
	FirstName string
	LastName  string
	Phone     string
}

type AsyncRunner func(task func())

type AuthServiceOption func(*AuthService)

// AuthService handles registration and login, both credential and
// federated. All successful operations return a single bearer token.
type AuthService struct {
	userRepo    userRepository
	tokens      tokenIssuer
	verifier    FederatedVerifier
	publisher   NotificationPublisher
	asyncRunner AsyncRunner
}

func NewAuthService(
	userRepo userRepository,
	tokens tokenIssuer,
	verifier FederatedVerifier,
	opts ...AuthServiceOption,
) *AuthService {
	svc := &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		verifier: verifier,
		asyncRunner: func(task func()) {
			go task()
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithAsyncRunner(runner AsyncRunner) AuthServiceOption {
	return func(s *AuthService) {
		if runner != nil {
			s.asyncRunner = runner
		}
	}
}

// WithNotificationPublisher enables login/registration notification events.
// Without it no events are emitted.
func WithNotificationPublisher(publisher NotificationPublisher) AuthServiceOption {
	return func(s *AuthService) {
		s.publisher = publisher
	}
}

func (s *AuthService) Register(ctx context.Context, in *RegisterInput) (string, error) {
	if in.Password != in.ConfirmPassword {
		return "", ErrPasswordMismatch
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	now := time.Now()
	user := &entity.User{
		Email:          in.Email,
		PasswordHash:   sql.NullString{String: string(hashed), Valid: true},
		Role:           entity.RoleUser,
		Active:         true,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Phone:          nullString(in.Phone),
		LastActivityAt: sql.NullTime{Time: now, Valid: true},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err = s.userRepo.Create(ctx, user); err != nil {
		// Backstop for a concurrent registration between the existence
		// check and the insert; the unique email index wins.
		if isDuplicateKey(err) {
			return "", ErrEmailTaken
		}
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User registered")

	s.notifyRegistration(user)

	return s.tokens.Issue(user.Email, user.Role)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}
	if !user.Active {
		return "", ErrAccountInactive
	}
	// Federation-only accounts have no hash and never pass credential login.
	if !user.HasPassword() {
		return "", ErrInvalidCredentials
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	s.touchActivity(user.ID)
	s.notifyLogin(user, EventLogin)

	return s.tokens.Issue(user.Email, user.Role)
}

// FirebaseLogin verifies the provider token and signs the matching account
// in, creating it on first federated login (upsert-on-first-login).
func (s *AuthService) FirebaseLogin(ctx context.Context, idToken string) (string, error) {
	identity, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return "", ErrFederatedToken
	}

	user, err := s.userRepo.FindByFirebaseUID(ctx, identity.UID)
	if err != nil {
		return "", err
	}
	if user == nil {
		// A credential account with the same email gets linked rather
		// than duplicated. Deactivated accounts are rejected before the
		// link so a denied login never mutates the row.
		user, err = s.userRepo.FindByEmail(ctx, identity.Email)
		if err != nil {
			return "", err
		}
		if user != nil {
			if !user.Active {
				return "", ErrAccountInactive
			}
			user.FirebaseUID = nullString(identity.UID)
			user.Provider = nullString(identity.Provider)
			user.DisplayName = nullString(identity.DisplayName)
			if err = s.userRepo.Update(ctx, user); err != nil {
				return "", err
			}
		}
	}

	if user == nil {
		user, err = s.createFederatedUser(ctx, identity, "", "", "")
		if err != nil {
			return "", err
		}
	}

	if !user.Active {
		return "", ErrAccountInactive
	}

	s.touchActivity(user.ID)
	s.notifyLogin(user, EventFirebaseLogin)

	return s.tokens.Issue(user.Email, user.Role)
}

func (s *AuthService) FirebaseRegister(ctx context.Context, in *FirebaseRegisterInput) (string, error) {
	identity, err := s.verifier.Verify(ctx, in.IDToken)
	if err != nil {
		return "", ErrFederatedToken
	}

	existing, err := s.userRepo.FindByFirebaseUID(ctx, identity.UID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		exists, err := s.userRepo.ExistsByEmail(ctx, identity.Email)
		if err != nil {
			return "", err
		}
		if exists {
			return "", ErrEmailTaken
		}
	}
	if existing != nil {
		return "", ErrEmailTaken
	}

	user, err := s.createFederatedUser(ctx, identity, in.FirstName, in.LastName, in.Phone)
	if err != nil {
		return "", err
	}

	return s.tokens.Issue(user.Email, user.Role)
}

func (s *AuthService) createFederatedUser(ctx context.Context, identity *FederatedIdentity, firstName, lastName, phone string) (*entity.User, error) {
	now := time.Now()
	user := &entity.User{
		Email:          identity.Email,
		Role:           entity.RoleUser,
		Active:         true,
		FirstName:      firstName,
		LastName:       lastName,
		Phone:          nullString(phone),
		FirebaseUID:    nullString(identity.UID),
		Provider:       nullString(identity.Provider),
		DisplayName:    nullString(identity.DisplayName),
		LastActivityAt: sql.NullTime{Time: now, Valid: true},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if isDuplicateKey(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"email":    user.Email,
		"provider": identity.Provider,
	}).Info("Federated user created")

	return user, nil
}

func (s *AuthService) notifyRegistration(user *entity.User) {
	s.publish(&Notification{
		Title:      "Welcome",
		Message:    "Your account has been created",
		Type:       EventRegistration,
		UserID:     user.ID,
		TargetRole: entity.RoleUser,
		Metadata:   map[string]string{"email": user.Email},
	})
	s.publish(&Notification{
		Title:      "New registration",
		Message:    "A new user registered: " + user.Email,
		Type:       EventRegistration,
		TargetRole: entity.RoleAdmin,
		Metadata:   map[string]string{"email": user.Email},
	})
}

func (s *AuthService) notifyLogin(user *entity.User, eventType string) {
	s.publish(&Notification{
		Title:      "Sign-in",
		Message:    "New sign-in to your account",
		Type:       eventType,
		UserID:     user.ID,
		TargetRole: entity.RoleUser,
		Metadata:   map[string]string{"email": user.Email},
	})
}

// publish hands the event to the broker off the request path. A broker
// outage only logs; it never fails the operation that raised the event.
func (s *AuthService) publish(event *Notification) {
	if s.publisher == nil {
		return
	}
	s.asyncRunner(func() {
		publishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.publisher.Publish(publishCtx, event); err != nil {
			logrus.WithError(err).WithField("type", event.Type).Error("failed to publish notification event")
		}
	})
}

// touchActivity records login activity off the request path so a slow write
// cannot stall authentication. The staleness sweep only needs eventual
// touches.
func (s *AuthService) touchActivity(userID uint64) {
	s.asyncRunner(func() {
		updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.userRepo.UpdateLastActivity(updateCtx, userID, time.Now()); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("failed to update last_activity_at")
		}
	})
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
