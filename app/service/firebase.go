package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/pinceletas/user-auth-service/config"
)

const firebaseProvider = "firebase"

type firebaseClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// FirebaseVerifier validates Firebase ID tokens against Google's
// securetoken JWKS. Tokens are RS256 JWTs whose audience is the Firebase
// project ID.
type FirebaseVerifier struct {
	projectID string
	issuer    string
	keyfunc   jwt.Keyfunc
}

func NewFirebaseVerifier(cfg *config.Config) (*FirebaseVerifier, error) {
	if cfg.Firebase.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	jwks, err := keyfunc.Get(cfg.Firebase.JWKSURL, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logrus.WithError(err).Warn("Failed to refresh firebase JWKS")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load firebase JWKS: %w", err)
	}

	return newFirebaseVerifier(cfg.Firebase.ProjectID, jwks.Keyfunc), nil
}

func newFirebaseVerifier(projectID string, kf jwt.Keyfunc) *FirebaseVerifier {
	return &FirebaseVerifier{
		projectID: projectID,
		issuer:    "https://securetoken.google.com/" + projectID,
		keyfunc:   kf,
	}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*FederatedIdentity, error) {
	token, err := jwt.ParseWithClaims(idToken, &firebaseClaims{}, v.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(v.issuer),
	)
	if err != nil {
		logrus.WithError(err).Debug("Firebase token verification failed")
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*firebaseClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, ErrTokenInvalid
	}

	return &FederatedIdentity{
		UID:         claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		Provider:    firebaseProvider,
	}, nil
}
