package service

import "errors"

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSamePassword       = errors.New("new password must differ from the current one")
	ErrCodeNotFound       = errors.New("recovery code is invalid or already used")
	ErrCodeExpired        = errors.New("recovery code has expired")
	ErrDeliveryFailed     = errors.New("failed to deliver recovery code")
	ErrFederatedToken     = errors.New("invalid federated identity token")
)
