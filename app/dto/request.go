package dto

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone"`
}

func NewRegisterRequestFromContext(ctx echo.Context) (*RegisterRequest, error) {
	var body RegisterRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.Password) == "" {
		return errors.New("email and password are required")
	}
	if strings.TrimSpace(r.ConfirmPassword) == "" {
		return errors.New("confirm_password is required")
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewLoginRequestFromContext(ctx echo.Context) (*LoginRequest, error) {
	var body LoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.Password) == "" {
		return errors.New("email and password are required")
	}
	return nil
}

type FirebaseLoginRequest struct {
	IDToken string `json:"firebase_id_token"`
}

func NewFirebaseLoginRequestFromContext(ctx echo.Context) (*FirebaseLoginRequest, error) {
	var body FirebaseLoginRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *FirebaseLoginRequest) Validate() error {
	if strings.TrimSpace(r.IDToken) == "" {
		return errors.New("firebase_id_token is required")
	}
	return nil
}

type FirebaseRegisterRequest struct {
	IDToken   string `json:"firebase_id_token"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func NewFirebaseRegisterRequestFromContext(ctx echo.Context) (*FirebaseRegisterRequest, error) {
	var body FirebaseRegisterRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *FirebaseRegisterRequest) Validate() error {
	if strings.TrimSpace(r.IDToken) == "" {
		return errors.New("firebase_id_token is required")
	}
	return nil
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func NewForgotPasswordRequestFromContext(ctx echo.Context) (*ForgotPasswordRequest, error) {
	var body ForgotPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *ForgotPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}
	return nil
}

type ResetPasswordRequest struct {
	Code               string `json:"code"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

func NewResetPasswordRequestFromContext(ctx echo.Context) (*ResetPasswordRequest, error) {
	var body ResetPasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *ResetPasswordRequest) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return errors.New("code is required")
	}
	if strings.TrimSpace(r.NewPassword) == "" || strings.TrimSpace(r.ConfirmNewPassword) == "" {
		return errors.New("new_password and confirm_new_password are required")
	}
	return nil
}

type UpdateProfileRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func NewUpdateProfileRequestFromContext(ctx echo.Context) (*UpdateProfileRequest, error) {
	var body UpdateProfileRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *UpdateProfileRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" {
		return errors.New("email is required")
	}
	return nil
}

type UpdateAddressRequest struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

func NewUpdateAddressRequestFromContext(ctx echo.Context) (*UpdateAddressRequest, error) {
	var body UpdateAddressRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

func NewChangePasswordRequestFromContext(ctx echo.Context) (*ChangePasswordRequest, error) {
	var body ChangePasswordRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	return &body, nil
}

func (r *ChangePasswordRequest) Validate() error {
	if strings.TrimSpace(r.CurrentPassword) == "" {
		return errors.New("current_password is required")
	}
	if strings.TrimSpace(r.NewPassword) == "" || strings.TrimSpace(r.ConfirmNewPassword) == "" {
		return errors.New("new_password and confirm_new_password are required")
	}
	return nil
}
