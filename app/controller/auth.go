package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/pinceletas/user-auth-service/app/dto"
	"github.com/pinceletas/user-auth-service/app/service"
)

type AuthController struct {
	authService  *service.AuthService
	resetService *service.PasswordResetService
}

func NewAuthController(authService *service.AuthService, resetService *service.PasswordResetService) *AuthController {
	return &AuthController{
		authService:  authService,
		resetService: resetService,
	}
}

func (c *AuthController) Register(ctx echo.Context) error {
	req, err := dto.NewRegisterRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind register request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Register validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Register request received")
	token, err := c.authService.Register(ctx.Request().Context(), &service.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
	})
	if err != nil {
		if errors.Is(err, service.ErrPasswordMismatch) {
			logrus.WithField("email", req.Email).Warn("Register failed: passwords do not match")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "passwords do not match"})
		}
		if errors.Is(err, service.ErrEmailTaken) {
			logrus.WithField("email", req.Email).Warn("Register failed: email already registered")
			return ctx.JSON(http.StatusConflict, dto.ErrorResponse{Error: "email is already registered"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Register failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", req.Email).Info("User registered")
	return ctx.JSON(http.StatusCreated, dto.AuthResponse{Token: token})
}

func (c *AuthController) Login(ctx echo.Context) error {
	req, err := dto.NewLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind login request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.WithField("email", req.Email).Debug("Login validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	token, err := c.authService.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			logrus.WithField("email", req.Email).Warn("Login failed: invalid credentials")
			return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid credentials"})
		}
		if errors.Is(err, service.ErrAccountInactive) {
			logrus.WithField("email", req.Email).Warn("Login failed: account deactivated")
			return ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "account is deactivated"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Login failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", req.Email).Info("Login successful")
	return ctx.JSON(http.StatusOK, dto.AuthResponse{Token: token})
}

func (c *AuthController) FirebaseLogin(ctx echo.Context) error {
	req, err := dto.NewFirebaseLoginRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind firebase login request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Firebase login validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	token, err := c.authService.FirebaseLogin(ctx.Request().Context(), req.IDToken)
	if err != nil {
		if errors.Is(err, service.ErrFederatedToken) {
			logrus.Warn("Firebase login failed: invalid provider token")
			return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid firebase token"})
		}
		if errors.Is(err, service.ErrAccountInactive) {
			logrus.Warn("Firebase login failed: account deactivated")
			return ctx.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "account is deactivated"})
		}
		logrus.WithError(err).Error("Firebase login failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	logrus.Info("Firebase login successful")
	return ctx.JSON(http.StatusOK, dto.AuthResponse{Token: token})
}

func (c *AuthController) FirebaseRegister(ctx echo.Context) error {
	req, err := dto.NewFirebaseRegisterRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind firebase register request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Firebase register validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	token, err := c.authService.FirebaseRegister(ctx.Request().Context(), &service.FirebaseRegisterInput{
		IDToken:   req.IDToken,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		if errors.Is(err, service.ErrFederatedToken) {
			logrus.Warn("Firebase register failed: invalid provider token")
			return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "invalid firebase token"})
		}
		if errors.Is(err, service.ErrEmailTaken) {
			logrus.Warn("Firebase register failed: account already exists")
			return ctx.JSON(http.StatusConflict, dto.ErrorResponse{Error: "account already exists"})
		}
		logrus.WithError(err).Error("Firebase register failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	logrus.Info("Firebase user registered")
	return ctx.JSON(http.StatusCreated, dto.AuthResponse{Token: token})
}

// ForgotPassword never reveals on the wire whether the email is registered
// or the account active; the service-level errors stay distinguishable for
// logs.
func (c *AuthController) ForgotPassword(ctx echo.Context) error {
	req, err := dto.NewForgotPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind forgot password request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Forgot password validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	logrus.WithField("email", req.Email).Info("Password recovery requested")
	err = c.resetService.Initiate(ctx.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.WithField("email", req.Email).Debug("Password recovery requested for unknown email")
			return ctx.JSON(http.StatusOK, dto.MessageResponse{
				Message: "if the email exists, a recovery code has been sent",
			})
		}
		if errors.Is(err, service.ErrAccountInactive) {
			logrus.WithField("email", req.Email).Warn("Password recovery requested for deactivated account")
			return ctx.JSON(http.StatusOK, dto.MessageResponse{
				Message: "if the email exists, a recovery code has been sent",
			})
		}
		if errors.Is(err, service.ErrDeliveryFailed) {
			logrus.WithError(err).WithField("email", req.Email).Error("Recovery code delivery failed")
			return ctx.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: "failed to send recovery email, please try again"})
		}
		logrus.WithError(err).WithField("email", req.Email).Error("Password recovery failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", req.Email).Info("Recovery code issued")
	return ctx.JSON(http.StatusOK, dto.MessageResponse{
		Message: "if the email exists, a recovery code has been sent",
	})
}

func (c *AuthController) ResetPassword(ctx echo.Context) error {
	req, err := dto.NewResetPasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind reset password request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		logrus.Debug("Reset password validation failed")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	err = c.resetService.Complete(ctx.Request().Context(), req.Code, req.NewPassword, req.ConfirmNewPassword)
	if err != nil {
		if errors.Is(err, service.ErrPasswordMismatch) {
			logrus.Warn("Reset password failed: passwords do not match")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "passwords do not match"})
		}
		if errors.Is(err, service.ErrCodeNotFound) {
			logrus.Warn("Reset password failed: code invalid or already used")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "recovery code is invalid or already used"})
		}
		if errors.Is(err, service.ErrCodeExpired) {
			logrus.Warn("Reset password failed: code expired")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "recovery code has expired, request a new one"})
		}
		if errors.Is(err, service.ErrSamePassword) {
			logrus.Warn("Reset password failed: same password")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "new password must differ from the current one"})
		}
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.Error("Reset password failed: user missing for valid code")
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).Error("Reset password failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	logrus.Info("Password reset successful")
	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "password reset successfully"})
}
