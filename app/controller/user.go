package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/pinceletas/user-auth-service/app/dto"
	"github.com/pinceletas/user-auth-service/app/middleware"
	"github.com/pinceletas/user-auth-service/app/service"
)

type UserController struct {
	userService *service.UserService
}

func NewUserController(userService *service.UserService) *UserController {
	return &UserController{userService: userService}
}

// currentEmail returns the authenticated identity set by the auth middleware.
// Routes using this controller sit behind RequireAuth, so a missing value
// means a wiring mistake rather than an anonymous caller.
func currentEmail(ctx echo.Context) (string, bool) {
	email, ok := ctx.Get(middleware.ContextKeyEmail).(string)
	return email, ok && email != ""
}

func (c *UserController) Me(ctx echo.Context) error {
	email, ok := currentEmail(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "authentication required"})
	}

	user, err := c.userService.GetByEmail(ctx.Request().Context(), email)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			logrus.WithField("email", email).Warn("Profile lookup for unknown user")
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).WithField("email", email).Error("Profile lookup failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.NewUserResponse(user))
}

func (c *UserController) UpdateProfile(ctx echo.Context) error {
	email, ok := currentEmail(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "authentication required"})
	}

	req, err := dto.NewUpdateProfileRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind profile update request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	user, err := c.userService.UpdateProfile(ctx.Request().Context(), email, &service.UpdateProfileInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not found"})
		}
		if errors.Is(err, service.ErrEmailTaken) {
			logrus.WithField("email", email).Warn("Profile update failed: email already registered")
			return ctx.JSON(http.StatusConflict, dto.ErrorResponse{Error: "email is already registered"})
		}
		logrus.WithError(err).WithField("email", email).Error("Profile update failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", email).Info("Profile updated")
	return ctx.JSON(http.StatusOK, dto.NewUserResponse(user))
}

func (c *UserController) UpdateAddress(ctx echo.Context) error {
	email, ok := currentEmail(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "authentication required"})
	}

	req, err := dto.NewUpdateAddressRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind address update request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	user, err := c.userService.UpdateAddress(ctx.Request().Context(), email, &service.UpdateAddressInput{
		Street:     req.Street,
		Number:     req.Number,
		City:       req.City,
		Province:   req.Province,
		Country:    req.Country,
		PostalCode: req.PostalCode,
	})
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).WithField("email", email).Error("Address update failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", email).Info("Address updated")
	return ctx.JSON(http.StatusOK, dto.NewUserResponse(user))
}

func (c *UserController) ChangePassword(ctx echo.Context) error {
	email, ok := currentEmail(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "authentication required"})
	}

	req, err := dto.NewChangePasswordRequestFromContext(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Failed to bind change password request")
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}

	if err = req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	err = c.userService.ChangePassword(ctx.Request().Context(), email, &service.ChangePasswordInput{
		CurrentPassword:    req.CurrentPassword,
		NewPassword:        req.NewPassword,
		ConfirmNewPassword: req.ConfirmNewPassword,
	})
	if err != nil {
		if errors.Is(err, service.ErrPasswordMismatch) {
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "passwords do not match"})
		}
		if errors.Is(err, service.ErrWrongPassword) {
			logrus.WithField("email", email).Warn("Change password failed: wrong current password")
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "current password is incorrect"})
		}
		if errors.Is(err, service.ErrSamePassword) {
			return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "new password must differ from the current one"})
		}
		if errors.Is(err, service.ErrUserNotFound) {
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).WithField("email", email).Error("Change password failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", email).Info("Password changed")
	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "password changed successfully"})
}

func (c *UserController) AcceptTerms(ctx echo.Context) error {
	email, ok := currentEmail(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "authentication required"})
	}

	if err := c.userService.AcceptTerms(ctx.Request().Context(), email); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).WithField("email", email).Error("Terms acceptance failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "terms accepted"})
}

func (c *UserController) TermsStatus(ctx echo.Context) error {
	email, ok := currentEmail(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "authentication required"})
	}

	accepted, err := c.userService.HasAcceptedTerms(ctx.Request().Context(), email)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).WithField("email", email).Error("Terms status lookup failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	return ctx.JSON(http.StatusOK, dto.TermsStatusResponse{TermsAccepted: accepted})
}

func (c *UserController) Deactivate(ctx echo.Context) error {
	email, ok := currentEmail(ctx)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "authentication required"})
	}

	if err := c.userService.Deactivate(ctx.Request().Context(), email); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).WithField("email", email).Error("Account deactivation failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", email).Info("Account deactivated")
	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "account deactivated"})
}

func (c *UserController) Delete(ctx echo.Context) error {
	email := ctx.Param("email")
	if email == "" {
		return ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "email is required"})
	}

	if err := c.userService.Delete(ctx.Request().Context(), email); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "user not found"})
		}
		logrus.WithError(err).WithField("email", email).Error("User deletion failed")
		return ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal server error"})
	}

	logrus.WithField("email", email).Info("User deleted")
	return ctx.JSON(http.StatusOK, dto.MessageResponse{Message: "user deleted"})
}
