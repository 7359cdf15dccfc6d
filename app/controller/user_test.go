package controller_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/pinceletas/user-auth-service/app/controller"
	"github.com/pinceletas/user-auth-service/app/middleware"
	"github.com/pinceletas/user-auth-service/app/repository"
	"github.com/pinceletas/user-auth-service/app/service"
)

func newUserController(t *testing.T) (*controller.UserController, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	userService := service.NewUserService(repository.NewUserRepository(db))
	return controller.NewUserController(userService), mock, func() { _ = db.Close() }
}

func doAuthenticated(t *testing.T, handler echo.HandlerFunc, method, path, email, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	if email != "" {
		ctx.Set(middleware.ContextKeyEmail, email)
	}

	if err := handler(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestUserController_Me(t *testing.T) {
	userController, mock, cleanup := newUserController(t)
	defer cleanup()

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(activeUserRow("user@example.com", "hash"))

	rec := doAuthenticated(t, userController.Me, http.MethodGet, "/users/me", "user@example.com", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "user@example.com") {
		t.Fatalf("expected email in response, got %s", rec.Body.String())
	}
}

func TestUserController_Me_NoIdentity(t *testing.T) {
	userController, _, cleanup := newUserController(t)
	defer cleanup()

	rec := doAuthenticated(t, userController.Me, http.MethodGet, "/users/me", "", "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestUserController_ChangePassword_WrongCurrent(t *testing.T) {
	userController, mock, cleanup := newUserController(t)
	defer cleanup()

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(activeUserRow("user@example.com", "$2a$04$invalidhashinvalidhashinvalidhashinvalid"))

	rec := doAuthenticated(t, userController.ChangePassword, http.MethodPost, "/users/me/change-password",
		"user@example.com",
		`{"current_password":"nope","new_password":"brand-new","confirm_new_password":"brand-new"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUserController_Deactivate(t *testing.T) {
	userController, mock, cleanup := newUserController(t)
	defer cleanup()

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(activeUserRow("user@example.com", "hash"))
	mock.ExpectExec(`(?s)UPDATE users SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doAuthenticated(t, userController.Deactivate, http.MethodPost, "/users/me/deactivate",
		"user@example.com", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUserController_AcceptTerms(t *testing.T) {
	userController, mock, cleanup := newUserController(t)
	defer cleanup()

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(activeUserRow("user@example.com", "hash"))
	mock.ExpectExec(`(?s)UPDATE users SET terms_accepted = 1`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doAuthenticated(t, userController.AcceptTerms, http.MethodPut, "/users/me/accept-terms",
		"user@example.com", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUserController_TermsStatus(t *testing.T) {
	userController, mock, cleanup := newUserController(t)
	defer cleanup()

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("user@example.com").
		WillReturnRows(activeUserRow("user@example.com", "hash"))

	rec := doAuthenticated(t, userController.TermsStatus, http.MethodGet, "/users/me/terms",
		"user@example.com", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"terms_accepted":false`) {
		t.Fatalf("expected terms status in response, got %s", rec.Body.String())
	}
}

func TestUserController_Delete_NotFound(t *testing.T) {
	userController, mock, cleanup := newUserController(t)
	defer cleanup()

	mock.ExpectQuery(findUserByEmailQuery).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	e := echo.New()
	req := httptest.NewRequest(http.MethodDelete, "/users/ghost@example.com", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("email")
	ctx.SetParamValues("ghost@example.com")

	if err := userController.Delete(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
