package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pokazuha/backend/internal/logging"
	"github.com/pokazuha/backend/internal/repo"
	"github.com/pokazuha/backend/internal/service"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.Svc.Register(ctx, service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	}, c.RealIP())
	if err != nil {
		return authError(err)
	}

	return c.JSON(http.StatusOK, toAuthResponse(res))
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password, req.RememberMe, c.RealIP())
	if err != nil {
		return authError(err)
	}

	return c.JSON(http.StatusOK, toAuthResponse(res))
}

func (h *AuthHTTP) GoogleLogin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_google_login")

	var req googleLoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("google_login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.Svc.GoogleLogin(ctx, req.IDToken, c.RealIP())
	if err != nil {
		return authError(err)
	}

	return c.JSON(http.StatusOK, toAuthResponse(res))
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("refresh_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.Svc.Refresh(ctx, req.RefreshToken, c.RealIP())
	if err != nil {
		return authError(err)
	}

	return c.JSON(http.StatusOK, toAuthResponse(res))
}

func (h *AuthHTTP) Revoke(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_revoke")

	var req revokeRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("revoke_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.Svc.Revoke(ctx, req.RefreshToken, c.RealIP()); err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			return echo.NewHTTPError(http.StatusBadRequest, "token not found or already revoked")
		}
		return authError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "token revoked"})
}

func (h *AuthHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_change_password")

	userID, ok := CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("change_password_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.Svc.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, repo.ErrInvalidCredentials), errors.Is(err, repo.ErrAccountLocked):
			return echo.NewHTTPError(http.StatusBadRequest, "current password is incorrect")
		case errors.Is(err, service.ErrPasswordPolicy):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return authError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}

	user, roles, err := h.Svc.CurrentUser(ctx, userID)
	if err != nil {
		return authError(err)
	}

	return c.JSON(http.StatusOK, toUserResponse(user, roles))
}

// authError maps service failures to HTTP codes. Unknown-user, wrong
// password and inactive account share one generic message.
func authError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, repo.ErrDuplicateEmail):
		return echo.NewHTTPError(http.StatusBadRequest, "email is already registered")
	case errors.Is(err, service.ErrPasswordPolicy), errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, repo.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, repo.ErrAccountLocked):
		return echo.NewHTTPError(http.StatusUnauthorized, "account temporarily locked, try again later")
	case errors.Is(err, service.ErrUserInactive):
		return echo.NewHTTPError(http.StatusUnauthorized, "user is not active")
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, repo.ErrTokenReused):
		return echo.NewHTTPError(http.StatusUnauthorized, "token is invalid or expired")
	case errors.Is(err, service.ErrGoogleAuth):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid google token")
	case errors.Is(err, repo.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
