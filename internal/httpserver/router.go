package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pokazuha/backend/internal/tokens"
)

type Deps struct {
	Auth    *AuthHTTP
	Postads *PostadHTTP
	Issuer  *tokens.Issuer
}

func Register(e *echo.Echo, d *Deps) {
	e.Validator = newValidator()

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	requireAuth := RequireAuth(d.Issuer)

	auth := e.Group("/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/google-login", d.Auth.GoogleLogin)
	auth.POST("/refresh-token", d.Auth.Refresh)

	authPrivate := auth.Group("")
	authPrivate.Use(requireAuth)
	authPrivate.POST("/revoke-token", d.Auth.Revoke)
	authPrivate.POST("/change-password", d.Auth.ChangePassword)
	authPrivate.GET("/me", d.Auth.Me)

	ads := e.Group("/postads")
	ads.GET("", d.Postads.List)
	ads.GET("/search", d.Postads.Search)
	ads.GET("/:id", d.Postads.Get)

	adsPrivate := ads.Group("")
	adsPrivate.Use(requireAuth)
	adsPrivate.GET("/my", d.Postads.ListMine)
	adsPrivate.POST("", d.Postads.Create)
	adsPrivate.PUT("/:id", d.Postads.Update)
	adsPrivate.DELETE("/:id", d.Postads.Delete)
	adsPrivate.POST("/:id/approve", d.Postads.Approve)
	adsPrivate.POST("/:id/reject", d.Postads.Reject)
	adsPrivate.POST("/:id/images", d.Postads.UploadImage)
}
