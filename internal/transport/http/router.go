package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/medico-billing/internal/domain"
	"github.com/ErlanBelekov/medico-billing/internal/transport/http/handler"
	"github.com/ErlanBelekov/medico-billing/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

type RouterConfig struct {
	Logger        *slog.Logger
	AuthHandler   *handler.AuthHandler
	UserHandler   *handler.UserHandler
	TokenVerifier middleware.TokenVerifier
	// HSTS is enabled when cookies are Secure, i.e. outside local development.
	HSTS bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security(cfg.HSTS))
	r.Use(sloggin.NewWithConfig(cfg.Logger, sloggin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
	}))
	r.Use(middleware.Metrics())

	auth := cfg.AuthHandler

	// Anonymous flows
	r.POST("/signup", auth.SignUp)
	r.POST("/signin", auth.SignIn)
	r.POST("/otp/verify", auth.VerifyOTP)
	r.POST("/signout", auth.SignOut)

	reset := r.Group("/forgot-password")
	reset.POST("/send-otp", auth.SendResetOTP)
	reset.POST("/verify-otp", auth.VerifyResetOTP)
	reset.PUT("/reset-password", auth.ResetPassword)

	// Session required
	sessionMW := middleware.Session(cfg.TokenVerifier)
	authed := r.Group("", sessionMW)
	authed.GET("/me", auth.Me)
	authed.PUT("/password/change", auth.ChangePassword)
	authed.PUT("/profile/update", auth.UpdateProfile)

	// Admin only
	users := cfg.UserHandler
	admin := r.Group("", sessionMW, middleware.RequireRole(domain.RoleAdmin))
	admin.GET("/get/users", users.List)
	admin.GET("/users/:id", users.Get)
	admin.PUT("/update/user/:id", users.Update)
	admin.DELETE("/delete/user/:id", users.Delete)

	return r
}
