package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/prodhub/production-api/internal/handler"
	"github.com/prodhub/production-api/internal/metrics"
	"github.com/prodhub/production-api/internal/middleware"
	"github.com/prodhub/production-api/internal/model"
)

// RegisterRoutes registers the unauthenticated service endpoints.
func RegisterRoutes(e *echo.Echo, version string, m *metrics.Metrics) {
	e.GET("/api/health", handler.Health)
	e.GET("/api/version", handler.Version(version))
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
}

// RegisterAuth registers the /api/auth routes.  Credential endpoints sit
// behind limiter; register needs an administrator and me needs any valid
// access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens middleware.AccessVerifier, limiter echo.MiddlewareFunc) {
	g := e.Group("/api/auth")

	public := g.Group("", limiter)
	public.POST("/bootstrap", a.Bootstrap)
	public.POST("/login", a.Login)
	public.POST("/refresh", a.Refresh)
	public.POST("/logout", a.Logout)
	public.POST("/forgot-password", a.ForgotPassword)
	public.POST("/reset-password", a.ResetPassword)

	g.POST("/register", a.Register,
		middleware.Authenticate(tokens),
		middleware.RequireRole(model.AdminRoles),
	)

	me := g.Group("/me", middleware.Authenticate(tokens))
	me.GET("", a.Me)
	me.PATCH("", a.UpdateMe)
}

// RegisterUsers registers administrator user management under /api/users.
func RegisterUsers(e *echo.Echo, u *handler.UsersHandler, tokens middleware.AccessVerifier) {
	g := e.Group(
		"/api/users",
		middleware.Authenticate(tokens),
		middleware.RequireRole(model.AdminRoles),
	)
	g.GET("", u.List)
	g.PATCH("/:id", u.Update)
	g.DELETE("/:id", u.Deactivate)
}

// RegisterProjects registers /api/projects.  Every route needs an
// operational role; creating additionally needs ProjectCreatorRoles and
// edits are checked against ownership in the service.
func RegisterProjects(e *echo.Echo, p *handler.ProjectsHandler, tokens middleware.AccessVerifier) {
	g := e.Group(
		"/api/projects",
		middleware.Authenticate(tokens),
		middleware.RequireRole(model.OperationalRoles),
	)
	g.GET("", p.List)
	g.POST("", p.Create, middleware.RequireRole(model.ProjectCreatorRoles))
	g.GET("/:id", p.Get)
	g.PATCH("/:id", p.Update)
	g.DELETE("/:id", p.Archive)
}
