package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-lot-service/internal/handler"
	"github.com/iliyamo/parking-lot-service/internal/middleware"
	"github.com/iliyamo/parking-lot-service/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check, which load balancers and
// monitoring can probe without credentials.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints.  Unauthenticated
// token operations live under /v1/auth; /v1/me requires a valid access
// token.  Logout stays outside the JWT middleware so a client holding
// only a refresh token can still terminate its session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// /refresh rotates the refresh token; /refresh-access reuses it and
	// only issues a new access token.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleAdmin, model.RoleAttendant))
	auth.GET("/me", a.Me)
}

// API bundles the domain handlers so route registration takes a single
// argument per concern instead of a parade of handler pointers.
type API struct {
	Cars     *handler.CarHandler
	Sessions *handler.SessionHandler
	Lots     *handler.LotHandler
	Reports  *handler.ReportHandler
	Logs     *handler.LogHandler
}

// RegisterAPI registers the parking endpoints.  Gate operations and
// read endpoints accept both roles; lot management, session
// corrections, reports and the audit trail are admin only.  The
// optional middlewares (rate limiting on mutations, response caching on
// hot reads) are applied per group when non-nil.
func RegisterAPI(e *echo.Echo, api *API, jwtSecret string, limiter, cache echo.MiddlewareFunc) {
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole(model.RoleAdmin, model.RoleAttendant))

	// Gate operations: any authenticated attendant or admin.
	cars := v1.Group("/cars")
	if limiter != nil {
		cars.Use(limiter)
	}
	cars.POST("/entry", api.Cars.RegisterEntry)
	cars.POST("/exit", api.Cars.RegisterExit)

	// Session and ticket lookups: both roles.
	v1.GET("/sessions/open", api.Sessions.ListOpen)
	v1.GET("/sessions/history/:plate", api.Sessions.History)
	v1.GET("/tickets/:code", api.Sessions.GetTicket)

	// Lot browsing: both roles; /available is the hot path for gate
	// displays, so it gets the response cache.
	v1.GET("/lots", api.Lots.List)
	if cache != nil {
		v1.GET("/lots/available", api.Lots.ListAvailable, cache)
	} else {
		v1.GET("/lots/available", api.Lots.ListAvailable)
	}
	v1.GET("/lots/:code", api.Lots.Get)

	// Admin-only management and reporting.
	admin := v1.Group("")
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.POST("/lots", api.Lots.Create)
	admin.PATCH("/lots/:code", api.Lots.Update)
	admin.DELETE("/lots/:code", api.Lots.Delete)
	admin.PATCH("/sessions/:code", api.Sessions.Update)
	admin.DELETE("/sessions/:code", api.Sessions.Delete)
	admin.GET("/reports/entries-exits", api.Reports.EntriesExits)
	admin.GET("/reports/revenue", api.Reports.Revenue)
	admin.GET("/reports/occupancy", api.Reports.Occupancy)
	admin.GET("/logs", api.Logs.List)
}
