package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/venuekit/seat-inventory/internal/config"
	"github.com/venuekit/seat-inventory/internal/handler"
	"github.com/venuekit/seat-inventory/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the admin login endpoint.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	e.POST("/v1/auth/login", a.Login)
}

// RegisterInventory registers the seat inventory and pricing endpoints.
// The checkout-facing transition endpoints and all price reads are public;
// the hold endpoint additionally sits behind the Redis token-bucket rate
// limiter because it takes the brunt of on-sale traffic.  Everything that
// creates, deletes or administratively moves seats, and everything that
// changes prices, requires an admin JWT.
func RegisterInventory(e *echo.Echo, inv *handler.InventoryHandler, pr *handler.PricingHandler, cfg config.Config, rdb *redis.Client) {
	// Checkout-facing transitions.  A lower-than-requested count in the
	// response is expected contention; the checkout workflow reconciles.
	e.POST("/v1/layouts/:id/seats/hold", inv.HoldSeats,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	e.POST("/v1/layouts/:id/seats/release", inv.ReleaseSeats)
	e.POST("/v1/layouts/:id/seats/sell", inv.SellSeats)

	// Public reads for seat maps and polling clients.
	e.GET("/v1/layouts/:id/seats", inv.GetSeats)
	e.GET("/v1/layouts/:id/seats/priced", pr.GetSeatsWithPrices)
	e.GET("/v1/layouts/:id/seats/counts", inv.GetStatusCounts)
	e.GET("/v1/layouts/:id/seats/changes", inv.GetChanges)
	e.GET("/v1/layouts/:id/seats/:uid/price", pr.GetSeatPrice)
	e.POST("/v1/layouts/:id/prices", pr.GetBulkPrices)

	// Admin endpoints behind the JWT middleware.
	admin := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret, "admin"))
	admin.POST("/layouts/:id/seats", inv.InitializeLayout)
	admin.DELETE("/layouts/:id/seats", inv.ResetLayout)
	admin.POST("/layouts/:id/seats/block", inv.BlockSeats)
	admin.POST("/layouts/:id/seats/unblock", inv.UnblockSeats)
	admin.POST("/layouts/:id/seats/disable", inv.DisableSeats)
	admin.PATCH("/layouts/:id/seats/:uid", inv.UpdateSeat)
	admin.POST("/layouts/:id/overrides", pr.CreateOverride)
	admin.POST("/layouts/:id/reprice", pr.ApplyReprice)
	admin.POST("/layouts/:id/reprice/preview", pr.PreviewReprice)
	admin.POST("/pricing/rules", pr.CreateRule)
	admin.GET("/pricing/rules", pr.ListRules)
}
