package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/hyeonwoo/railbot/internal/config"
	"github.com/hyeonwoo/railbot/internal/handler"    // handlers implementing the bot's HTTP surface
	"github.com/hyeonwoo/railbot/internal/middleware" // middleware for service token auth and rate limiting
)

// RegisterRoutes wires up the bot's three HTTP surfaces: the health check,
// the public Telegram webhook, and the loopback completion callback used by
// the reservation worker.
func RegisterRoutes(e *echo.Echo, wh *handler.WebhookHandler, ch *handler.CompletionHandler, internalSecret string, rdb *redis.Client) {
	// Health check for load balancers and monitoring.
	e.GET("/healthz", handler.Health)

	// The webhook is the only route reachable from the internet, so it is
	// the only one behind the rate limiter.  Telegram retries on non-2xx,
	// which the handler accounts for by always answering 200 once the
	// payload parses.
	e.POST("/webhook", wh.Receive, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	// Completion callbacks are signed with the internal service secret.
	// The worker mints its token at startup; nothing else holds one.
	internal := e.Group("/internal")
	internal.Use(middleware.InternalAuth(internalSecret))
	internal.POST("/completion/:id", ch.Complete)
}
