package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/dm-service/internal/config"
	"github.com/yourorg/dm-service/internal/handlers"
	"github.com/yourorg/dm-service/internal/metrics"
	"github.com/yourorg/dm-service/internal/middleware"
)

// NewServer wires the fiber app: ws upgrade endpoint, REST surface, health
// and metrics. rdb may be nil; the rate limiter is then skipped.
func NewServer(cfg *config.Config, wsh *handlers.WSHandler, rest *handlers.RestHandler, rdb *redis.Client) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.App.Env == "production"})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	v1 := app.Group("/v1")
	v1.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	v1.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	v1.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	v1.Get("/ws", websocket.New(wsh.Handle()))

	api := app.Group("/api", middleware.JWTAuth(cfg.App.JWTSecret))
	if rdb != nil {
		rl := middleware.NewRateLimiter(rdb, "dm:rl", cfg.Redis.RateLimit, cfg.RateWindow)
		api.Use(rl.MiddlewareByKey(func(c *fiber.Ctx) string {
			if uid, ok := c.Locals(middleware.LocalUserID).(string); ok && uid != "" {
				return uid
			}
			return c.IP()
		}))
	}
	api.Get("/messages/:targetUserId", rest.GetHistory)
	api.Get("/users/online", rest.GetOnlineUsers)

	return app
}
