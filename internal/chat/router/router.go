package router

import (
	"context"

	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 注册 chat service 路由
// @title Realtime Chat Service API
// @version 1.0
// @description Chat history, presence and call participants for the realtime relay
// @host localhost:8082
// @BasePath /
func RegisterRoutes(r *fiber.App, chatWebsocket *app.ChatWebsocketHandler, history *app.HistoryHandler, authRequired bool) {
	r.Use(middlewares.Metrics())

	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/", app.ConnectCheck)
	r.Post("/debug", app.DebugLogFlag)
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	r.Get("/messages/:user1/:user2", history.PrivateHistory)
	r.Get("/users/online", history.OnlineUsers)

	groupRoutes := r.Group("/groups/:id")
	groupRoutes.Get("/", history.Group)
	groupRoutes.Get("/messages", history.GroupHistory)
	groupRoutes.Get("/call/participants", history.CallParticipants)

	r.Use("/ws", middlewares.JWTMiddleware(authRequired), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))
}
