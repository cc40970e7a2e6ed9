package main

import (
	"realtime_chat_service/internal/chat/router"

	"github.com/gofiber/fiber/v2"
)

// 此程式只用於 init swagger
// swag init output ./docs
func main() {
	app := fiber.New()

	router.RegisterRoutes(app, nil, nil, false)
}
