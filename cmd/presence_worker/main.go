package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtime_chat_service/internal/member/app"
	"realtime_chat_service/internal/member/repository"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.PresenceWorker, config.EnvConfig.PresenceWorkerLogPath)
	defer logger.Log.Sync()
	cfg := config.LoadConfig[config.PresenceWorker](config.EnvConfig.PresenceWorker, config.EnvConfig.PresenceWorkerYAMLPath, config.PresenceWorkerDefaults)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlParams := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
	pool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    sqlParams,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to postgreSQL database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.PostgreSQL.Host, cfg.PostgreSQL.Port)),
			zap.Error(err),
		)
	}
	defer pool.Close()

	memberRepo := repository.NewMemberRepository(pool)
	if err := memberRepo.EnsureSchema(ctx); err != nil {
		logger.Log.Fatal("create member_presence table failed", zap.Error(err))
	}

	conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
		ConnectStr:    fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.IP, cfg.RabbitMQ.Port),
		RetryCount:    cfg.RabbitMQ.RetryCount,
		RetryInterval: time.Duration(cfg.RabbitMQ.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal("Unable to connect to rabbitmq", zap.Error(err))
	}
	defer conn.Close()

	ch, err := database.GetRabbitMQChannelWithRetry(conn, cfg.RabbitMQ.Queue, cfg.RabbitMQ.RetryCount, time.Duration(cfg.RabbitMQ.RetryInterval))
	if err != nil {
		logger.Log.Fatal("Unable to open rabbitmq channel", zap.Error(err))
	}
	defer ch.Close()

	// 一次只取一筆
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Log.Fatal("set rabbitmq qos failed", zap.Error(err))
	}

	consumer := app.NewLastSeenConsumer(ch, cfg.RabbitMQ.Queue, memberRepo)
	logger.Log.Info("Presence worker started", zap.String("queue", cfg.RabbitMQ.Queue))
	if err := consumer.Run(ctx); err != nil {
		logger.Log.Fatal("presence worker stopped", zap.Error(err))
	}
	logger.Log.Info("Presence worker stopped")
}
