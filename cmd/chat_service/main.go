package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/internal/chat/router"
	memberapp "realtime_chat_service/internal/member/app"
	memberrepo "realtime_chat_service/internal/member/repository"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/logger"
	testtool "realtime_chat_service/pkg/test_tool"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	defer logger.Log.Sync()
	// 本機開發預設開 debug
	logger.Log.SetDebugMode(config.IsLocal())
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath, config.ChatDefaults)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 建立 Mongo 連線 (存訊息與群組)
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval),
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.MongoSQL.Host, cfg.MongoSQL.Port)),
			zap.Error(err),
		)
	}
	defer mongo.Close(context.Background())

	messageRepo := repository.NewMongoMessageRepository(mongo.Database)
	groupRepo := repository.NewMongoGroupRepository(mongo.Database)
	if err := messageRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Warn("create message indexes failed", zap.Error(err))
	}

	// 2. topic broker, redis 模式可水平擴展
	var broker domain.Broker = app.NewTopicHub()
	if cfg.Redis.Broker == config.BrokerRedis {
		redisClient := connectRedis(cfg.Redis)
		defer redisClient.Close()

		redisBroker := repository.NewRedisTopicBroker(redisClient, broker)
		go func() {
			if err := redisBroker.Run(ctx); err != nil {
				logger.Log.Fatal("redis topic subscription failed", zap.Error(err))
			}
		}()
		broker = redisBroker
	}

	// 3. 訊息 gateway 的選配元件
	var opts []app.GatewayOption
	if cfg.MinIO.Enabled {
		mc, err := database.NewMinIOConnection(database.MinIOConnection{
			Endpoint:      fmt.Sprintf("%s:%d", cfg.MinIO.Host, cfg.MinIO.Port),
			User:          cfg.MinIO.User,
			Password:      cfg.MinIO.Password,
			BucketName:    cfg.MinIO.BucketName,
			UseSSL:        cfg.MinIO.UseSSL,
			RetryCount:    cfg.MinIO.RetryCount,
			RetryInterval: time.Duration(cfg.MinIO.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("Unable to connect to minio", zap.Error(err))
		}
		opts = append(opts, app.WithAttachmentStore(repository.NewMinIOAttachmentStore(mc, cfg.MinIO.URLExpiry)))
	}
	if cfg.KafKa.Enabled {
		writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
			Brokers:       cfg.KafKa.Brokers,
			Topic:         cfg.KafKa.Topic,
			RetryCount:    cfg.KafKa.RetryCount,
			RetryInterval: time.Duration(cfg.KafKa.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("Unable to connect to kafka", zap.Error(err))
		}
		defer writer.Close()
		opts = append(opts, app.WithAuditLog(repository.NewKafkaAuditLog(writer)))
	}
	gateway := app.NewMessageGateway(messageRepo, domain.NewFilePolicy(cfg.Files.MaxBytes, cfg.Files.AllowedTypes), opts...)

	// 4. last seen: rabbitmq 交給 presence_worker, 否則直接寫 postgres
	lastSeen := newLastSeenRecorder(cfg)

	// 5. 初始化 relay
	presence := app.NewPresenceRegistry()
	relay := app.NewRelay(broker, presence, app.NewRoomResolver(groupRepo), gateway, messageRepo, lastSeen)
	signaling := app.NewSignalingRelay(broker, presence, app.NewGroupCallTracker())
	dispatcher := app.NewDispatcher(relay, signaling)

	// 6. gRPC health
	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("Failed to listen Port(%s): ", cfg.GRPCHealthPort), zap.Error(err))
		}
		healthServer.SetServingStatus(config.EnvConfig.ChatService, healthpb.HealthCheckResponse_SERVING)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Log.Error("grpc health server stopped", zap.Error(err))
		}
	}()

	testtool.StartPprof()

	// 7. 啟動 Fiber
	r := fiber.New(fiber.Config{DisableStartupMessage: config.IsProduction()})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	router.RegisterRoutes(r,
		app.NewChatWebsocketHandler(dispatcher, cfg.WebSocket.PingInterval, cfg.WebSocket.SendBuffer),
		app.NewHistoryHandler(messageRepo, groupRepo, presence, signaling),
		cfg.Auth.Enabled,
	)

	go func() {
		<-ctx.Done()
		logger.Log.Info("shutting down chat service")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		if err := r.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Log.Error("fiber shutdown", zap.Error(err))
		}
	}()

	port := cfg.Port
	if config.EnvConfig.ChatServicePort != "" {
		port = config.EnvConfig.ChatServicePort
	}
	logger.Log.Info("Chat Service listening", zap.String("port", port), zap.String("broker", string(cfg.Redis.Broker)))
	if err := r.Listen(":" + port); err != nil {
		logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
	}
}

// connectRedis sentinel when configured in .env, otherwise the standalone addr
func connectRedis(c config.RedisConfig) *redis.Client {
	masterName, sentinel := config.GetRedisSetting()
	if len(sentinel) > 0 {
		client, err := database.NewRedisClient(masterName, sentinel, c.RedisDB)
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
		}
		return client
	}

	client, err := database.NewRedisStandalone(c.Addr, c.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}
	return client
}

func newLastSeenRecorder(cfg config.Chat) app.LastSeenRecorder {
	if cfg.RabbitMQ.Enabled {
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.IP, cfg.RabbitMQ.Port),
			RetryCount:    cfg.RabbitMQ.RetryCount,
			RetryInterval: time.Duration(cfg.RabbitMQ.RetryInterval),
		})
		if err != nil {
			logger.Log.Fatal("Unable to connect to rabbitmq", zap.Error(err))
		}
		ch, err := database.GetRabbitMQChannelWithRetry(conn, cfg.RabbitMQ.Queue, cfg.RabbitMQ.RetryCount, time.Duration(cfg.RabbitMQ.RetryInterval))
		if err != nil {
			logger.Log.Fatal("Unable to open rabbitmq channel", zap.Error(err))
		}
		return memberapp.NewLastSeenPublisher(database.NewRabbitRepository(ch), cfg.RabbitMQ.Queue)
	}

	if cfg.PostgreSQL.Host == "" {
		logger.Log.Info("last seen disabled, no rabbitmq or postgres configured")
		return nil
	}

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
	repo := memberrepo.NewMemberRepository(pool)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		logger.Log.Fatal("create member_presence table failed", zap.Error(err))
	}
	return memberapp.NewDirectRecorder(repo)
}
