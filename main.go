package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messaging-service/internal/db"
	"messaging-service/internal/delivery"
	"messaging-service/internal/directory"
	"messaging-service/internal/gateway"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/ratelimit"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/typing"
	"messaging-service/internal/ws"
)

const serviceName = "messaging-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, serviceName, os.Getenv("OTLP_ENDPOINT"))
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("tracer shutdown error: %v", err)
		}
	}()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("redis unavailable, presence mirror disabled: %v", err)
			rdb = nil
		}
	}

	amqpURL := os.Getenv("AMQP_URL")
	exchange := getEnv("AMQP_EXCHANGE", "messaging.events")

	publisher := rabbitmq.NewPublisher(amqpURL, exchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))

	if amqpURL != "" {
		if lifecycle, err := observability.NewAMQPPublisher(amqpURL, exchange); err == nil {
			observability.SetPublisher(lifecycle)
			defer lifecycle.Close()
		} else {
			log.Printf("lifecycle publisher disabled: %v", err)
		}
	}

	audit := telemetry.NewAuditEmitter(
		publisher,
		getEnv("AUDIT_ROUTING_KEY", "audit.messaging"),
		serviceName,
		getEnv("ENVIRONMENT", "development"),
	)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	var users directory.Directory = directory.Noop{}
	if baseURL := os.Getenv("USER_SERVICE_URL"); baseURL != "" {
		users = directory.NewHTTPClient(baseURL)
	}

	hub := ws.NewHub(rdb)
	limiter := ratelimit.New(ratelimit.DefaultLimit, ratelimit.DefaultWindow)
	typingCoordinator := typing.NewCoordinator(hub)
	tracker := delivery.NewTracker(messageRepo, conversationRepo, hub)
	gw := gateway.New(conversationRepo, messageRepo, tracker, typingCoordinator, users, limiter, hub)

	auth := middleware.NewAuthenticator(getEnv("JWT_SECRET", "dev-secret"))

	messageHandler := handlers.NewMessageHandler(gw, audit)
	socketHandler := ws.NewSocketHandler(hub, gw, auth)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(auth)

	router.POST("/messages", authMiddleware, messageHandler.SendMessage)
	router.GET("/messages/:otherUserId", authMiddleware, messageHandler.GetMessages)
	router.GET("/conversations", authMiddleware, messageHandler.GetConversations)
	router.POST("/conversations/:conversationId/seen", authMiddleware, messageHandler.MarkConversationSeen)

	router.GET("/ws", socketHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, os.Getenv("DEBUG_ROUTES") == "true")

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
