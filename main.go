package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"transaction-service/awsx"
	"transaction-service/controllers"
	"transaction-service/database"
	"transaction-service/kafka"
	"transaction-service/logger"
	"transaction-service/models"
	"transaction-service/repository"
	"transaction-service/routes"
	"transaction-service/services"
)

func main() {

	// Load environment configuration
	_ = godotenv.Load()

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Initialize(cfg.AppEnv)
	defer logger.Log.Sync()

	// Connect to database
	if err := database.Connect(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser,
		cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresSSLMode, cfg.PostgresTimeZone); err != nil {
		logger.Log.Fatal("Error connecting to database", zap.Error(err))
	}

	// Run migrations
	if err := database.DB.AutoMigrate(&models.Transaction{}, &models.TransactionItem{}); err != nil {
		logger.Log.Fatal("Migration failed", zap.Error(err))
	}

	// Product name cache (optional)
	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache = database.NewRedisClient(cfg.RedisURL)
	}

	// Kafka producers (optional)
	var eventsProducer kafka.ProducerAPI
	var reconciliationProducer kafka.ProducerAPI
	if cfg.KafkaBrokers != "" {
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		ep := kafka.NewProducer(brokers, cfg.EventsTopic)
		defer ep.Close()
		eventsProducer = ep

		rp := kafka.NewProducer(brokers, cfg.ReconciliationTopic)
		defer rp.Close()
		reconciliationProducer = rp
	}

	// SNS alerting for stuck compensations (optional)
	var snsClient awsx.SNSPublisher
	if cfg.SNSTopicArn != "" {
		awsCfg, err := awsx.LoadAWSConfig(context.Background())
		if err != nil {
			logger.Log.Fatal("failed to load AWS config", zap.Error(err))
		}
		snsClient = awsx.NewSNSClient(awsCfg)
	}

	collabCfg := services.CollaboratorConfig{
		CustomerServiceURL: cfg.CustomerServiceURL,
		ProductServiceURL:  cfg.ProductServiceURL,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRetries:         cfg.MaxRetries,
	}

	repo := repository.NewGormTransactionRepository(database.DB)
	customerClient := services.NewCustomerClient(collabCfg)
	productClient := services.NewProductClient(collabCfg)
	reservations := services.NewReservationManager(productClient, reconciliationProducer, snsClient, cfg.SNSTopicArn, cfg.CompensationBudget)
	txService := services.NewTransactionService(repo, customerClient, productClient, reservations, eventsProducer)
	viewService := services.NewViewService(repo, productClient, cache, 2*time.Second)
	controller := controllers.NewTransactionController(txService, viewService)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(logger.RequestLogger(), gin.Recovery())

	routes.RegisterTransactionRoutes(router, controller)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Log.Info("Transaction Service is running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Log.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Shutdown error", zap.Error(err))
	}
	logger.Log.Info("Server shutdown complete")
}
