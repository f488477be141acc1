package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/example/gallery-delivery/internal/api"
	"github.com/example/gallery-delivery/internal/archive"
	"github.com/example/gallery-delivery/internal/config"
	"github.com/example/gallery-delivery/internal/delivery"
	"github.com/example/gallery-delivery/internal/dispatch"
	"github.com/example/gallery-delivery/internal/infrastructure/kafka"
	"github.com/example/gallery-delivery/internal/infrastructure/storage"
	"github.com/example/gallery-delivery/internal/infrastructure/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] Gallery Delivery - Order API")
	log.Println("[API] ========================================")
	log.Printf("[API] Order store: %s", cfg.StoreBackend)
	log.Printf("[API] Photos bucket: %s", cfg.PhotosBucket)
	log.Printf("[API] Kafka: %v topic=%s", cfg.KafkaBrokers, cfg.KafkaTopic)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("[API] Failed to load AWS config: %v", err)
	}

	var orders store.OrderStore
	switch cfg.StoreBackend {
	case "postgres":
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()
		orders = store.NewPostgresOrderStore(db)
		log.Println("[API] Connected to PostgreSQL")
	default:
		orders = store.NewDynamoOrderStore(dynamodb.NewFromConfig(awsCfg), cfg.OrdersTable)
		log.Printf("[API] Using DynamoDB table %s", cfg.OrdersTable)
	}

	objects := storage.NewS3ObjectStore(s3.NewFromConfig(awsCfg), cfg.PhotosBucket)

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()
	dispatcher := dispatch.NewKafkaDispatcher(producer)

	deliverySvc := delivery.NewService(orders, dispatcher)
	builder := archive.NewBuilder(objects, orders)

	handlers := api.NewHandlers(deliverySvc, orders, builder)
	router := api.NewRouter(handlers)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("[API] Server started on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
}
