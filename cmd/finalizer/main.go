package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/example/gallery-delivery/internal/archive"
	"github.com/example/gallery-delivery/internal/config"
	"github.com/example/gallery-delivery/internal/finalizer"
	"github.com/example/gallery-delivery/internal/infrastructure/kafka"
	"github.com/example/gallery-delivery/internal/infrastructure/storage"
	"github.com/example/gallery-delivery/internal/infrastructure/store"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Finalizer] Invalid configuration: %v", err)
	}
	consumerGroup := "zip-finalizer"

	log.Println("[Finalizer] ========================================")
	log.Println("[Finalizer] Gallery Delivery - Finalize Worker")
	log.Println("[Finalizer] ========================================")
	log.Printf("[Finalizer] Kafka: %v topic=%s group=%s", cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup)
	log.Printf("[Finalizer] Photos bucket: %s", cfg.PhotosBucket)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("[Finalizer] Failed to load AWS config: %v", err)
	}

	var orders store.OrderStore
	switch cfg.StoreBackend {
	case "postgres":
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[Finalizer] Failed to connect to PostgreSQL: %v", err)
		}
		defer db.Close()
		orders = store.NewPostgresOrderStore(db)
	default:
		orders = store.NewDynamoOrderStore(dynamodb.NewFromConfig(awsCfg), cfg.OrdersTable)
	}

	objects := storage.NewS3ObjectStore(s3.NewFromConfig(awsCfg), cfg.PhotosBucket)
	builder := archive.NewBuilder(objects, orders)
	handler := finalizer.NewHandler(orders, builder)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, consumerGroup)
	defer consumer.Close()

	go func() {
		log.Println("[Finalizer] Starting job consumer...")
		if err := consumer.Consume(ctx, handler.HandleMessage); err != nil {
			if ctx.Err() == nil {
				log.Printf("[Finalizer] Consumer error: %v", err)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Finalizer] Shutting down...")
	cancel()
}
