package main

import (
	"context"
	"encoding/base64"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/example/gallery-delivery/internal/archive"
	"github.com/example/gallery-delivery/internal/config"
	"github.com/example/gallery-delivery/internal/finalizer"
	"github.com/example/gallery-delivery/internal/infrastructure/storage"
	"github.com/example/gallery-delivery/internal/infrastructure/store"
)

var jobHandler *finalizer.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Lambda Finalizer] Invalid configuration: %v", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("[Lambda Finalizer] Failed to load AWS config: %v", err)
	}

	orders := store.NewDynamoOrderStore(dynamodb.NewFromConfig(awsCfg), cfg.OrdersTable)
	objects := storage.NewS3ObjectStore(s3.NewFromConfig(awsCfg), cfg.PhotosBucket)
	builder := archive.NewBuilder(objects, orders)
	jobHandler = finalizer.NewHandler(orders, builder)

	log.Printf("[Lambda Finalizer] Initialized (table: %s, bucket: %s)", cfg.OrdersTable, cfg.PhotosBucket)
}

// handler consumes finalize jobs from the job topic via the MSK trigger.
// Record values arrive base64-encoded.
func handler(ctx context.Context, kafkaEvent events.KafkaEvent) error {
	for _, records := range kafkaEvent.Records {
		for _, record := range records {
			value, err := base64.StdEncoding.DecodeString(record.Value)
			if err != nil {
				log.Printf("[Lambda Finalizer] Failed to decode record %s/%d: %v",
					record.Topic, record.Offset, err)
				continue
			}

			if err := jobHandler.HandleMessage(ctx, []byte(record.Key), value); err != nil {
				// Build failures are terminal per job; the guard flag is
				// already cleared, so do not fail the whole batch.
				log.Printf("[Lambda Finalizer] Job at %s/%d failed: %v",
					record.Topic, record.Offset, err)
			}
		}
	}
	return nil
}

func main() {
	lambda.Start(handler)
}
