package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/example/gallery-delivery/internal/dispatch"
	"github.com/example/gallery-delivery/internal/infrastructure/kafka"
	"github.com/example/gallery-delivery/internal/infrastructure/streams"
	"github.com/example/gallery-delivery/internal/observer"
)

var obs *observer.Observer

func init() {
	brokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	topic := getEnv("KAFKA_TOPIC", "finalize-jobs")

	producer := kafka.NewProducer(brokers, topic)
	obs = observer.NewObserver(dispatch.NewKafkaDispatcher(producer))

	log.Printf("[Lambda Observer] Initialized (topic: %s)", topic)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// handler consumes order-table change records delivered through Kinesis and
// lets the observer decide, per record, whether to dispatch a finalize job.
func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	log.Printf("[Lambda Observer] Received %d records", len(kinesisEvent.Records))

	var batchItemFailures []events.KinesisBatchItemFailure

	for _, record := range kinesisEvent.Records {
		change, err := streams.ConvertFromKinesisRecord(record)
		if err != nil {
			log.Printf("[Lambda Observer] Failed to convert record %s: %v", record.EventID, err)
			batchItemFailures = append(batchItemFailures, events.KinesisBatchItemFailure{
				ItemIdentifier: record.Kinesis.SequenceNumber,
			})
			continue
		}

		// Skip REMOVE events and other non-change records.
		if change == nil {
			continue
		}

		if err := obs.HandleChange(ctx, change); err != nil {
			log.Printf("[Lambda Observer] Failed to process record %s: %v", record.EventID, err)
			batchItemFailures = append(batchItemFailures, events.KinesisBatchItemFailure{
				ItemIdentifier: record.Kinesis.SequenceNumber,
			})
			continue
		}
	}

	successCount := len(kinesisEvent.Records) - len(batchItemFailures)
	log.Printf("[Lambda Observer] Processed %d/%d records successfully", successCount, len(kinesisEvent.Records))

	return events.KinesisEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

func main() {
	lambda.Start(handler)
}
