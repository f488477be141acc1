package dispatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/example/gallery-delivery/internal/infrastructure/kafka"
)

// FinalizeJob is the payload of one finalize-job dispatch. The worker resolves
// the selected keys from the order record; the payload stays minimal so both
// trigger paths produce identical messages.
type FinalizeJob struct {
	JobID     string `json:"job_id"`
	GalleryID string `json:"gallery_id"`
	OrderID   string `json:"order_id"`
}

// NewFinalizeJob builds a job payload with a fresh job id.
func NewFinalizeJob(galleryID, orderID string) FinalizeJob {
	return FinalizeJob{
		JobID:     uuid.New().String(),
		GalleryID: galleryID,
		OrderID:   orderID,
	}
}

// Dispatcher hands a finalize job to the asynchronous worker. Fire-and-forget:
// no result is awaited, callers only learn whether the handoff succeeded.
type Dispatcher interface {
	Dispatch(ctx context.Context, job FinalizeJob) error
}

// KafkaDispatcher publishes finalize jobs to the job topic, keyed by order so
// jobs for one order stay on one partition.
type KafkaDispatcher struct {
	producer *kafka.Producer
}

func NewKafkaDispatcher(producer *kafka.Producer) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, job FinalizeJob) error {
	return d.producer.Publish(ctx, job.GalleryID+"/"+job.OrderID, job)
}
