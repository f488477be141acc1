package finalizer

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/example/gallery-delivery/internal/archive"
	"github.com/example/gallery-delivery/internal/dispatch"
	"github.com/example/gallery-delivery/internal/domain/order"
	"github.com/example/gallery-delivery/internal/infrastructure/store"
)

// Handler consumes finalize-job messages and runs the archive builder.
type Handler struct {
	orders  store.OrderStore
	builder *archive.Builder
}

func NewHandler(orders store.OrderStore, builder *archive.Builder) *Handler {
	return &Handler{
		orders:  orders,
		builder: builder,
	}
}

// HandleMessage processes one dispatched job. Matches kafka.MessageHandler.
func (h *Handler) HandleMessage(ctx context.Context, key, value []byte) error {
	var job dispatch.FinalizeJob
	if err := json.Unmarshal(value, &job); err != nil {
		log.Printf("[Finalizer] Failed to unmarshal job: %v", err)
		return err
	}
	return h.Run(ctx, job)
}

// Run loads the order and builds its archive. A vanished order is logged and
// dropped; build failures propagate so the caller can report them.
func (h *Handler) Run(ctx context.Context, job dispatch.FinalizeJob) error {
	if job.GalleryID == "" || job.OrderID == "" {
		log.Printf("[Finalizer] Dropping malformed job %q", job.JobID)
		return errors.New("malformed finalize job: missing gallery_id or order_id")
	}

	log.Printf("[Finalizer] Running job %s for %s/%s", job.JobID, job.GalleryID, job.OrderID)

	o, err := h.orders.Get(ctx, job.GalleryID, job.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			log.Printf("[Finalizer] Order %s/%s no longer exists, dropping job %s",
				job.GalleryID, job.OrderID, job.JobID)
			return nil
		}
		return err
	}

	result, err := h.builder.Build(ctx, job.GalleryID, job.OrderID, o.SelectedKeys)
	if err != nil {
		log.Printf("[Finalizer] Job %s failed: %v", job.JobID, err)
		return err
	}

	log.Printf("[Finalizer] Job %s done: %s (%d files)", job.JobID, result.ZipKey, result.FileCount)
	return nil
}
