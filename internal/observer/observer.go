package observer

import (
	"context"
	"log"

	"github.com/example/gallery-delivery/internal/dispatch"
	"github.com/example/gallery-delivery/internal/domain/order"
	"github.com/example/gallery-delivery/internal/infrastructure/streams"
)

// Observer is the fallback dispatcher: it watches order record changes and
// dispatches a finalize job for every transition into DELIVERED that the
// explicit path did not already cover.
type Observer struct {
	dispatcher dispatch.Dispatcher
}

func NewObserver(dispatcher dispatch.Dispatcher) *Observer {
	return &Observer{dispatcher: dispatcher}
}

// HandleChange processes one change event. The guard flag is inspected on the
// event's own new image, never by re-reading the store: the explicit path
// sets status and flag in one write, so any image showing DELIVERED without
// the flag came from a path that did not dispatch.
func (ob *Observer) HandleChange(ctx context.Context, change *streams.OrderChange) error {
	if change == nil || change.New == nil {
		return nil
	}

	if change.New.DeliveryStatus != order.StatusDelivered {
		return nil
	}
	// Ignore re-saves of an already delivered order.
	if change.Old != nil && change.Old.DeliveryStatus == order.StatusDelivered {
		return nil
	}

	if change.New.FinalZipGenerating {
		log.Printf("[Observer] Finalize already in flight for %s/%s, skipping",
			change.New.GalleryID, change.New.OrderID)
		return nil
	}

	job := dispatch.NewFinalizeJob(change.New.GalleryID, change.New.OrderID)
	log.Printf("[Observer] Dispatching finalize job %s for %s/%s",
		job.JobID, change.New.GalleryID, change.New.OrderID)
	return ob.dispatcher.Dispatch(ctx, job)
}
