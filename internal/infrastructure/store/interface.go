package store

import (
	"context"
	"errors"

	"github.com/example/gallery-delivery/internal/domain/order"
)

// ErrConditionFailed is returned by ConditionalUpdate when the persisted
// delivery status no longer matches the expected one.
var ErrConditionFailed = errors.New("conditional update failed: status changed concurrently")

// OrderStore is the typed persistence port for order records.
type OrderStore interface {
	// Get returns the order or order.ErrOrderNotFound.
	Get(ctx context.Context, galleryID, orderID string) (*order.Order, error)

	// ConditionalUpdate applies fields only while the persisted delivery
	// status equals expectedStatus, as a single write. Status and guard flag
	// become visible together or not at all.
	ConditionalUpdate(ctx context.Context, galleryID, orderID string, fields order.Update, expectedStatus order.Status) error

	// Query returns all orders of a gallery.
	Query(ctx context.Context, galleryID string) ([]order.Order, error)

	// ClearFinalizeFlag unconditionally removes FinalZipGenerating and
	// FinalZipGeneratingSince. There is no ownership token: whichever job
	// instance finishes last clears the flag. Best-effort, not a lock.
	ClearFinalizeFlag(ctx context.Context, galleryID, orderID string) error
}
