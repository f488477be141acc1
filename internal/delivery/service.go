package delivery

import (
	"context"
	"log"
	"time"

	"github.com/example/gallery-delivery/internal/dispatch"
	"github.com/example/gallery-delivery/internal/domain/order"
	"github.com/example/gallery-delivery/internal/infrastructure/store"
)

// Service performs the delivery-status transitions and coordinates the
// completion trigger: entering DELIVERED sets the guard flag in the same
// write and dispatches the finalize job.
type Service struct {
	orders     store.OrderStore
	dispatcher dispatch.Dispatcher
}

func NewService(orders store.OrderStore, dispatcher dispatch.Dispatcher) *Service {
	return &Service{
		orders:     orders,
		dispatcher: dispatcher,
	}
}

// ApproveSelection records the client approving their selection.
// CLIENT_SELECTING -> CLIENT_APPROVED.
func (s *Service) ApproveSelection(ctx context.Context, galleryID, orderID string) error {
	return s.transition(ctx, galleryID, orderID, order.StatusClientApproved, nil)
}

// RequestChanges records the client asking for changes. Allowed from
// CLIENT_APPROVED and PREPARING_DELIVERY, blocked when the photographer
// disabled change requests or another order in the gallery already has one
// pending.
func (s *Service) RequestChanges(ctx context.Context, galleryID, orderID string) error {
	return s.transition(ctx, galleryID, orderID, order.StatusChangesRequested, func(o *order.Order) error {
		if o.ChangeRequestsBlocked {
			return order.ErrChangeRequestsBlocked
		}
		siblings, err := s.orders.Query(ctx, galleryID)
		if err != nil {
			return err
		}
		for _, sibling := range siblings {
			if sibling.OrderID != orderID && sibling.DeliveryStatus == order.StatusChangesRequested {
				return order.ErrChangeRequestPending
			}
		}
		return nil
	})
}

// ApproveChangeRequest reopens the selection after the photographer accepts
// the change request. CHANGES_REQUESTED -> CLIENT_SELECTING.
func (s *Service) ApproveChangeRequest(ctx context.Context, galleryID, orderID string) error {
	return s.transition(ctx, galleryID, orderID, order.StatusClientSelecting, nil)
}

// StartDelivery records the photographer beginning to upload finished photos.
// CLIENT_APPROVED -> PREPARING_DELIVERY.
func (s *Service) StartDelivery(ctx context.Context, galleryID, orderID string) error {
	return s.transition(ctx, galleryID, orderID, order.StatusPreparingDelivery, nil)
}

// Deliver moves the order to DELIVERED and sets the finalize guard flag in
// the same conditional write, then dispatches the finalize job. Dispatch
// failure is logged, not retried: the change-stream observer is the safety
// net for a delivered order whose event image lacks the flag.
func (s *Service) Deliver(ctx context.Context, galleryID, orderID string) error {
	current, err := s.orders.Get(ctx, galleryID, orderID)
	if err != nil {
		return err
	}

	if err := order.ValidateTransition(current.DeliveryStatus, order.StatusDelivered); err != nil {
		return err
	}

	now := time.Now()
	generating := true
	fields := order.Update{
		DeliveryStatus:          order.StatusDelivered,
		DeliveredAt:             &now,
		FinalZipGenerating:      &generating,
		FinalZipGeneratingSince: &now,
		UpdatedAt:               now,
	}
	if err := s.orders.ConditionalUpdate(ctx, galleryID, orderID, fields, current.DeliveryStatus); err != nil {
		return err
	}

	job := dispatch.NewFinalizeJob(galleryID, orderID)
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		log.Printf("[Delivery] Failed to dispatch finalize job %s for %s/%s: %v",
			job.JobID, galleryID, orderID, err)
	}

	return nil
}

// transition reads the current status immediately before the conditional
// write, so a concurrent change fails the condition instead of being
// overwritten.
func (s *Service) transition(ctx context.Context, galleryID, orderID string, target order.Status, guard func(*order.Order) error) error {
	current, err := s.orders.Get(ctx, galleryID, orderID)
	if err != nil {
		return err
	}

	if err := order.ValidateTransition(current.DeliveryStatus, target); err != nil {
		return err
	}
	if guard != nil {
		if err := guard(current); err != nil {
			return err
		}
	}

	fields := order.Update{
		DeliveryStatus: target,
		UpdatedAt:      time.Now(),
	}
	return s.orders.ConditionalUpdate(ctx, galleryID, orderID, fields, current.DeliveryStatus)
}
