package order

import (
	"errors"
	"fmt"
)

// Status is the delivery lifecycle state of an order.
type Status string

const (
	StatusClientSelecting   Status = "CLIENT_SELECTING"
	StatusClientApproved    Status = "CLIENT_APPROVED"
	StatusChangesRequested  Status = "CHANGES_REQUESTED"
	StatusPreparingDelivery Status = "PREPARING_DELIVERY"
	StatusDelivered         Status = "DELIVERED"
)

var (
	ErrOrderNotFound = errors.New("order not found")

	// ErrChangeRequestsBlocked rejects a change request when the photographer
	// disabled further change requests on the order.
	ErrChangeRequestsBlocked = errors.New("change requests are blocked for this order")

	// ErrChangeRequestPending rejects a change request while another order in
	// the same gallery is already in CHANGES_REQUESTED.
	ErrChangeRequestPending = errors.New("another change request is pending in this gallery")
)

// validTransitions defines the allowed delivery-status edges. DELIVERED is
// terminal for this subsystem.
var validTransitions = map[Status][]Status{
	StatusClientSelecting:   {StatusClientApproved},
	StatusClientApproved:    {StatusChangesRequested, StatusPreparingDelivery},
	StatusChangesRequested:  {StatusClientSelecting},
	StatusPreparingDelivery: {StatusChangesRequested, StatusDelivered},
	StatusDelivered:         {},
}

// InvalidTransitionError identifies an attempted delivery-status edge that is
// not in the transition table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot move from %s to %s", e.From, e.To)
}

// CanTransitionTo reports whether the order may move to the target status.
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.DeliveryStatus]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// ValidateTransition returns an InvalidTransitionError when the edge
// current -> target is not allowed.
func ValidateTransition(current, target Status) error {
	allowed, exists := validTransitions[current]
	if exists {
		for _, s := range allowed {
			if s == target {
				return nil
			}
		}
	}
	return &InvalidTransitionError{From: current, To: target}
}

// Statuses lists every delivery status, for validation and tests.
func Statuses() []Status {
	return []Status{
		StatusClientSelecting,
		StatusClientApproved,
		StatusChangesRequested,
		StatusPreparingDelivery,
		StatusDelivered,
	}
}
