package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatchmocks "github.com/example/gallery-delivery/internal/dispatch/mocks"
	"github.com/example/gallery-delivery/internal/domain/order"
	"github.com/example/gallery-delivery/internal/infrastructure/store"
	storemocks "github.com/example/gallery-delivery/internal/infrastructure/store/mocks"
)

func newTestService() (*Service, *storemocks.MockOrderStore, *dispatchmocks.MockDispatcher) {
	orders := storemocks.NewMockOrderStore()
	dispatcher := dispatchmocks.NewMockDispatcher()
	return NewService(orders, dispatcher), orders, dispatcher
}

func seedOrder(orders *storemocks.MockOrderStore, status order.Status) {
	orders.Put(&order.Order{
		GalleryID:      "gal-1",
		OrderID:        "ord-1",
		DeliveryStatus: status,
		SelectedKeys:   []string{"a.jpg", "b.jpg"},
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	})
}

// ============================================
// Deliver (completion trigger coordinator)
// ============================================

func TestService_Deliver_SetsStatusAndGuardFlagInOneWrite(t *testing.T) {
	service, orders, dispatcher := newTestService()
	seedOrder(orders, order.StatusPreparingDelivery)

	err := service.Deliver(context.Background(), "gal-1", "ord-1")
	require.NoError(t, err)

	// One conditional write carrying status, flag and timestamp together.
	require.Len(t, orders.UpdateCalls, 1)
	call := orders.UpdateCalls[0]
	assert.Equal(t, order.StatusDelivered, call.Fields.DeliveryStatus)
	assert.Equal(t, order.StatusPreparingDelivery, call.ExpectedStatus)
	require.NotNil(t, call.Fields.FinalZipGenerating)
	assert.True(t, *call.Fields.FinalZipGenerating)
	require.NotNil(t, call.Fields.FinalZipGeneratingSince)
	require.NotNil(t, call.Fields.DeliveredAt)

	updated, err := orders.Get(context.Background(), "gal-1", "ord-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, updated.DeliveryStatus)
	assert.True(t, updated.FinalZipGenerating)

	jobs := dispatcher.DispatchedJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "gal-1", jobs[0].GalleryID)
	assert.Equal(t, "ord-1", jobs[0].OrderID)
	assert.NotEmpty(t, jobs[0].JobID)
}

func TestService_Deliver_InvalidFromClientSelecting(t *testing.T) {
	service, orders, dispatcher := newTestService()
	seedOrder(orders, order.StatusClientSelecting)

	err := service.Deliver(context.Background(), "gal-1", "ord-1")

	var invalid *order.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, orders.UpdateCalls)
	assert.Empty(t, dispatcher.DispatchedJobs())
}

func TestService_Deliver_OrderNotFound(t *testing.T) {
	service, _, dispatcher := newTestService()

	err := service.Deliver(context.Background(), "gal-1", "missing")

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.Empty(t, dispatcher.DispatchedJobs())
}

func TestService_Deliver_DispatchFailureIsNotFatal(t *testing.T) {
	service, orders, dispatcher := newTestService()
	seedOrder(orders, order.StatusPreparingDelivery)
	dispatcher.DispatchErr = assert.AnError

	// The observer is the safety net; the write already happened.
	err := service.Deliver(context.Background(), "gal-1", "ord-1")
	require.NoError(t, err)

	updated, err := orders.Get(context.Background(), "gal-1", "ord-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, updated.DeliveryStatus)
}

func TestService_Deliver_StaleStatusFailsCondition(t *testing.T) {
	service, orders, _ := newTestService()
	seedOrder(orders, order.StatusPreparingDelivery)
	orders.UpdateErr = store.ErrConditionFailed

	err := service.Deliver(context.Background(), "gal-1", "ord-1")

	assert.ErrorIs(t, err, store.ErrConditionFailed)
}

// ============================================
// Client / photographer transitions
// ============================================

func TestService_ApproveSelection(t *testing.T) {
	service, orders, _ := newTestService()
	seedOrder(orders, order.StatusClientSelecting)

	err := service.ApproveSelection(context.Background(), "gal-1", "ord-1")
	require.NoError(t, err)

	updated, _ := orders.Get(context.Background(), "gal-1", "ord-1")
	assert.Equal(t, order.StatusClientApproved, updated.DeliveryStatus)
}

func TestService_StartDelivery(t *testing.T) {
	service, orders, _ := newTestService()
	seedOrder(orders, order.StatusClientApproved)

	err := service.StartDelivery(context.Background(), "gal-1", "ord-1")
	require.NoError(t, err)

	updated, _ := orders.Get(context.Background(), "gal-1", "ord-1")
	assert.Equal(t, order.StatusPreparingDelivery, updated.DeliveryStatus)
}

func TestService_RequestChanges_FromClientApproved(t *testing.T) {
	service, orders, _ := newTestService()
	seedOrder(orders, order.StatusClientApproved)

	err := service.RequestChanges(context.Background(), "gal-1", "ord-1")
	require.NoError(t, err)

	updated, _ := orders.Get(context.Background(), "gal-1", "ord-1")
	assert.Equal(t, order.StatusChangesRequested, updated.DeliveryStatus)
}

func TestService_RequestChanges_FromPreparingDelivery(t *testing.T) {
	service, orders, _ := newTestService()
	seedOrder(orders, order.StatusPreparingDelivery)

	err := service.RequestChanges(context.Background(), "gal-1", "ord-1")
	require.NoError(t, err)
}

func TestService_RequestChanges_Blocked(t *testing.T) {
	service, orders, _ := newTestService()
	orders.Put(&order.Order{
		GalleryID:             "gal-1",
		OrderID:               "ord-1",
		DeliveryStatus:        order.StatusClientApproved,
		ChangeRequestsBlocked: true,
	})

	err := service.RequestChanges(context.Background(), "gal-1", "ord-1")

	assert.ErrorIs(t, err, order.ErrChangeRequestsBlocked)
	assert.Empty(t, orders.UpdateCalls)
}

func TestService_RequestChanges_SiblingAlreadyPending(t *testing.T) {
	service, orders, _ := newTestService()
	seedOrder(orders, order.StatusClientApproved)
	orders.Put(&order.Order{
		GalleryID:      "gal-1",
		OrderID:        "ord-2",
		DeliveryStatus: order.StatusChangesRequested,
	})

	err := service.RequestChanges(context.Background(), "gal-1", "ord-1")

	assert.ErrorIs(t, err, order.ErrChangeRequestPending)
	assert.Empty(t, orders.UpdateCalls)
}

func TestService_ApproveChangeRequest_ReopensSelection(t *testing.T) {
	service, orders, _ := newTestService()
	seedOrder(orders, order.StatusChangesRequested)

	err := service.ApproveChangeRequest(context.Background(), "gal-1", "ord-1")
	require.NoError(t, err)

	updated, _ := orders.Get(context.Background(), "gal-1", "ord-1")
	assert.Equal(t, order.StatusClientSelecting, updated.DeliveryStatus)
	// Selection reopens but the selected keys survive.
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, updated.SelectedKeys)
}
