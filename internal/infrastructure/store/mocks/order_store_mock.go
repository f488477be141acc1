package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/example/gallery-delivery/internal/domain/order"
	"github.com/example/gallery-delivery/internal/infrastructure/store"
)

// MockOrderStore is an in-memory implementation of store.OrderStore for
// testing, recording calls and supporting injected failures.
type MockOrderStore struct {
	mu     sync.RWMutex
	orders map[string]*order.Order

	// For tracking calls in tests
	UpdateCalls []UpdateCall
	ClearCalls  []ClearCall
	UpdateErr   error
	ClearErr    error
	QueryErr    error
}

// UpdateCall records parameters passed to ConditionalUpdate.
type UpdateCall struct {
	GalleryID      string
	OrderID        string
	Fields         order.Update
	ExpectedStatus order.Status
}

// ClearCall records parameters passed to ClearFinalizeFlag.
type ClearCall struct {
	GalleryID string
	OrderID   string
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{
		orders: make(map[string]*order.Order),
	}
}

func key(galleryID, orderID string) string {
	return galleryID + "/" + orderID
}

// Put seeds an order directly for testing.
func (m *MockOrderStore) Put(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *o
	m.orders[key(o.GalleryID, o.OrderID)] = &copied
}

func (m *MockOrderStore) Get(ctx context.Context, galleryID, orderID string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[key(galleryID, orderID)]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *MockOrderStore) ConditionalUpdate(ctx context.Context, galleryID, orderID string, fields order.Update, expectedStatus order.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls = append(m.UpdateCalls, UpdateCall{
		GalleryID:      galleryID,
		OrderID:        orderID,
		Fields:         fields,
		ExpectedStatus: expectedStatus,
	})

	if m.UpdateErr != nil {
		return m.UpdateErr
	}

	o, ok := m.orders[key(galleryID, orderID)]
	if !ok {
		return order.ErrOrderNotFound
	}
	if o.DeliveryStatus != expectedStatus {
		return store.ErrConditionFailed
	}

	o.DeliveryStatus = fields.DeliveryStatus
	if fields.DeliveredAt != nil {
		t := *fields.DeliveredAt
		o.DeliveredAt = &t
	}
	if fields.FinalZipGenerating != nil {
		o.FinalZipGenerating = *fields.FinalZipGenerating
	}
	if fields.FinalZipGeneratingSince != nil {
		t := *fields.FinalZipGeneratingSince
		o.FinalZipGeneratingSince = &t
	}
	if fields.UpdatedAt.IsZero() {
		o.UpdatedAt = time.Now()
	} else {
		o.UpdatedAt = fields.UpdatedAt
	}

	return nil
}

func (m *MockOrderStore) Query(ctx context.Context, galleryID string) ([]order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	var orders []order.Order
	for _, o := range m.orders {
		if o.GalleryID == galleryID {
			orders = append(orders, *o)
		}
	}
	return orders, nil
}

func (m *MockOrderStore) ClearFinalizeFlag(ctx context.Context, galleryID, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ClearCalls = append(m.ClearCalls, ClearCall{GalleryID: galleryID, OrderID: orderID})

	if m.ClearErr != nil {
		return m.ClearErr
	}

	if o, ok := m.orders[key(galleryID, orderID)]; ok {
		o.FinalZipGenerating = false
		o.FinalZipGeneratingSince = nil
		o.UpdatedAt = time.Now()
	}
	return nil
}
