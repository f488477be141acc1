package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/gallery-delivery/internal/archive"
	"github.com/example/gallery-delivery/internal/delivery"
	dispatchmocks "github.com/example/gallery-delivery/internal/dispatch/mocks"
	"github.com/example/gallery-delivery/internal/domain/order"
	storagemocks "github.com/example/gallery-delivery/internal/infrastructure/storage/mocks"
	storemocks "github.com/example/gallery-delivery/internal/infrastructure/store/mocks"
)

type testEnv struct {
	router     http.Handler
	orders     *storemocks.MockOrderStore
	objects    *storagemocks.MockObjectStore
	dispatcher *dispatchmocks.MockDispatcher
}

func newTestEnv() *testEnv {
	orders := storemocks.NewMockOrderStore()
	objects := storagemocks.NewMockObjectStore()
	dispatcher := dispatchmocks.NewMockDispatcher()

	deliverySvc := delivery.NewService(orders, dispatcher)
	builder := archive.NewBuilder(objects, orders)
	handlers := NewHandlers(deliverySvc, orders, builder)

	return &testEnv{
		router:     NewRouter(handlers),
		orders:     orders,
		objects:    objects,
		dispatcher: dispatcher,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

// ============================================
// Finalize endpoint
// ============================================

func TestFinalize_Success(t *testing.T) {
	env := newTestEnv()
	env.objects.Seed(archive.AssetKey("gal-1", "a.jpg"), []byte("photo bytes"))

	rec := env.do(t, http.MethodPost, "/orders/finalize", map[string]any{
		"galleryId": "gal-1",
		"orderId":   "ord-1",
		"keys":      []string{"a.jpg"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "galleries/gal-1/zips/ord-1.zip", body["zipKey"])
	assert.Equal(t, "gal-1", body["galleryId"])
	assert.Equal(t, "ord-1", body["orderId"])
	assert.NotEmpty(t, body["message"])
}

func TestFinalize_MissingFields(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name string
		body map[string]any
	}{
		{"no galleryId", map[string]any{"orderId": "ord-1", "keys": []string{"a.jpg"}}},
		{"no orderId", map[string]any{"galleryId": "gal-1", "keys": []string{"a.jpg"}}},
		{"no keys", map[string]any{"galleryId": "gal-1", "orderId": "ord-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/orders/finalize", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "BAD_REQUEST", decodeBody(t, rec)["error"])
		})
	}
}

func TestFinalize_MalformedPayload(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodPost, "/orders/finalize", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFinalize_AllAssetsMissing_500EmptyArchive(t *testing.T) {
	env := newTestEnv()
	env.orders.Put(&order.Order{
		GalleryID:          "gal-1",
		OrderID:            "ord-1",
		DeliveryStatus:     order.StatusDelivered,
		FinalZipGenerating: true,
	})

	rec := env.do(t, http.MethodPost, "/orders/finalize", map[string]any{
		"galleryId": "gal-1",
		"orderId":   "ord-1",
		"keys":      []string{"only.jpg"},
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "EMPTY_ARCHIVE", body["error"])
	assert.NotEmpty(t, body["message"])

	// The guard flag must be gone even though the build failed.
	updated, err := env.orders.Get(context.Background(), "gal-1", "ord-1")
	require.NoError(t, err)
	assert.False(t, updated.FinalZipGenerating)
}

// ============================================
// Transition endpoints
// ============================================

func TestDeliverEndpoint_Success(t *testing.T) {
	env := newTestEnv()
	env.orders.Put(&order.Order{
		GalleryID:      "gal-1",
		OrderID:        "ord-1",
		DeliveryStatus: order.StatusPreparingDelivery,
	})

	rec := env.do(t, http.MethodPost, "/galleries/gal-1/orders/ord-1/deliver", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, env.dispatcher.DispatchedJobs(), 1)
}

func TestDeliverEndpoint_InvalidTransition(t *testing.T) {
	env := newTestEnv()
	env.orders.Put(&order.Order{
		GalleryID:      "gal-1",
		OrderID:        "ord-1",
		DeliveryStatus: order.StatusClientSelecting,
	})

	rec := env.do(t, http.MethodPost, "/galleries/gal-1/orders/ord-1/deliver", nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decodeBody(t, rec)["error"])
}

func TestTransitionEndpoint_OrderNotFound(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/galleries/gal-1/orders/nope/approve", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeBody(t, rec)["error"])
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv()
	env.orders.Put(&order.Order{
		GalleryID:      "gal-1",
		OrderID:        "ord-1",
		DeliveryStatus: order.StatusClientApproved,
	})

	rec := env.do(t, http.MethodGet, "/galleries/gal-1/orders/ord-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CLIENT_APPROVED", decodeBody(t, rec)["delivery_status"])
}

func TestListOrders_EmptyGallery(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/galleries/gal-1/orders", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestUnknownAction(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/galleries/gal-1/orders/ord-1/ship", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
