package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/gallery-delivery/internal/archive"
	"github.com/example/gallery-delivery/internal/delivery"
	"github.com/example/gallery-delivery/internal/domain/order"
	"github.com/example/gallery-delivery/internal/infrastructure/store"
)

// Error kinds surfaced in the "error" field of failure responses.
const (
	errBadRequest        = "BAD_REQUEST"
	errNotFound          = "NOT_FOUND"
	errInvalidTransition = "INVALID_TRANSITION"
	errChangesBlocked    = "CHANGE_REQUESTS_BLOCKED"
	errChangePending     = "CHANGE_REQUEST_PENDING"
	errConflict          = "CONFLICT"
	errEmptyArchive      = "EMPTY_ARCHIVE"
	errCorruptArchive    = "CORRUPT_ARCHIVE"
	errBuildFailed       = "BUILD_FAILED"
	errInternal          = "INTERNAL"
)

type Handlers struct {
	deliverySvc *delivery.Service
	orders      store.OrderStore
	builder     *archive.Builder
}

func NewHandlers(deliverySvc *delivery.Service, orders store.OrderStore, builder *archive.Builder) *Handlers {
	return &Handlers{
		deliverySvc: deliverySvc,
		orders:      orders,
		builder:     builder,
	}
}

// Order transition handlers

func (h *Handlers) ApproveSelection(w http.ResponseWriter, r *http.Request, galleryID, orderID string) {
	h.runTransition(w, r, galleryID, orderID, h.deliverySvc.ApproveSelection, "Selection approved")
}

func (h *Handlers) RequestChanges(w http.ResponseWriter, r *http.Request, galleryID, orderID string) {
	h.runTransition(w, r, galleryID, orderID, h.deliverySvc.RequestChanges, "Changes requested")
}

func (h *Handlers) ApproveChangeRequest(w http.ResponseWriter, r *http.Request, galleryID, orderID string) {
	h.runTransition(w, r, galleryID, orderID, h.deliverySvc.ApproveChangeRequest, "Change request approved, selection reopened")
}

func (h *Handlers) StartDelivery(w http.ResponseWriter, r *http.Request, galleryID, orderID string) {
	h.runTransition(w, r, galleryID, orderID, h.deliverySvc.StartDelivery, "Delivery preparation started")
}

func (h *Handlers) Deliver(w http.ResponseWriter, r *http.Request, galleryID, orderID string) {
	h.runTransition(w, r, galleryID, orderID, h.deliverySvc.Deliver, "Order delivered, final archive is being prepared")
}

type transitionFunc func(ctx context.Context, galleryID, orderID string) error

func (h *Handlers) runTransition(w http.ResponseWriter, r *http.Request, galleryID, orderID string,
	op transitionFunc, message string) {
	if err := op(r.Context(), galleryID, orderID); err != nil {
		h.respondTransitionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"galleryId": galleryID,
		"orderId":   orderID,
		"message":   message,
	})
}

// Order read handlers

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request, galleryID, orderID string) {
	o, err := h.orders.Get(r.Context(), galleryID, orderID)
	if err != nil {
		h.respondTransitionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request, galleryID string) {
	orders, err := h.orders.Query(r.Context(), galleryID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errInternal, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// Archive build entrypoint

type finalizeRequest struct {
	GalleryID string   `json:"galleryId"`
	OrderID   string   `json:"orderId"`
	Keys      []string `json:"keys"`
}

type finalizeResponse struct {
	ZipKey    string `json:"zipKey"`
	GalleryID string `json:"galleryId"`
	OrderID   string `json:"orderId"`
	Message   string `json:"message"`
}

// Finalize builds and uploads the order's archive synchronously.
func (h *Handlers) Finalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errBadRequest, "malformed payload")
		return
	}
	if req.GalleryID == "" || req.OrderID == "" || len(req.Keys) == 0 {
		respondError(w, http.StatusBadRequest, errBadRequest, "galleryId, orderId and keys are required")
		return
	}

	result, err := h.builder.Build(r.Context(), req.GalleryID, req.OrderID, req.Keys)
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrEmptyArchive):
			respondError(w, http.StatusInternalServerError, errEmptyArchive, err.Error())
		case errors.Is(err, archive.ErrCorruptArchive):
			respondError(w, http.StatusInternalServerError, errCorruptArchive, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, errBuildFailed, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, finalizeResponse{
		ZipKey:    result.ZipKey,
		GalleryID: req.GalleryID,
		OrderID:   req.OrderID,
		Message:   "Archive built and uploaded",
	})
}

// respondTransitionError maps domain errors to the HTTP envelope.
func (h *Handlers) respondTransitionError(w http.ResponseWriter, err error) {
	var invalid *order.InvalidTransitionError
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, errNotFound, err.Error())
	case errors.As(err, &invalid):
		respondError(w, http.StatusConflict, errInvalidTransition, err.Error())
	case errors.Is(err, order.ErrChangeRequestsBlocked):
		respondError(w, http.StatusConflict, errChangesBlocked, err.Error())
	case errors.Is(err, order.ErrChangeRequestPending):
		respondError(w, http.StatusConflict, errChangePending, err.Error())
	case errors.Is(err, store.ErrConditionFailed):
		respondError(w, http.StatusConflict, errConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, errInternal, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, map[string]string{
		"error":   kind,
		"message": message,
	})
}
