package order

import "time"

// Order is a client's photo selection within a gallery, identified by the
// composite key (GalleryID, OrderID).
type Order struct {
	GalleryID             string   `json:"gallery_id"`
	OrderID               string   `json:"order_id"`
	DeliveryStatus        Status   `json:"delivery_status"`
	SelectedKeys          []string `json:"selected_keys"`
	ChangeRequestsBlocked bool     `json:"change_requests_blocked"`
	FinalZipGenerating    bool     `json:"final_zip_generating"`
	// FinalZipGeneratingSince is set together with FinalZipGenerating in the
	// same write. Present only while a finalize job is believed in flight.
	FinalZipGeneratingSince *time.Time `json:"final_zip_generating_since,omitempty"`
	DeliveredAt             *time.Time `json:"delivered_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// Update carries the fields a conditional write may set. Nil pointers are
// left untouched by the store.
type Update struct {
	DeliveryStatus          Status
	DeliveredAt             *time.Time
	FinalZipGenerating      *bool
	FinalZipGeneratingSince *time.Time
	UpdatedAt               time.Time
}
