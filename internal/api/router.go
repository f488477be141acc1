package api

import (
	"log"
	"net/http"
	"strings"
)

// NewRouter wires the HTTP surface:
//
//	GET  /galleries/{gallery}/orders
//	GET  /galleries/{gallery}/orders/{order}
//	POST /galleries/{gallery}/orders/{order}/approve
//	POST /galleries/{gallery}/orders/{order}/request-changes
//	POST /galleries/{gallery}/orders/{order}/approve-changes
//	POST /galleries/{gallery}/orders/{order}/start-delivery
//	POST /galleries/{gallery}/orders/{order}/deliver
//	POST /orders/finalize
func NewRouter(handlers *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/orders/finalize", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handlers.Finalize(w, r)
	})

	mux.HandleFunc("/galleries/", func(w http.ResponseWriter, r *http.Request) {
		// /galleries/{gallery}/orders[/{order}[/{action}]]
		parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/galleries/"), "/"), "/")
		if len(parts) < 2 || parts[1] != "orders" {
			http.NotFound(w, r)
			return
		}
		galleryID := parts[0]

		switch {
		case len(parts) == 2 && r.Method == http.MethodGet:
			handlers.ListOrders(w, r, galleryID)
		case len(parts) == 3 && r.Method == http.MethodGet:
			handlers.GetOrder(w, r, galleryID, parts[2])
		case len(parts) == 4 && r.Method == http.MethodPost:
			orderID := parts[2]
			switch parts[3] {
			case "approve":
				handlers.ApproveSelection(w, r, galleryID, orderID)
			case "request-changes":
				handlers.RequestChanges(w, r, galleryID, orderID)
			case "approve-changes":
				handlers.ApproveChangeRequest(w, r, galleryID, orderID)
			case "start-delivery":
				handlers.StartDelivery(w, r, galleryID, orderID)
			case "deliver":
				handlers.Deliver(w, r, galleryID, orderID)
			default:
				http.NotFound(w, r)
			}
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	return withLogging(mux)
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
