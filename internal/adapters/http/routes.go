package web

import "net/http"

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /static/desk.css", handleStylesheet)

	mux.HandleFunc("GET /license-orders/new", handleLicenseOrderNew)
	mux.HandleFunc("GET /license-orders/{id}", handleLicenseOrderPage)
	mux.HandleFunc("POST /license-orders/{id}/{action}", handleLicenseOrderAction)
	mux.HandleFunc("GET /license-orders/{id}/blocked.xlsx", handleBlockedExport)

	mux.HandleFunc("POST /api/license-orders/selection", handleSelectionHandover)
	mux.HandleFunc("POST /api/license-orders", handleAPILicenseOrderOpen)
	mux.HandleFunc("GET /api/license-orders/{id}", handleAPILicenseOrderGet)
	mux.HandleFunc("POST /api/license-orders/{id}/{action}", handleAPILicenseOrderAction)

	mux.HandleFunc("GET /api/outbox", handleOutboxList)
	mux.HandleFunc("POST /api/outbox/{id}/{action}", handleOutboxAction)

	mux.HandleFunc("GET /api/audit", handleAuditList)
}
