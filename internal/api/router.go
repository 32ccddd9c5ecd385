package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/payrecon/reconciler/internal/ingestion"
	"github.com/payrecon/reconciler/internal/reconciliation"
	"github.com/payrecon/reconciler/internal/repository"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	fileRepo *repository.FileRepo,
	discRepo *repository.DiscrepancyRepo,
	ingestionSvc *ingestion.Service,
	reconSvc *reconciliation.Service,
) http.Handler {
	h := &Handlers{
		fileRepo:     fileRepo,
		discRepo:     discRepo,
		ingestionSvc: ingestionSvc,
		reconSvc:     reconSvc,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Ingestion and runs.
		r.Post("/files/ingest", h.IngestFile)
		r.Get("/files", h.ListFiles)
		r.Post("/process", h.Process)
		r.Post("/reset", h.Reset)
		r.Get("/status", h.GetStatus)

		// Snapshot reads.
		r.Group(func(r chi.Router) {
			r.Use(h.requireSnapshot)

			r.Get("/summary", h.GetSummary)
			r.Get("/installments", h.ListInstallments)
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{ref}", h.GetOrder)
			r.Get("/transactions", h.ListTransactions)
			r.Get("/orphans", h.ListOrphans)
			r.Get("/advances", h.ListAdvances)
			r.Get("/movements", h.GetMovements)
			r.Get("/movements/validation", h.GetBalanceValidation)
			r.Get("/cashflow/daily", h.GetDailyCashflow)
			r.Get("/cashflow/monthly", h.GetMonthlyCashflow)
			r.Get("/cashflow/upcoming", h.GetUpcoming)
		})

		// Discrepancies.
		r.Get("/discrepancies", h.ListDiscrepancies)
		r.Get("/discrepancies/summary", h.GetDiscrepancySummary)
	})

	return r
}
