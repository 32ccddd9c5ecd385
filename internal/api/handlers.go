package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/ingestion"
	"github.com/payrecon/reconciler/internal/reconciliation"
	"github.com/payrecon/reconciler/internal/repository"
)

const maxUploadSize = 32 << 20

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	fileRepo     *repository.FileRepo
	discRepo     *repository.DiscrepancyRepo
	ingestionSvc *ingestion.Service
	reconSvc     *reconciliation.Service
}

type snapshotKey struct{}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithField("component", "api").WithError(err).Error("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseDate reads an optional YYYY-MM-DD query value.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// requireSnapshot answers 503 until a run has published a snapshot.
func (h *Handlers) requireSnapshot(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, err := h.reconSvc.Snapshot()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "no reconciliation available, ingest files and POST /api/v1/process")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), snapshotKey{}, snap)))
	})
}

func snapshotFrom(r *http.Request) *reconciliation.Snapshot {
	snap, _ := r.Context().Value(snapshotKey{}).(*reconciliation.Snapshot)
	return snap
}

// --- ingestion and runs ---

func (h *Handlers) IngestFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	ledger := domain.Ledger(strings.ToLower(strings.TrimSpace(r.FormValue("ledger"))))
	if !ledger.Valid() {
		writeError(w, http.StatusBadRequest, "ledger must be settlement or releases")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read file: "+err.Error())
		return
	}

	result, err := h.ingestionSvc.IngestFile(r.Context(), ledger, header.Filename, data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.fileRepo.List(domain.Ledger(r.URL.Query().Get("ledger")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []domain.IngestedFile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "total": len(files)})
}

func (h *Handlers) Process(w http.ResponseWriter, r *http.Request) {
	snap, err := h.reconSvc.Run(r.Context())
	switch {
	case errors.Is(err, reconciliation.ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, reconciliation.ErrNoSourceData):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, snap.Overview())
}

func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.reconSvc.Reset(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, reconciliation.ErrRunInProgress) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	files, err := h.fileRepo.List("")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	perLedger := map[domain.Ledger]int{domain.LedgerSettlement: 0, domain.LedgerReleases: 0}
	for _, f := range files {
		perLedger[f.Ledger]++
	}

	status := map[string]any{
		"running": h.reconSvc.Running(),
		"files":   perLedger,
		"ready":   false,
	}
	if snap, err := h.reconSvc.Snapshot(); err == nil {
		status["ready"] = true
		status["metadata"] = snap.Metadata
	}
	writeJSON(w, http.StatusOK, status)
}

// --- snapshot reads ---

func (h *Handlers) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotFrom(r).Overview())
}

func (h *Handlers) ListInstallments(w http.ResponseWriter, r *http.Request) {
	var statuses []domain.InstallmentStatus
	for _, s := range r.URL.Query()["status"] {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				statuses = append(statuses, domain.InstallmentStatus(strings.ToLower(part)))
			}
		}
	}

	items := snapshotFrom(r).Installments(statuses...)
	writeJSON(w, http.StatusOK, map[string]any{
		"installments": items,
		"total":        len(items),
	})
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(strings.ToUpper(r.URL.Query().Get("status")))
	orders := snapshotFrom(r).Orders(status)
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"total":  len(orders),
	})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	report, ok := snapshotFrom(r).Order(ref)
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	discs, _, err := h.discRepo.List(repository.DiscrepancyFilter{OrderRef: ref, Limit: 500})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if discs == nil {
		discs = []domain.Discrepancy{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order":         report.Balance,
		"installments":  report.Installments,
		"transactions":  report.Transactions,
		"discrepancies": discs,
	})
}

func (h *Handlers) ListTransactions(w http.ResponseWriter, r *http.Request) {
	snap := snapshotFrom(r)
	class := reconciliation.TransactionClass(strings.ToLower(r.URL.Query().Get("status")))
	txns := snap.Transactions(class)
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"total":        len(txns),
		"counts":       snap.TransactionCounts(),
	})
}

func (h *Handlers) ListOrphans(w http.ResponseWriter, r *http.Request) {
	orphans := snapshotFrom(r).OrphanPayments()
	total := decimal.Zero
	for _, ev := range orphans {
		total = total.Add(ev.NetCreditAmount)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orphans": orphans,
		"total":   len(orphans),
		"amount":  total,
	})
}

func (h *Handlers) ListAdvances(w http.ResponseWriter, r *http.Request) {
	snap := snapshotFrom(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"batches": snap.AdvanceBatches(),
		"summary": snap.AdvanceSummary(),
	})
}

func (h *Handlers) GetMovements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotFrom(r).MovementSummary())
}

func (h *Handlers) GetBalanceValidation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshotFrom(r).BalanceValidation())
}

func (h *Handlers) GetDailyCashflow(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": snapshotFrom(r).DailyCashflow(from, to)})
}

func (h *Handlers) GetMonthlyCashflow(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": snapshotFrom(r).MonthlyCashflow(from, to)})
}

func (h *Handlers) GetUpcoming(w http.ResponseWriter, r *http.Request) {
	snap := snapshotFrom(r)
	days := parseIntDefault(r.URL.Query().Get("days"), snap.Metadata.UpcomingDays)
	items := snap.Upcoming(days)

	total := decimal.Zero
	for _, inst := range items {
		total = total.Add(inst.ExpectedAmountNet)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"days":         days,
		"installments": items,
		"total":        len(items),
		"amount":       total,
		"overdue":      len(snap.Overdue()),
	})
}

func dateRange(w http.ResponseWriter, r *http.Request) (from, to *time.Time, ok bool) {
	q := r.URL.Query()
	from, err := parseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return nil, nil, false
	}
	to, err = parseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return nil, nil, false
	}
	return from, to, true
}

// --- discrepancies ---

func (h *Handlers) ListDiscrepancies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.DiscrepancyFilter{
		Type:     strings.ToUpper(q.Get("type")),
		Severity: strings.ToUpper(q.Get("severity")),
		OrderRef: q.Get("order_ref"),
		Page:     parseIntDefault(q.Get("page"), 1),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}

	discs, total, err := h.discRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if discs == nil {
		discs = []domain.Discrepancy{}
	}

	// Impact of the returned page.
	impact := decimal.Zero
	for _, d := range discs {
		impact = impact.Add(d.Difference.Abs())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"discrepancies": discs,
		"total":         total,
		"page":          filter.Page,
		"limit":         filter.Limit,
		"total_impact":  impact,
	})
}

func (h *Handlers) GetDiscrepancySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.discRepo.GetSummary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
