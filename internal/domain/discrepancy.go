package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscrepancyType string

const (
	DiscrepancyOrderError             DiscrepancyType = "ORDER_ERROR"
	DiscrepancyTransactionMismatch    DiscrepancyType = "TRANSACTION_MISMATCH"
	DiscrepancyOrphanPayment          DiscrepancyType = "ORPHAN_PAYMENT"
	DiscrepancyOrphanSettlement       DiscrepancyType = "ORPHAN_SETTLEMENT"
	DiscrepancyOrphanReleases         DiscrepancyType = "ORPHAN_RELEASES"
	DiscrepancyMissingSettlementTotal DiscrepancyType = "MISSING_SETTLEMENT_TOTAL"
	DiscrepancyUnclassifiedRelease    DiscrepancyType = "UNCLASSIFIED_RELEASE"
	DiscrepancyScheduleDrift          DiscrepancyType = "SCHEDULE_DRIFT"
	DiscrepancyBalanceValidation      DiscrepancyType = "BALANCE_VALIDATION"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Discrepancy is a data-quality finding of a reconciliation run.
type Discrepancy struct {
	ID             string          `json:"id"`
	RunID          string          `json:"run_id"`
	Type           DiscrepancyType `json:"type"`
	OrderRef       string          `json:"order_ref,omitempty"`
	ProcessorTxnID string          `json:"processor_txn_id,omitempty"`
	Expected       decimal.Decimal `json:"expected"`
	Actual         decimal.Decimal `json:"actual"`
	Difference     decimal.Decimal `json:"difference"`
	Severity       Severity        `json:"severity"`
	Description    string          `json:"description"`
	DetectedAt     time.Time       `json:"detected_at"`
}
