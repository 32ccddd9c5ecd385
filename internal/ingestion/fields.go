package ingestion

import (
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

var dateLayouts = []string{
	domain.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000-07:00",
	"02/01/2006",
}

// parseAmount never fails: unparsable amounts read as zero.
func parseAmount(s string) decimal.Decimal {
	d, _ := money.Parse(s)
	return d
}

// parseDate returns the calendar day of s, or nil when s is not a date.
func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.DayPtr(t)
		}
	}
	return nil
}

// parseCount reads integer cells that spreadsheets often export as "3.0".
func parseCount(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ".")); err == nil {
		return int(d.IntPart())
	}
	return 0
}

// joinKeys are the identifiers a row needs to take part in any ledger.
type joinKeys struct {
	OrderRef       string
	ProcessorTxnID string
}

// Validate requires at least one of the two join keys.
func (k joinKeys) Validate() error {
	return validation.ValidateStruct(&k,
		validation.Field(&k.OrderRef, validation.Required.When(k.ProcessorTxnID == "").Error("order_ref or processor_txn_id is required")),
	)
}
