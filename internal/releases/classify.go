package releases

import (
	"strings"

	"github.com/payrecon/reconciler/internal/domain"
)

// saleTokens are the description values the processor uses for sale credits
// across export versions.
var saleTokens = map[string]bool{
	"payment":       true,
	"release":       true,
	"credit_card":   true,
	"debit_card":    true,
	"credit_wallet": true,
	"pix":           true,
	"boleto":        true,
	"account_money": true,
}

// Classify maps a release description token to its kind. The second return
// value is false for tokens that are not recognised.
func Classify(description string) (domain.ReleaseKind, bool) {
	desc := strings.ToLower(strings.TrimSpace(description))

	switch {
	case saleTokens[desc]:
		return domain.ReleasePayment, true
	case desc == "payout":
		return domain.ReleasePayout, true
	case strings.HasPrefix(desc, "fee-"),
		strings.Contains(desc, "advance") && strings.Contains(desc, "fee"):
		return domain.ReleaseAdvanceFee, true
	case desc == "release_in_advance":
		return domain.ReleaseAdvanceRelease, true
	case strings.HasPrefix(desc, "reserve_"):
		return domain.ReleaseReserve, true
	case desc == "chargeback_cancel":
		return domain.ReleaseChargebackCancel, true
	case desc == "chargeback":
		return domain.ReleaseChargeback, true
	case desc == "refund":
		return domain.ReleaseRefund, true
	}
	return domain.ReleaseUnclassified, false
}
