package settlement

import (
	"strings"

	"github.com/payrecon/reconciler/internal/domain"
)

// ClassifyPaymentType derives the reporting payment type of an order from
// its settlement total line. It never influences matching.
func ClassifyPaymentType(method, methodType string, installments int) domain.PaymentType {
	method = strings.ToLower(strings.TrimSpace(method))
	methodType = strings.ToLower(strings.TrimSpace(methodType))

	switch {
	case method == "pix":
		return domain.PaymentPix
	case methodType == "ticket" || strings.Contains(method, "bol"):
		return domain.PaymentBoleto
	case method == "available_money":
		return domain.PaymentAccountBalance
	case method == "consumer_credits":
		return domain.PaymentPromotionalCredit
	case methodType == "credit_card" && installments > 1:
		return domain.PaymentCardInstallments
	case methodType == "credit_card":
		return domain.PaymentCardSingle
	case methodType == "debit_card":
		return domain.PaymentDebitCard
	}
	return domain.PaymentOther
}
