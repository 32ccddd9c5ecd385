package ingestion

import (
	"fmt"
	"strings"

	"github.com/payrecon/reconciler/internal/domain"
)

// Settlement export columns.
const (
	colExternalReference = "EXTERNAL_REFERENCE"
	colSourceID          = "SOURCE_ID"
	colTransactionType   = "TRANSACTION_TYPE"
	colDescription       = "DESCRIPTION"
	colPaymentMethod     = "PAYMENT_METHOD"
	colPaymentMethodType = "PAYMENT_METHOD_TYPE"
	colTransactionAmount = "TRANSACTION_AMOUNT"
	colFeeAmount         = "FEE_AMOUNT"
	colSettlementNet     = "SETTLEMENT_NET_AMOUNT"
	colInstallments      = "INSTALLMENTS"
	colInstallmentNumber = "INSTALLMENT_NUMBER"
	colInstallmentNet    = "INSTALLMENT_NET_AMOUNT"
	colApprovalDate      = "APPROVAL_DATE"
	colMoneyReleaseDate  = "MONEY_RELEASE_DATE"
)

// parsed is the outcome of reading one export.
type parsed struct {
	settlement []domain.SettlementLine
	releases   []domain.ReleaseEvent
	rows       int
	dropped    int
	skipped    int
}

// settlementKind maps TRANSACTION_TYPE and DESCRIPTION to a line kind.
func settlementKind(txType, description string) (domain.SettlementKind, bool) {
	txType = strings.ToUpper(txType)
	switch {
	case strings.EqualFold(description, "INSTALLMENT"):
		return domain.SettlementInstallmentLine, true
	case txType == "SETTLEMENT":
		return domain.SettlementTotal, true
	case txType == "REFUND":
		return domain.SettlementRefund, true
	case txType == "CHARGEBACK":
		return domain.SettlementChargeback, true
	case txType == "CHARGEBACK_CANCEL":
		return domain.SettlementChargebackCancel, true
	}
	return "", false
}

func parseSettlement(t *table, fileID string, ordinal int64) (*parsed, error) {
	if !t.has(colExternalReference) && !t.has(colSourceID) {
		return nil, fmt.Errorf("settlement export has neither %s nor %s", colExternalReference, colSourceID)
	}
	if !t.has(colTransactionType) {
		return nil, fmt.Errorf("settlement export has no %s column", colTransactionType)
	}

	out := &parsed{}
	for i, row := range t.rows {
		if blank(row) {
			continue
		}
		out.rows++
		rowNum := i + 2

		keys := joinKeys{
			OrderRef:       t.get(row, colExternalReference),
			ProcessorTxnID: t.get(row, colSourceID),
		}
		if err := keys.Validate(); err != nil {
			out.dropped++
			continue
		}

		kind, ok := settlementKind(t.get(row, colTransactionType), t.get(row, colDescription))
		if !ok {
			out.skipped++
			continue
		}

		line := domain.SettlementLine{
			ID:                fmt.Sprintf("%s:%d", fileID, rowNum),
			FileID:            fileID,
			Seq:               domain.RowSeq(ordinal, rowNum),
			OrderRef:          keys.OrderRef,
			ProcessorTxnID:    keys.ProcessorTxnID,
			Kind:              kind,
			GrossAmount:       parseAmount(t.get(row, colTransactionAmount)),
			NetAmount:         parseAmount(t.get(row, colSettlementNet)),
			FeeAmount:         parseAmount(t.get(row, colFeeAmount)),
			InstallmentNumber: t.get(row, colInstallmentNumber),
			InstallmentCount:  parseCount(t.get(row, colInstallments)),
			DueDate:           parseDate(t.get(row, colMoneyReleaseDate)),
			ApprovalDate:      parseDate(t.get(row, colApprovalDate)),
			PaymentMethod:     strings.ToLower(t.get(row, colPaymentMethod)),
			PaymentMethodType: strings.ToLower(t.get(row, colPaymentMethodType)),
		}
		if kind == domain.SettlementInstallmentLine {
			line.NetAmount = parseAmount(t.get(row, colInstallmentNet))
		}
		out.settlement = append(out.settlement, line)
	}
	return out, nil
}
