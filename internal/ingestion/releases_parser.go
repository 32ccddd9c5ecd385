package ingestion

import (
	"fmt"
	"strings"

	"github.com/payrecon/reconciler/internal/domain"
)

// Releases export columns not shared with the settlement export.
const (
	colReleaseDate = "RELEASE_DATE"
	colRecordType  = "RECORD_TYPE"
	colNetCredit   = "NET_CREDIT_AMOUNT"
	colNetDebit    = "NET_DEBIT_AMOUNT"
	colGrossAmount = "GROSS_AMOUNT"
	colMPFeeAmount = "MP_FEE_AMOUNT"
)

func parseReleases(t *table, fileID string, ordinal int64) (*parsed, error) {
	if !t.has(colDescription) {
		return nil, fmt.Errorf("releases export has no %s column", colDescription)
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

		out.releases = append(out.releases, domain.ReleaseEvent{
			ID:               fmt.Sprintf("%s:%d", fileID, rowNum),
			FileID:           fileID,
			Seq:              domain.RowSeq(ordinal, rowNum),
			OrderRef:         keys.OrderRef,
			ProcessorTxnID:   keys.ProcessorTxnID,
			Description:      strings.ToLower(t.get(row, colDescription)),
			RecordType:       strings.ToLower(t.get(row, colRecordType)),
			NetCreditAmount:  parseAmount(t.get(row, colNetCredit)),
			NetDebitAmount:   parseAmount(t.get(row, colNetDebit)),
			GrossAmount:      parseAmount(t.get(row, colGrossAmount)),
			FeeAmount:        parseAmount(t.get(row, colMPFeeAmount)),
			InstallmentLabel: t.get(row, colInstallments),
			ReleaseDate:      parseDate(t.get(row, colReleaseDate)),
			PaymentMethod:    strings.ToLower(t.get(row, colPaymentMethod)),
		})
	}
	return out, nil
}
