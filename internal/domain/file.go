package domain

import "time"

// Ledger names the export a file belongs to.
type Ledger string

const (
	LedgerSettlement Ledger = "settlement"
	LedgerReleases   Ledger = "releases"
)

func (l Ledger) Valid() bool {
	return l == LedgerSettlement || l == LedgerReleases
}

// IngestedFile records one ingested export. Ordinal orders files by
// ingestion and prefixes the sequence of every row stored from the file.
type IngestedFile struct {
	ID         string    `json:"id"`
	Ledger     Ledger    `json:"ledger"`
	Filename   string    `json:"filename"`
	Hash       string    `json:"hash"`
	Ordinal    int64     `json:"ordinal"`
	Rows       int       `json:"rows"`
	Stored     int       `json:"stored"`
	Dropped    int       `json:"dropped"`
	Skipped    int       `json:"skipped"`
	IngestedAt time.Time `json:"ingested_at"`
}

// RowsPerFile bounds the row number within a file so that Seq stays unique
// and ordered across files.
const RowsPerFile = 1_000_000

// RowSeq computes the stable sequence of a row.
func RowSeq(ordinal int64, row int) int64 {
	return ordinal*RowsPerFile + int64(row)
}
