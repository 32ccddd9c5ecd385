// Package ingestion reads the processor's settlement and releases exports
// and stores their rows for reconciliation.
package ingestion

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/repository"
)

var ErrUnknownLedger = errors.New("unknown ledger")

const (
	StatusIngested        = "ingested"
	StatusAlreadyIngested = "already_ingested"
	StatusFailed          = "failed"
)

// Result is returned for every file handed to the service.
type Result struct {
	FileID   string        `json:"file_id,omitempty"`
	Ledger   domain.Ledger `json:"ledger"`
	Filename string        `json:"filename"`
	Status   string        `json:"status"`
	Rows     int           `json:"rows"`
	Stored   int           `json:"stored"`
	Dropped  int           `json:"dropped"`
	Skipped  int           `json:"skipped"`
	Error    string        `json:"error,omitempty"`
}

// Service handles ingestion of settlement and releases exports.
type Service struct {
	fileRepo       *repository.FileRepo
	settlementRepo *repository.SettlementRepo
	releaseRepo    *repository.ReleaseRepo
	now            func() time.Time
	logger         *logrus.Entry
}

// NewService creates a new ingestion service.
func NewService(
	fileRepo *repository.FileRepo,
	settlementRepo *repository.SettlementRepo,
	releaseRepo *repository.ReleaseRepo,
) *Service {
	return &Service{
		fileRepo:       fileRepo,
		settlementRepo: settlementRepo,
		releaseRepo:    releaseRepo,
		now:            time.Now,
		logger:         logrus.WithField("component", "ingestion"),
	}
}

// IngestFile parses an export and stores its rows. A file whose content was
// ingested before is reported as already ingested and nothing is stored.
func (s *Service) IngestFile(ctx context.Context, ledger domain.Ledger, filename string, data []byte) (*Result, error) {
	if !ledger.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLedger, ledger)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	filename = filepath.Base(filename)

	// Idempotency check via file hash.
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.fileRepo.ExistsByHash(hash)
	if err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	}
	if exists {
		s.logger.WithField("file", filename).Info("file already ingested, skipped")
		return &Result{Ledger: ledger, Filename: filename, Status: StatusAlreadyIngested}, nil
	}

	t, err := readTable(filename, data)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	ordinal, err := s.fileRepo.NextOrdinal()
	if err != nil {
		return nil, fmt.Errorf("next ordinal: %w", err)
	}
	fileID := uuid.NewString()

	var p *parsed
	switch ledger {
	case domain.LedgerSettlement:
		p, err = parseSettlement(t, fileID, ordinal)
	case domain.LedgerReleases:
		p, err = parseReleases(t, fileID, ordinal)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	file := &domain.IngestedFile{
		ID:         fileID,
		Ledger:     ledger,
		Filename:   filename,
		Hash:       hash,
		Ordinal:    ordinal,
		Rows:       p.rows,
		Stored:     len(p.settlement) + len(p.releases),
		Dropped:    p.dropped,
		Skipped:    p.skipped,
		IngestedAt: s.now().UTC(),
	}

	var stored int
	if ledger == domain.LedgerSettlement {
		stored, err = s.settlementRepo.InsertFile(file, p.settlement)
	} else {
		stored, err = s.releaseRepo.InsertFile(file, p.releases)
	}
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", filename, err)
	}

	s.logger.WithFields(logrus.Fields{
		"file":    filename,
		"ledger":  ledger,
		"rows":    p.rows,
		"stored":  stored,
		"dropped": p.dropped,
		"skipped": p.skipped,
	}).Info("file ingested")
	if p.dropped > 0 {
		s.logger.WithField("file", filename).Warnf("%d rows dropped without order_ref and source id", p.dropped)
	}

	return &Result{
		FileID:   fileID,
		Ledger:   ledger,
		Filename: filename,
		Status:   StatusIngested,
		Rows:     p.rows,
		Stored:   stored,
		Dropped:  p.dropped,
		Skipped:  p.skipped,
	}, nil
}

// IngestDir ingests every .csv and .xlsx file of dir in name order. A file
// that fails is reported in its result and does not stop the batch.
func (s *Service) IngestDir(ctx context.Context, ledger domain.Ledger, dir string) ([]Result, error) {
	if !ledger.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLedger, ledger)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".xlsx":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			var res *Result
			res, err = s.IngestFile(ctx, ledger, name, data)
			if err == nil {
				results = append(results, *res)
				continue
			}
		}
		s.logger.WithError(err).WithField("file", name).Error("file not ingested")
		results = append(results, Result{Ledger: ledger, Filename: name, Status: StatusFailed, Error: err.Error()})
	}
	return results, nil
}
