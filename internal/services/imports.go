package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"finledger/internal/ai"
	"finledger/internal/core"
	"finledger/internal/importer"
	"finledger/internal/log"
)

// sampleRows is how many data rows the model sees when columns are guessed.
const sampleRows = 5

// SheetReader reads a cell range of a spreadsheet as text.
type SheetReader interface {
	ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
}

// ImportResult is the parsed preview of an import and, when an account was
// given, the transactions it created.
type ImportResult struct {
	Columns importer.Columns
	Rows    []importer.Row
	Skipped int
	Created []core.Transaction
}

type ImportService struct {
	ledger *LedgerService
	gen    ai.Generator // optional column inference fallback
	sheets SheetReader  // optional
	logger *log.Logger
}

func NewImportService(ledger *LedgerService, gen ai.Generator, sheets SheetReader) *ImportService {
	return &ImportService{
		ledger: ledger,
		gen:    gen,
		sheets: sheets,
		logger: log.ForComponent(log.ComponentImport),
	}
}

// ImportCSV parses a CSV export whose first record is the header row.
func (s *ImportService) ImportCSV(ctx context.Context, userID string, r io.Reader, accountID string) (ImportResult, error) {
	if err := requireUser(userID); err != nil {
		return ImportResult{}, err
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	table, err := cr.ReadAll()
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: malformed CSV: %v", core.ErrInvalidInput, err)
	}
	if len(table) > 0 && len(table[0]) > 0 {
		table[0][0] = strings.TrimPrefix(table[0][0], "\ufeff")
	}
	return s.importTable(ctx, userID, table, accountID)
}

// ImportSheet reads rng of a Google spreadsheet shared with the service account.
func (s *ImportService) ImportSheet(ctx context.Context, userID, spreadsheetID, rng, accountID string) (ImportResult, error) {
	if err := requireUser(userID); err != nil {
		return ImportResult{}, err
	}
	if s.sheets == nil {
		return ImportResult{}, fmt.Errorf("%w: spreadsheet import is not configured", core.ErrInvalidInput)
	}
	if strings.TrimSpace(spreadsheetID) == "" {
		return ImportResult{}, fmt.Errorf("%w: spreadsheet id is required", core.ErrInvalidInput)
	}
	table, err := s.sheets.ReadRange(ctx, spreadsheetID, rng)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read spreadsheet: %w", err)
	}
	return s.importTable(ctx, userID, table, accountID)
}

func (s *ImportService) importTable(ctx context.Context, userID string, table [][]string, accountID string) (ImportResult, error) {
	if len(table) == 0 {
		return ImportResult{}, fmt.Errorf("%w: file contains no rows", core.ErrInvalidInput)
	}
	headers, data := table[0], table[1:]

	cols := importer.InferColumns(headers)
	if !cols.Resolved() && s.gen != nil {
		guess, err := ai.InferColumns(ctx, s.gen, headers, data[:min(len(data), sampleRows)])
		if err != nil {
			// keep the header matches we have
			s.logger.WarnContext(ctx, "Column inference failed", log.FieldUserID, userID, log.FieldError, err)
		} else {
			cols = cols.Fill(guess)
		}
	}
	if !cols.Resolved() {
		return ImportResult{}, core.ErrUnresolvableSchema
	}

	rows, skipped := importer.ParseRows(cols, data)
	res := ImportResult{Columns: cols, Rows: rows, Skipped: skipped}
	s.logger.InfoContext(ctx, "Import parsed",
		log.FieldUserID, userID,
		log.FieldCount, len(rows),
		"skipped", skipped)

	if accountID == "" || len(rows) == 0 {
		return res, nil
	}
	inputs := make([]TransactionInput, 0, len(rows))
	for _, r := range rows {
		inputs = append(inputs, TransactionInput{
			AccountID:   accountID,
			Kind:        r.Kind,
			Amount:      r.Amount,
			Category:    r.Category,
			Date:        r.Date,
			Description: r.Description,
		})
	}
	created, err := s.ledger.CreateTransactions(ctx, userID, inputs)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			return res, fmt.Errorf("import rejected: %w", err)
		}
		return res, err
	}
	res.Created = created
	return res, nil
}
