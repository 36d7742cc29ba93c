package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Sheets is a TabularStore backed by one Google spreadsheet; each logical
// table maps to a sheet tab.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string

	mu     sync.Mutex
	tables map[string]bool // known-to-exist sheet titles
}

// NewSheets builds a Sheets store authorized by a service-account key file.
func NewSheets(ctx context.Context, spreadsheetID, credentialsFile string) (*Sheets, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return &Sheets{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		tables:        make(map[string]bool),
	}, nil
}

func (s *Sheets) CreateTable(ctx context.Context, table string) error {
	s.mu.Lock()
	known := s.tables[table]
	s.mu.Unlock()
	if known {
		return nil
	}

	doc, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	exists := false
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == table {
			exists = true
			break
		}
	}

	if !exists {
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: table},
				},
			}},
		}
		if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
			// A concurrent creator may have won the race.
			if !strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("add sheet %q: %w", table, err)
			}
		}
	}

	s.mu.Lock()
	s.tables[table] = true
	s.mu.Unlock()
	return nil
}

func (s *Sheets) GetRows(ctx context.Context, table string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, quoteRange(table, "A:ZZ")).Context(ctx).Do()
	if err != nil {
		if strings.Contains(err.Error(), "Unable to parse range") {
			return nil, nil // missing tab
		}
		return nil, fmt.Errorf("get rows of %q: %w", table, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Sheets) AppendRows(ctx context.Context, table string, rows [][]string) error {
	vr := &sheets.ValueRange{Values: toValues(rows)}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, quoteRange(table, "A:A"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append rows to %q: %w", table, err)
	}
	return nil
}

// AppendRowsIfAbsent narrows the read-check-append window with a process
// mutex and a fresh key-column read issued immediately before the append;
// the Sheets API has no server-side conditional append.
func (s *Sheets) AppendRowsIfAbsent(ctx context.Context, table string, rows [][]string, keyCol int) (AppendResult, error) {
	if len(rows) == 0 {
		return AppendResult{}, nil
	}
	key := cellAt(rows[0], keyCol)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.GetRows(ctx, table)
	if err != nil {
		return AppendResult{}, err
	}
	for i, row := range existing {
		if i == 0 {
			continue // header
		}
		if cellAt(row, keyCol) == key {
			return AppendResult{Duplicate: true}, nil
		}
	}

	if err := s.AppendRows(ctx, table, rows); err != nil {
		return AppendResult{}, err
	}
	return AppendResult{Appended: true}, nil
}

func (s *Sheets) UpdateRange(ctx context.Context, table string, startRow int, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	ref := fmt.Sprintf("A%d:%s%d", startRow+1, columnName(width-1), startRow+len(rows))
	vr := &sheets.ValueRange{Values: toValues(rows)}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, quoteRange(table, ref), vr).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %q rows %d-%d: %w", table, startRow, startRow+len(rows)-1, err)
	}
	return nil
}

func toValues(rows [][]string) [][]interface{} {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		values[i] = cells
	}
	return values
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

func quoteRange(table, ref string) string {
	return fmt.Sprintf("'%s'!%s", table, ref)
}

// columnName converts a zero-based column index to A1 notation ("A", "Z",
// "AA", ...).
func columnName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}
