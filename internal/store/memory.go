package store

import (
	"context"
	"sync"
)

// Memory is an in-process TabularStore. It backs tests and throwaway runs;
// nothing survives a restart.
type Memory struct {
	mu     sync.Mutex
	tables map[string][][]string
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string][][]string)}
}

func (m *Memory) CreateTable(ctx context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; !ok {
		m.tables[table] = nil
	}
	return nil
}

func (m *Memory) GetRows(ctx context.Context, table string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRows(m.tables[table]), nil
}

func (m *Memory) AppendRows(ctx context.Context, table string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = append(m.tables[table], copyRows(rows)...)
	return nil
}

func (m *Memory) AppendRowsIfAbsent(ctx context.Context, table string, rows [][]string, keyCol int) (AppendResult, error) {
	if len(rows) == 0 {
		return AppendResult{}, nil
	}
	key := cellAt(rows[0], keyCol)

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.tables[table] {
		if i == 0 {
			continue
		}
		if cellAt(row, keyCol) == key {
			return AppendResult{Duplicate: true}, nil
		}
	}
	m.tables[table] = append(m.tables[table], copyRows(rows)...)
	return AppendResult{Appended: true}, nil
}

func (m *Memory) UpdateRange(ctx context.Context, table string, startRow int, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.tables[table]
	for i, row := range rows {
		idx := startRow + i
		for len(existing) <= idx {
			existing = append(existing, nil)
		}
		existing[idx] = append([]string(nil), row...)
	}
	m.tables[table] = existing
	return nil
}

func copyRows(rows [][]string) [][]string {
	copied := make([][]string, len(rows))
	for i, row := range rows {
		copied[i] = append([]string(nil), row...)
	}
	return copied
}
