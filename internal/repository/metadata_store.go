package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"listkeeper/internal/cache"
	"listkeeper/internal/model"
	"listkeeper/internal/store"
)

const metadataTable = "channel_metadata"

// UpsertOutcome tags what Create actually did, making the concurrent-create
// race a first-class return value instead of a hidden fallback.
type UpsertOutcome int

const (
	UpsertCreated UpsertOutcome = iota + 1
	UpsertUpdatedExisting
)

// metaRecord pairs a decoded metadata row with its position in the table, so
// updates can address the exact row range.
type metaRecord struct {
	Row  int
	Meta *model.ChannelMetadata
}

// MetadataStore is the single source of truth for per-channel configuration.
// Reads go through a short-lived snapshot cache; creation uses the store's
// conditional append so two concurrent initializations for the same channel
// leave exactly one row.
type MetadataStore struct {
	store store.TabularStore
	cache *cache.Snapshot[[]metaRecord]

	mu      sync.Mutex
	ensured bool
}

func NewMetadataStore(st store.TabularStore, cacheTTL time.Duration) *MetadataStore {
	return &MetadataStore{
		store: st,
		cache: cache.NewSnapshot[[]metaRecord](cacheTTL),
	}
}

// Get returns the channel's metadata, or model.ErrNotFound. On a backing
// store failure a stale snapshot is served when available.
func (s *MetadataStore) Get(ctx context.Context, channelID string) (*model.ChannelMetadata, error) {
	if err := s.ensureSheet(ctx); err != nil {
		return nil, err
	}
	records, err := s.cache.Get(ctx, s.fetchAll)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Meta.ChannelID == channelID {
			copied := *rec.Meta
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("metadata for channel %s: %w", channelID, model.ErrNotFound)
}

// List returns metadata for every known channel, through the same cache as
// Get.
func (s *MetadataStore) List(ctx context.Context) ([]*model.ChannelMetadata, error) {
	if err := s.ensureSheet(ctx); err != nil {
		return nil, err
	}
	records, err := s.cache.Get(ctx, s.fetchAll)
	if err != nil {
		return nil, err
	}
	metas := make([]*model.ChannelMetadata, 0, len(records))
	for _, rec := range records {
		copied := *rec.Meta
		metas = append(metas, &copied)
	}
	return metas, nil
}

// Create inserts the metadata row via an atomic append-with-duplicate-check.
// When another caller created the row first, Create transparently updates the
// existing row instead and reports UpsertUpdatedExisting.
func (s *MetadataStore) Create(ctx context.Context, meta *model.ChannelMetadata) (UpsertOutcome, error) {
	if err := s.ensureSheet(ctx); err != nil {
		return 0, err
	}

	row := encodeMetadata(meta)
	result, err := s.store.AppendRowsIfAbsent(ctx, metadataTable, [][]string{row}, metaColChannelID)
	if err != nil {
		return 0, fmt.Errorf("create metadata for %s: %w", meta.ChannelID, err)
	}

	if result.Duplicate {
		// Fall back to updating the row that won the race. This goes
		// straight to the store, not through Get, so a stale cache cannot
		// loop us back here.
		if err := s.directUpdate(ctx, meta); err != nil {
			return 0, err
		}
		return UpsertUpdatedExisting, nil
	}

	s.cache.Invalidate()
	return UpsertCreated, nil
}

// Update mutates the channel's row in place. The row is located by a linear
// scan of the cached snapshot; only that row range is written back.
func (s *MetadataStore) Update(ctx context.Context, channelID string, mutate func(*model.ChannelMetadata)) error {
	if err := s.ensureSheet(ctx); err != nil {
		return err
	}
	records, err := s.cache.Get(ctx, s.fetchAll)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if rec.Meta.ChannelID != channelID {
			continue
		}
		updated := *rec.Meta
		mutate(&updated)
		if err := s.store.UpdateRange(ctx, metadataTable, rec.Row, [][]string{encodeMetadata(&updated)}); err != nil {
			return fmt.Errorf("update metadata for %s: %w", channelID, err)
		}
		s.cache.Invalidate()
		return nil
	}
	return fmt.Errorf("metadata for channel %s: %w", channelID, model.ErrNotFound)
}

// directUpdate rewrites the channel's row from a fresh table read, bypassing
// the cache. Used by the create→update fallback.
func (s *MetadataStore) directUpdate(ctx context.Context, meta *model.ChannelMetadata) error {
	rows, err := s.store.GetRows(ctx, metadataTable)
	if err != nil {
		return fmt.Errorf("%w: read metadata: %v", model.ErrStoreUnavailable, err)
	}
	for i, raw := range rows {
		if i == 0 {
			continue
		}
		if cellAt(raw, metaColChannelID) == meta.ChannelID {
			if err := s.store.UpdateRange(ctx, metadataTable, i, [][]string{encodeMetadata(meta)}); err != nil {
				return fmt.Errorf("update metadata for %s: %w", meta.ChannelID, err)
			}
			s.cache.Invalidate()
			return nil
		}
	}
	// The duplicate report and this read disagree; surface it rather than
	// appending a second row.
	return fmt.Errorf("metadata for channel %s: %w", meta.ChannelID, model.ErrNotFound)
}

func (s *MetadataStore) fetchAll(ctx context.Context) ([]metaRecord, error) {
	rows, err := s.store.GetRows(ctx, metadataTable)
	if err != nil {
		return nil, fmt.Errorf("%w: read metadata: %v", model.ErrStoreUnavailable, err)
	}
	records := make([]metaRecord, 0, len(rows))
	for i, raw := range rows {
		if i == 0 {
			continue
		}
		meta, err := decodeMetadata(raw)
		if err != nil {
			return nil, fmt.Errorf("metadata row %d: %w", i, err)
		}
		records = append(records, metaRecord{Row: i, Meta: meta})
	}
	return records, nil
}

// ensureSheet verifies the backing table and header once per process.
func (s *MetadataStore) ensureSheet(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}
	if err := s.store.CreateTable(ctx, metadataTable); err != nil {
		return fmt.Errorf("ensure metadata table: %w", err)
	}
	if err := ensureHeader(ctx, s.store, metadataTable, metadataHeader); err != nil {
		return err
	}
	s.ensured = true
	return nil
}
