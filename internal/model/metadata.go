package model

import "time"

// ChannelMetadata stores per-channel list configuration. There is at most one
// record per channel; the metadata store's dedup-on-create protocol enforces
// this, the backing table itself has no unique constraint.
type ChannelMetadata struct {
	ChannelID       string
	MessageID       string // pinned list message
	ListTitle       string
	LastSyncTime    time.Time
	DefaultCategory string

	// OperationLogThreadID is the thread receiving operation log entries.
	// Empty string means logging was explicitly disabled for the channel.
	OperationLogThreadID string
}
