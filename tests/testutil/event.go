package testutil

import (
	"context"
	"sync"

	"github.com/erp/mfgerp/internal/domain/shared"
)

// RecordingNotifier keeps every outbox entry it is handed. Set Err to make
// deliveries fail.
type RecordingNotifier struct {
	mu      sync.Mutex
	entries []*shared.OutboxEntry
	Err     error
}

// NewRecordingNotifier creates an empty RecordingNotifier.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// Name implements event.Notifier.
func (n *RecordingNotifier) Name() string { return "recording" }

// Notify implements event.Notifier.
func (n *RecordingNotifier) Notify(_ context.Context, entry *shared.OutboxEntry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	copied := *entry
	n.entries = append(n.entries, &copied)
	return nil
}

// Entries returns a snapshot of the delivered entries.
func (n *RecordingNotifier) Entries() []*shared.OutboxEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*shared.OutboxEntry, len(n.entries))
	copy(out, n.entries)
	return out
}

// Count returns how many entries were delivered.
func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}

// Reset forgets every delivered entry.
func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = nil
}
