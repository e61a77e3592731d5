package builder

import (
	"slices"
	"sort"
	"sync"
	"time"
)

type MonitorEntry struct {
	Key         string    `json:"key"`
	Asset       string    `json:"asset"`
	ChainID     string    `json:"chain_id"`
	Duration    string    `json:"duration"`
	Threshold   string    `json:"threshold"`
	Subscribers []string  `json:"subscribers"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MonitorBook is the in-memory set of active monitors keyed asset:chain_id.
// It is the only mutable state shared across alerts.
type MonitorBook struct {
	mu      sync.Mutex
	entries map[string]*MonitorEntry
	now     func() time.Time
}

func NewMonitorBook() *MonitorBook {
	return &MonitorBook{entries: map[string]*MonitorEntry{}, now: time.Now}
}

func MonitorKey(asset, chainID string) string {
	return asset + ":" + chainID
}

// Upsert replaces the settings for the entry's key (last write wins) and adds
// subscriber once. existed reports whether the key was already active.
func (b *MonitorBook) Upsert(entry MonitorEntry, subscriber string) (out MonitorEntry, existed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := MonitorKey(entry.Asset, entry.ChainID)
	now := b.now().UTC()
	current, existed := b.entries[key]
	if !existed {
		current = &MonitorEntry{Key: key, CreatedAt: now}
		b.entries[key] = current
	}
	current.Asset = entry.Asset
	current.ChainID = entry.ChainID
	current.Duration = entry.Duration
	current.Threshold = entry.Threshold
	current.UpdatedAt = now
	if subscriber != "" && !slices.Contains(current.Subscribers, subscriber) {
		current.Subscribers = append(current.Subscribers, subscriber)
	}
	return copyEntry(current), existed
}

func (b *MonitorBook) Get(key string) (MonitorEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[key]
	if !ok {
		return MonitorEntry{}, false
	}
	return copyEntry(entry), true
}

func (b *MonitorBook) List() []MonitorEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]MonitorEntry, 0, len(b.entries))
	for _, entry := range b.entries {
		out = append(out, copyEntry(entry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (b *MonitorBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func copyEntry(e *MonitorEntry) MonitorEntry {
	out := *e
	out.Subscribers = append([]string(nil), e.Subscribers...)
	return out
}
