package builder

import (
	"context"

	"github.com/ggonzalez94/defi-sentinel/internal/action"
)

const (
	DefaultMonitorAsset     = "All Positions"
	DefaultMonitorDuration  = "24h"
	DefaultMonitorThreshold = "5%"
)

// Monitor always succeeds. Settings for an existing asset:chain key are
// replaced rather than duplicated.
func (b *Builder) Monitor(_ context.Context, req action.Request) (*action.Monitor, error) {
	entry := MonitorEntry{
		Asset:     orDefault(req.Param("asset"), DefaultMonitorAsset),
		ChainID:   orDefault(req.Param("chain_id"), DefaultChainID),
		Duration:  orDefault(req.Param("duration"), DefaultMonitorDuration),
		Threshold: orDefault(req.Param("threshold"), DefaultMonitorThreshold),
	}
	subscriber := orDefault(req.Param("subscriber"), b.owner)
	stored, existed := b.monitors.Upsert(entry, subscriber)
	b.log.Debug("monitor upserted", "key", stored.Key, "existing", existed, "subscribers", len(stored.Subscribers))
	return &action.Monitor{
		Asset:       stored.Asset,
		ChainID:     stored.ChainID,
		Duration:    stored.Duration,
		Threshold:   stored.Threshold,
		Key:         stored.Key,
		Subscribers: stored.Subscribers,
		Existing:    existed,
	}, nil
}

func orDefault(v, def string) string {
	if isUnset(v) {
		return def
	}
	return v
}
