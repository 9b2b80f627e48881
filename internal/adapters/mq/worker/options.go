// Package worker runs the per-event processing pipeline on a pool of shard
// workers.
package worker

import "time"

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithShardBuffer sets the per-shard channel buffer size.
func WithShardBuffer(size int) Option {
	return func(p *Pool) {
		if size > 0 {
			p.shardBuffer = size
		}
	}
}

// WithMaintenanceInterval sets how often shards run cool-down closure,
// detector sweeps, and idle eviction.
func WithMaintenanceInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.maintenanceInterval = d
		}
	}
}
