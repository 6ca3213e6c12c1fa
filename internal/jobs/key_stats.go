// key_stats.go implements the KeyStatsCollector background job, which
// periodically counts access keys by state and publishes the counts as
// Prometheus gauges. Expiry is a function of wall-clock time rather than of
// any write, so the gauges would go stale without a periodic recount.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/recordstore/recordstore/internal/recordstore"
	"github.com/recordstore/recordstore/internal/telemetry"
)

// DefaultKeyStatsInterval is used when jobs.key_stats_interval is unset.
const DefaultKeyStatsInterval = time.Minute

// StatsSource is the part of the record store the collector reads.
type StatsSource interface {
	Stats(now time.Time) recordstore.KeyStats
}

// KeyStatsCollector refreshes the access key gauges on an interval.
type KeyStatsCollector struct {
	source   StatsSource
	interval time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewKeyStatsCollector creates a collector. A non-positive interval selects
// DefaultKeyStatsInterval.
func NewKeyStatsCollector(source StatsSource, interval time.Duration) *KeyStatsCollector {
	if interval <= 0 {
		interval = DefaultKeyStatsInterval
	}
	return &KeyStatsCollector{
		source:   source,
		interval: interval,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start runs one collection immediately and then one per interval until ctx
// is cancelled or Stop is called. It blocks; run it in its own goroutine.
func (k *KeyStatsCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	log.Printf("Key stats collector started (interval: %v)", k.interval)
	k.collect()

	for {
		select {
		case <-ticker.C:
			k.collect()
		case <-k.stopChan:
			log.Println("Key stats collector stopped")
			return
		case <-ctx.Done():
			log.Println("Key stats collector context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit. It is safe to call more than once.
func (k *KeyStatsCollector) Stop() {
	k.stopOnce.Do(func() { close(k.stopChan) })
}

func (k *KeyStatsCollector) collect() recordstore.KeyStats {
	stats := k.source.Stats(k.now())
	telemetry.AccessKeys.WithLabelValues("active").Set(float64(stats.Active))
	telemetry.AccessKeys.WithLabelValues("expired").Set(float64(stats.Expired))
	telemetry.AccessKeys.WithLabelValues("unclaimed").Set(float64(stats.Unclaimed))
	telemetry.Registrations.Set(float64(stats.Registrations))
	return stats
}
