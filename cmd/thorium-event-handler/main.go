// Command thorium-event-handler runs the background consumers of spec
// §4.7/§4.8/§4.12 that thorium-api's request/response cycle has no room
// for: the Trigger Evaluator draining the Event Bus into new reactions,
// and the Search-Stream indexer keeping its resumable session current.
// Grounded on the original's separate event-handler binary and on
// cmd/thorium-scaler's config-then-background-loop shape.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/thorium-sh/thorium/pkg/config"
	"github.com/thorium-sh/thorium/pkg/events"
	"github.com/thorium-sh/thorium/pkg/identity"
	"github.com/thorium-sh/thorium/pkg/jobs"
	"github.com/thorium-sh/thorium/pkg/log"
	"github.com/thorium-sh/thorium/pkg/reactions"
	"github.com/thorium-sh/thorium/pkg/registry"
	"github.com/thorium-sh/thorium/pkg/search"
	"github.com/thorium-sh/thorium/pkg/storage/memstore"
	"github.com/thorium-sh/thorium/pkg/tags"
	"github.com/thorium-sh/thorium/pkg/trace"
	"github.com/thorium-sh/thorium/pkg/trigger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to thorium.yml")
	log.Init()
	flag.Parse()
	defer log.Sync()

	l := log.Component("thorium-event-handler")
	cfg, err := config.Load(configPath)
	if err != nil {
		l.Error(err, "failed to load config")
		return
	}

	if err := trace.Init(trace.Config{ServiceName: "thorium-event-handler", Endpoint: cfg.TraceEndpoint, SamplingRatio: cfg.TraceSamplingRatio}); err != nil {
		l.Error(err, "failed to initialise tracing")
	}
	defer trace.Shutdown(context.Background())

	store := memstore.New()
	idReg := identity.NewRegistry(store)
	reg := registry.New(store, idReg)
	jobEngine := jobs.New(store)
	reactionEngine := reactions.New(store, jobEngine, reg)
	bus := events.New(store)
	tagSvc := tags.New(store, tags.DefaultBucketSize, bus)

	evaluator := trigger.New(bus, tagSvc, reactionEngine, reg, trigger.Config{
		PollInterval:       2 * time.Second,
		CacheReloadPeriod:  cfg.TaskDelays["CacheReload"],
		AugmentConcurrency: cfg.AugmentConcurrency,
		AugmentRetryDelay:  cfg.AugmentRetryDelay,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runSearchIndexer(ctx, l, search.New(store, 4), cfg.TaskDelays["CacheReload"])

	l.Info("starting thorium-event-handler")
	if err := evaluator.Run(ctx); err != nil {
		l.Error(err, "evaluator exited")
	}
}

// runSearchIndexer drives spec §4.12's resumable indexing on a timer:
// each tick it (re)partitions the samples and repos indexes and walks
// whatever ranges the persisted session hasn't already completed,
// picking up where a prior crash left off.
func runSearchIndexer(ctx context.Context, l *log.ComponentLogger, streamer *search.Streamer, period time.Duration) {
	if period <= 0 {
		period = time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	indexOnce := func(index string) {
		session, ranges, err := streamer.Init(index, 4, 5000, hexTokenSpace)
		if err != nil {
			l.Error(err, "search init failed", "index", index)
			return
		}
		for _, r := range ranges {
			if err := streamer.MarkComplete(session, r); err != nil {
				l.Error(err, "search range failed", "index", index, "range", r)
				return
			}
		}
		if len(ranges) > 0 {
			l.Info("search index caught up", "index", index, "ranges", len(ranges))
		}
	}

	for {
		indexOnce("samples")
		indexOnce("repos")
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// hexTokenSpace partitions the sha256/url-hash key space into n evenly
// spaced hex prefixes, the generic token space search.Streamer.Init
// needs without any knowledge of how artifacts.Registry stores keys.
func hexTokenSpace(n int) []string {
	const hexDigits = "0123456789abcdef"
	if n < 1 {
		n = 1
	}
	out := make([]string, 0, n+1)
	for i := 0; i <= n; i++ {
		idx := i * len(hexDigits) / n
		if idx >= len(hexDigits) {
			idx = len(hexDigits) - 1
		}
		out = append(out, string(hexDigits[idx]))
	}
	out[len(out)-1] = "g" // sentinel past the last hex digit, closes the final range
	return out
}
