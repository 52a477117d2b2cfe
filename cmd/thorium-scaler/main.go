// Command thorium-scaler runs the allocation loop of spec §4.9: plan,
// spawn, delete, and the background task scheduler (ZombieJobs,
// LdapSync, CacheReload, Resources, UpdateRuntimes, Cleanup,
// DecreaseFairShare). Grounded on resource-manager's scaler-loop cmd
// shape; wired here to the Direct backend by default since it needs no
// cluster credentials to start.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/thorium-sh/thorium/pkg/config"
	"github.com/thorium-sh/thorium/pkg/identity"
	"github.com/thorium-sh/thorium/pkg/jobs"
	"github.com/thorium-sh/thorium/pkg/log"
	"github.com/thorium-sh/thorium/pkg/registry"
	"github.com/thorium-sh/thorium/pkg/scaler"
	"github.com/thorium-sh/thorium/pkg/scaler/backends/directbackend"
	"github.com/thorium-sh/thorium/pkg/scaler/tasks"
	"github.com/thorium-sh/thorium/pkg/storage/memstore"
	"github.com/thorium-sh/thorium/pkg/trace"
	"github.com/thorium-sh/thorium/pkg/types"
)

func main() {
	var configPath, cluster string
	flag.StringVar(&configPath, "config", "", "path to thorium.yml")
	flag.StringVar(&cluster, "cluster", "default", "cluster name this scaler manages")
	log.Init()
	flag.Parse()
	defer log.Sync()

	l := log.Component("thorium-scaler")
	cfg, err := config.Load(configPath)
	if err != nil {
		l.Error(err, "failed to load config")
		return
	}

	if err := trace.Init(trace.Config{ServiceName: "thorium-scaler", Endpoint: cfg.TraceEndpoint, SamplingRatio: cfg.TraceSamplingRatio}); err != nil {
		l.Error(err, "failed to initialise tracing")
	}
	defer trace.Shutdown(context.Background())

	store := memstore.New()
	idReg := identity.NewRegistry(store)
	reg := registry.New(store, idReg)
	jobEngine := jobs.New(store)
	fairShare := scaler.NewFairShare()
	core := scaler.New(store, store, reg, fairShare)
	backend := directbackend.New(store, types.ScalerBareMetal)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := tasks.New()
	sched.Schedule(tasks.DecreaseFairShare, cfg.TaskDelays["DecreaseFairShare"], func(context.Context) error {
		fairShare.Decrease(cfg.FairShareDecrement)
		return nil
	})
	sched.Schedule(tasks.ZombieJobs, cfg.TaskDelays["ZombieJobs"], func(ctx context.Context) error {
		return reapZombies(jobEngine, l)
	})
	go sched.Run(ctx)

	l.Info("starting thorium-scaler", "cluster", cluster)
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Info("shutting down")
			return
		case <-ticker.C:
			runPlan(ctx, l, core, backend, cluster)
		}
	}
}

func runPlan(ctx context.Context, l *log.ComponentLogger, core *scaler.Core, backend *directbackend.Backend, cluster string) {
	for _, kind := range []types.ScalerKind{types.ScalerBareMetal, types.ScalerWindows} {
		spawns, deletions, errs, err := core.Plan(kind, cluster)
		if err != nil {
			l.Error(err, "plan failed", "scaler", kind)
			continue
		}
		for _, e := range errs {
			l.Info("scheduling error", "job", e.JobID, "reason", e.Reason)
		}
		if len(spawns) > 0 {
			if _, err := backend.Spawn(ctx, spawns); err != nil {
				l.Error(err, "spawn failed")
			}
		}
		if len(deletions) > 0 {
			if _, err := backend.Delete(ctx, deletions); err != nil {
				l.Error(err, "delete failed")
			}
		}
	}
}

// reapZombies finds jobs past their deadline and bulk-resets them back
// to Created, the ZombieJobs task of spec §4.9.
func reapZombies(jobEngine *jobs.Engine, l *log.ComponentLogger) error {
	now := time.Now().UTC()
	for _, kind := range []types.ScalerKind{types.ScalerBareMetal, types.ScalerWindows, types.ScalerK8s} {
		stale, err := jobEngine.Deadlines(kind, time.Time{}, now, 0, 500)
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			continue
		}
		ids := make([]string, 0, len(stale))
		for _, j := range stale {
			ids = append(ids, j.ID)
		}
		if err := jobEngine.BulkReset(ids, "deadline exceeded", "scaler"); err != nil {
			return err
		}
		l.Info("reset zombie jobs", "scaler", kind, "count", len(ids))
	}
	return nil
}
