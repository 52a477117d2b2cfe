// Command thorium-reactor runs the node agent loop of spec §4.11 on a
// single machine, launching worker processes directly (the BareMetal
// scaler kind). Grounded on node-agent's poll-and-launch main shape.
package main

import (
	"context"
	"flag"
	"os"
	"os/exec"
	"os/signal"
	"os/user"
	"syscall"

	"github.com/thorium-sh/thorium/pkg/config"
	"github.com/thorium-sh/thorium/pkg/log"
	"github.com/thorium-sh/thorium/pkg/reactor"
	"github.com/thorium-sh/thorium/pkg/storage/memstore"
	"github.com/thorium-sh/thorium/pkg/trace"
	"github.com/thorium-sh/thorium/pkg/types"
)

func main() {
	var configPath, cluster, node, workerBinary string
	flag.StringVar(&configPath, "config", "", "path to thorium.yml")
	flag.StringVar(&cluster, "cluster", "default", "cluster this node belongs to")
	flag.StringVar(&node, "node", hostnameOrDefault(), "this node's name")
	flag.StringVar(&workerBinary, "worker-binary", "thorium-worker", "executable launched per claimed worker")
	log.Init()
	flag.Parse()
	defer log.Sync()

	l := log.Component("thorium-reactor")
	cfg, err := config.Load(configPath)
	if err != nil {
		l.Error(err, "failed to load config")
		return
	}

	if err := trace.Init(trace.Config{ServiceName: "thorium-reactor", Endpoint: cfg.TraceEndpoint, SamplingRatio: cfg.TraceSamplingRatio}); err != nil {
		l.Error(err, "failed to initialise tracing")
	}
	defer trace.Shutdown(context.Background())

	store := memstore.New()
	launcher := &processLauncher{binary: workerBinary}
	agent := reactor.New(cluster, node, types.ScalerBareMetal, store, launcher, "dev")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.Info("starting thorium-reactor", "cluster", cluster, "node", node)
	if err := agent.Run(ctx); err != nil {
		l.Error(err, "reactor exited")
	}
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil {
		return "node"
	}
	return h
}

// processLauncher implements reactor.Launcher by exec'ing a worker
// binary per claimed slot, the BareMetal-scaler analogue of node-agent's
// process-based job launch.
type processLauncher struct {
	binary    string
	processes map[string]*os.Process
}

func (p *processLauncher) EnsureKeys(user string) error {
	_, err := lookupUser(user)
	return err
}

func lookupUser(name string) (*user.User, error) { return user.Lookup(name) }

func (p *processLauncher) Launch(ctx context.Context, w *types.Worker) error {
	if p.processes == nil {
		p.processes = map[string]*os.Process{}
	}
	cmd := exec.CommandContext(ctx, p.binary, "--worker", w.Name, "--group", w.Group, "--pipeline", w.Pipeline)
	if err := cmd.Start(); err != nil {
		return err
	}
	p.processes[w.Name] = cmd.Process
	return nil
}

func (p *processLauncher) Shutdown(ctx context.Context, w *types.Worker) error {
	proc, ok := p.processes[w.Name]
	if !ok {
		return nil
	}
	delete(p.processes, w.Name)
	return proc.Kill()
}

func (p *processLauncher) Resources(ctx context.Context) (types.ImageResources, types.ImageResources, error) {
	// A real implementation reads /proc or calls into an exporter
	// (node-agent/pkg/exporters). Left as a fixed capacity placeholder
	// until a concrete resource source is wired.
	total := types.ImageResources{}
	available := types.ImageResources{}
	return total, available, nil
}
