// Command thorium-api serves the gin HTTP surface of spec §6, wiring
// the in-process memstore by default. Grounded on apiserver/cmd's
// config-then-manager-then-serve main shape.
package main

import (
	"context"
	"database/sql"
	"flag"

	_ "github.com/lib/pq"

	"github.com/thorium-sh/thorium/pkg/api"
	"github.com/thorium-sh/thorium/pkg/artifacts"
	"github.com/thorium-sh/thorium/pkg/config"
	"github.com/thorium-sh/thorium/pkg/events"
	"github.com/thorium-sh/thorium/pkg/identity"
	"github.com/thorium-sh/thorium/pkg/jobs"
	"github.com/thorium-sh/thorium/pkg/log"
	"github.com/thorium-sh/thorium/pkg/netpolicy"
	"github.com/thorium-sh/thorium/pkg/output"
	"github.com/thorium-sh/thorium/pkg/reactions"
	"github.com/thorium-sh/thorium/pkg/registry"
	"github.com/thorium-sh/thorium/pkg/storage/memstore"
	"github.com/thorium-sh/thorium/pkg/storage/sqlstore"
	"github.com/thorium-sh/thorium/pkg/storage/tagstore"
	"github.com/thorium-sh/thorium/pkg/tags"
	"github.com/thorium-sh/thorium/pkg/trace"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to thorium.yml")
	log.Init()
	flag.Parse()
	defer log.Sync()

	l := log.Component("thorium-api")
	cfg, err := config.Load(configPath)
	if err != nil {
		l.Error(err, "failed to load config")
		return
	}

	if err := trace.Init(trace.Config{ServiceName: "thorium-api", Endpoint: cfg.TraceEndpoint, SamplingRatio: cfg.TraceSamplingRatio}); err != nil {
		l.Error(err, "failed to initialise tracing")
	}
	defer trace.Shutdown(context.Background())

	store := memstore.New()
	idReg := identity.NewRegistry(store)

	// registry and tags hot paths get the production gorm/postgres and
	// squirrel+sqlx backends (spec §9) whenever a DSN is configured;
	// every other concern stays on memstore, which has no sqlstore
	// counterpart to swap to.
	var registryStore registry.Store = store
	var tagStore tags.Store = store
	if cfg.DatabaseDSN != "" {
		sqlReg, err := sqlstore.Open(cfg.DatabaseDSN, nil)
		if err != nil {
			l.Error(err, "failed to open sqlstore")
			return
		}
		registryStore = sqlReg

		db, err := sql.Open("postgres", cfg.DatabaseDSN)
		if err != nil {
			l.Error(err, "failed to open tagstore connection")
			return
		}
		tagStore = tagstore.Open(db)
	}

	reg := registry.New(registryStore, idReg)
	jobEngine := jobs.New(store)
	reactionEngine := reactions.New(store, jobEngine, reg)
	eventBus := events.New(store)
	artifactReg := artifacts.New(store, eventBus)
	tagSvc := tags.New(tagStore, tags.DefaultBucketSize, eventBus)
	outputSvc := output.New(store, tagSvc)
	policyReg := netpolicy.New(store)

	router := api.NewRouter(api.Deps{
		Users:     api.NewUserService(store, cfg.SecretKey),
		Registry:  reg,
		Identity:  idReg,
		Jobs:      jobEngine,
		Reactions: reactionEngine,
		Output:    outputSvc,
		Artifacts: artifactReg,
		Tags:      tagSvc,
		Events:    eventBus,
		Policies:  policyReg,
		Banner:    "Thorium job orchestration",
	})

	l.Info("starting thorium-api", "addr", cfg.HTTPAddr)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		l.Error(err, "server exited")
	}
}
