// Package config loads Thorium's startup configuration once via viper,
// the way common/pkg/config does for the teacher's services. Config is
// immutable after Load returns (spec §9, "Global mutable state").
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration snapshot.
type Config struct {
	// HTTPAddr is the bind address for pkg/api.
	HTTPAddr string `mapstructure:"http_addr"`

	// SecretKey, if set, is accepted as the secret_key field of POST
	// /users/bootstrap to mint an admin account without an existing
	// bearer token.
	SecretKey string `mapstructure:"secret_key"`

	// DatabaseDSN is the DSN for pkg/storage/sqlstore (postgres via gorm).
	DatabaseDSN string `mapstructure:"database_dsn"`

	// ObjectStoreBucket names the S3 bucket backing pkg/objectstore.
	ObjectStoreBucket string `mapstructure:"object_store_bucket"`

	// KubeConfig is the path consulted by the k8s scheduler backend;
	// empty means in-cluster config.
	KubeConfig string `mapstructure:"kubeconfig"`

	// MaxTriggerDepth bounds trigger chains (spec §4.8, default 6).
	MaxTriggerDepth int `mapstructure:"max_trigger_depth"`

	// EventBatchLimit bounds a single evaluator pop (spec §4.8, default 1000).
	EventBatchLimit int `mapstructure:"event_batch_limit"`

	// AugmentConcurrency bounds concurrent tag-map fetches during the
	// evaluator's augment phase (spec §4.8, default 30).
	AugmentConcurrency int `mapstructure:"augment_concurrency"`

	// AugmentRetryDelay is how far in the future a failed augmentation
	// fetch's retry timestamp is set (spec §4.8 / §5, default 3m).
	AugmentRetryDelay time.Duration `mapstructure:"augment_retry_delay"`

	// FairShareDecrement is the per-tick decay applied by
	// DecreaseFairShare (spec §9 Open Questions).
	FairShareDecrement int `mapstructure:"fair_share_decrement"`

	// TaskDelays gives the default cadence for each named scaler task
	// (spec §4.9); backends may override via task_delay(task).
	TaskDelays map[string]time.Duration `mapstructure:"task_delays"`

	// EventsChannelCapacity / ProgressChannelCapacity bound the bounded
	// producer-consumer channels of spec §5 (defaults 1000 / 10000).
	EventsChannelCapacity   int `mapstructure:"events_channel_capacity"`
	ProgressChannelCapacity int `mapstructure:"progress_channel_capacity"`

	// TraceEndpoint is the OTLP gRPC collector address; empty disables
	// tracing (pkg/trace.Init becomes a no-op).
	TraceEndpoint string `mapstructure:"trace_endpoint"`

	// TraceSamplingRatio is the fraction of traces sampled, default 1.0.
	TraceSamplingRatio float64 `mapstructure:"trace_sampling_ratio"`
}

func defaults() *Config {
	return &Config{
		HTTPAddr:                ":8080",
		MaxTriggerDepth:         6,
		EventBatchLimit:         1000,
		AugmentConcurrency:      30,
		AugmentRetryDelay:       3 * time.Minute,
		FairShareDecrement:      1,
		EventsChannelCapacity:   1000,
		ProgressChannelCapacity: 10000,
		TraceSamplingRatio:      1.0,
		TaskDelays: map[string]time.Duration{
			"ZombieJobs":        30 * time.Second,
			"LdapSync":          10 * time.Minute,
			"CacheReload":       1 * time.Minute,
			"Resources":         15 * time.Second,
			"UpdateRuntimes":    1 * time.Hour,
			"Cleanup":           1 * time.Hour,
			"DecreaseFairShare": 1 * time.Minute,
		},
	}
}

// Load reads THORIUM_-prefixed environment variables and, when
// configPath is non-empty, the config file at configPath into a Config,
// falling back to defaults() for anything unset. With an empty
// configPath no file is read.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("THORIUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := defaults()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	v.SetDefault("http_addr", cfg.HTTPAddr)
	v.SetDefault("max_trigger_depth", cfg.MaxTriggerDepth)
	v.SetDefault("event_batch_limit", cfg.EventBatchLimit)
	v.SetDefault("augment_concurrency", cfg.AugmentConcurrency)
	v.SetDefault("fair_share_decrement", cfg.FairShareDecrement)
	v.SetDefault("events_channel_capacity", cfg.EventsChannelCapacity)
	v.SetDefault("progress_channel_capacity", cfg.ProgressChannelCapacity)
	v.SetDefault("trace_sampling_ratio", cfg.TraceSamplingRatio)

	out := defaults()
	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}
	return out, nil
}
