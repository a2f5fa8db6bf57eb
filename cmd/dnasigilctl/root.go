package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dnasigil/internal/config"
	"dnasigil/internal/events"
	"dnasigil/internal/storage"
	"dnasigil/internal/telemetry"
	"dnasigil/pkg/dnasigil"
)

const defaultDataDir = "dnasigil-data"

type rootOptions struct {
	configPath  string
	storeKind   string
	dbPath      string
	seed        int64
	metricsFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "dnasigilctl",
		Short:         "Encode, evolve, heal and pair DNA-sigil entities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "optional YAML config file")
	flags.StringVar(&opts.storeKind, "store", "", "store backend: memory|sqlite|badger (overrides config)")
	flags.StringVar(&opts.dbPath, "db", "", "sqlite file or badger directory (overrides config)")
	flags.Int64Var(&opts.seed, "seed", 0, "rng seed (overrides config; 0 keeps config)")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write operation metrics to this file in Prometheus text format on exit")

	cmd.AddCommand(
		newEncodeCommand(opts),
		newEvolveCommand(opts),
		newHealCommand(opts),
		newInteractCommand(opts),
		newHistoryCommand(opts),
		newMetricsCommand(opts),
		newExportCommand(opts),
	)
	return cmd
}

// session is one opened client plus everything that must be released with
// it.
type session struct {
	client *dnasigil.Client
	logger *zap.Logger
	close  func() error
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	base := config.Default()
	base.Store = config.StoreConfig{Kind: storage.KindBadger, Path: defaultDataDir}

	cfg, err := config.LoadWith(base, o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.storeKind != "" {
		cfg.Store.Kind = o.storeKind
	}
	if o.dbPath != "" {
		cfg.Store.Path = o.dbPath
	}
	if o.seed != 0 {
		cfg.Seed = o.seed
	}
	if o.metricsFile != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Textfile = o.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (o *rootOptions) open(ctx context.Context) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, _, err := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	// Metrics are only collected when there is a textfile to dump them to.
	var (
		metrics  *telemetry.Metrics
		registry *prometheus.Registry
	)
	switch {
	case cfg.Metrics.Enabled && cfg.Metrics.Textfile != "":
		registry = prometheus.NewRegistry()
		metrics = telemetry.NewMetrics(registry)
	case cfg.Metrics.Enabled:
		logger.Warn("metrics enabled without metrics.textfile, nothing will be collected")
	}

	var (
		publisher events.Publisher = events.Nop{}
		channel   *events.Channel
		drained   sync.WaitGroup
	)
	if cfg.EventBuffer > 0 {
		channel = events.NewChannel(cfg.EventBuffer)
		publisher = channel
		drained.Add(1)
		go func() {
			defer drained.Done()
			for evt := range channel.Events() {
				logger.Debug("event", zap.String("name", string(evt.Name)), zap.String("event_id", evt.ID))
			}
		}()
	}

	client, err := dnasigil.New(ctx, dnasigil.Options{
		StoreKind: cfg.Store.Kind,
		DBPath:    cfg.Store.Path,
		Seed:      cfg.Seed,
		Logger:    logger,
		Publisher: publisher,
		Metrics:   metrics,
	})
	if err != nil {
		if channel != nil {
			channel.Close()
			drained.Wait()
		}
		_ = logger.Sync()
		return nil, err
	}

	return &session{
		client: client,
		logger: logger,
		close: func() error {
			err := client.Close()
			if channel != nil {
				channel.Close()
				drained.Wait()
				if n := channel.Dropped(); n > 0 {
					logger.Warn("events dropped", zap.Int64("count", n))
				}
			}
			if registry != nil {
				if werr := telemetry.WriteTextfile(cfg.Metrics.Textfile, registry); werr != nil && err == nil {
					err = werr
				}
			}
			_ = logger.Sync()
			return err
		},
	}, nil
}

// withSession opens a client for the duration of fn.
func (o *rootOptions) withSession(cmd *cobra.Command, fn func(context.Context, *session) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := o.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil && err == nil {
			err = fmt.Errorf("close session: %w", cerr)
		}
	}()
	return fn(ctx, s)
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
