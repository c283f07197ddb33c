package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/market/yahoo"
	"github.com/rustyeddy/papertrader/pkg/circuit"
	"github.com/rustyeddy/papertrader/recovery"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app is everything a command needs, wired from the configuration.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	store    *ledger.Store
	recovery *recovery.Manager
	engine   *broker.Engine
	market   market.Provider

	closers []io.Closer
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(cfgFile); err != nil {
			return nil, err
		}
	}
	if dbPath != "" {
		cfg.Ledger.DBPath = dbPath
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

// openApp opens the ledger, runs startup recovery and connects the order
// engine to the backup cache.
func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	cash, err := cfg.Ledger.Cash()
	if err != nil {
		return nil, fmt.Errorf("ledger.initial_cash: %w", err)
	}
	store, err := ledger.Open(ctx, cfg.Ledger.DBPath, ledger.WithLogger(log), ledger.WithInitialCash(cash))
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, store: store, closers: []io.Closer{store}}

	cache, err := a.newCache()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.recovery = recovery.NewManager(store, cache, recovery.WithLogger(log))
	// never fatal: a failed recovery starts from a fresh ledger
	_, _ = a.recovery.Restore(ctx)

	a.engine = broker.NewEngine(store, broker.WithLogger(log))
	a.engine.OnCommit(a.recovery.AfterCommit)

	if a.market, err = a.newProvider(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) newCache() (recovery.Cache, error) {
	b := a.cfg.Backup
	switch b.Type {
	case "file":
		return recovery.NewFileCache(b.Path), nil
	case "redis":
		ttl, err := b.Redis.ParseTTL()
		if err != nil {
			return nil, fmt.Errorf("backup.redis.ttl: %w", err)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     b.Redis.Addr,
			Password: b.Redis.Password,
			DB:       b.Redis.DB,
		})
		a.closers = append(a.closers, client)
		return recovery.NewRedisCache(client, b.Redis.Key, ttl), nil
	}
	return recovery.NopCache{}, nil
}

func (a *app) newProvider() (market.Provider, error) {
	m := a.cfg.Market
	if m.Provider == "static" {
		prices, err := m.StaticPrices()
		if err != nil {
			return nil, err
		}
		qs := market.NewQuoteStore()
		for sym, p := range prices {
			qs.Set(sym, p)
		}
		return qs, nil
	}

	timeout, err := m.ParseTimeout()
	if err != nil {
		return nil, err
	}
	reset, err := m.ParseResetTimeout()
	if err != nil {
		return nil, err
	}
	opts := []yahoo.Option{
		yahoo.WithLogger(a.log),
		yahoo.WithBreaker(circuit.New("yahoo", m.FailureThreshold, reset, a.log)),
	}
	if m.BaseURL != "" {
		opts = append(opts, yahoo.WithBaseURL(m.BaseURL))
	}
	if m.Suffix != "" {
		opts = append(opts, yahoo.WithSuffix(m.Suffix))
	}
	if timeout > 0 {
		opts = append(opts, yahoo.WithTimeout(timeout))
	}
	return yahoo.NewClient(opts...), nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// withApp opens the app for the duration of fn.
func withApp(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a, cmd, args)
	}
}
