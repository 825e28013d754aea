package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/alertsua/alerts"
	"github.com/briangreenhill/alertsua/cache"
	"github.com/briangreenhill/alertsua/internal/config"
)

// app is the state shared by every subcommand
type app struct {
	output  string
	noCache bool
	stats   bool

	cfg     *config.Config
	log     zerolog.Logger
	client  *alerts.Client
	reg     *prometheus.Registry
	closers []func() error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "alerts",
		Short: "Query air raid alerts from alerts.in.ua",
		Long: `Query active alerts, alert history and air raid statuses from the
alerts.in.ua API.

The API token is read from ALERTS_IN_UA_TOKEN. Responses are cached
according to ALERTS_CACHE_BACKEND (memory, file, redis or none).`,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.output, "output", "o", formatText, "output format: text, json or yaml")
	root.PersistentFlags().BoolVar(&a.noCache, "no-cache", false, "bypass the response cache")
	root.PersistentFlags().BoolVar(&a.stats, "stats", false, "print cache statistics to stderr when done")

	root.AddCommand(
		newActiveCmd(a),
		newHistoryCmd(a),
		newStatusCmd(a),
		newLocationsCmd(a),
		newCacheCmd(a),
	)
	return root
}

// setup loads configuration and builds the client. Commands that talk to the
// API call it from PreRunE.
func (a *app) setup(cmd *cobra.Command, needToken bool) error {
	if err := validFormat(a.output); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	probe := *cfg
	if !needToken && probe.Token == "" {
		probe.Token = "unused"
	}
	if err := probe.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(cfg.Level()).
		With().Timestamp().Logger()

	manager, err := a.buildManager(cmd.Context())
	if err != nil {
		return err
	}

	token := cfg.Token
	if token == "" {
		// commands without API calls still get a client for its cache
		token = "unused"
	}
	opts := []alerts.Option{
		alerts.WithBaseURL(cfg.BaseURL),
		alerts.WithTimeout(cfg.Timeout),
		alerts.WithCache(manager),
		alerts.WithLogger(a.log),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, alerts.WithUserAgent(cfg.UserAgent))
	}
	a.client, err = alerts.New(token, opts...)
	return err
}

func (a *app) buildManager(ctx context.Context) (*cache.Manager, error) {
	cc := a.cfg.Cache
	if !a.cfg.CachingEnabled() {
		return nil, nil
	}

	storeOpts := []cache.Option{cache.WithLogger(a.log)}
	var store cache.TTLCache
	switch cc.Backend {
	case config.BackendFile:
		fc, err := cache.NewFileCache(cc.Dir, storeOpts...)
		if err != nil {
			return nil, fmt.Errorf("file cache: %w", err)
		}
		store = fc
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cc.RedisAddr,
			Password: cc.RedisPassword,
			DB:       cc.RedisDB,
		})
		a.closers = append(a.closers, rdb.Close)
		rc := cache.NewRedisCache(rdb, storeOpts...)
		if err := rc.Ping(ctx); err != nil {
			a.log.Warn().Err(err).Str("addr", cc.RedisAddr).Msg("redis unreachable, responses will not be cached")
		}
		store = rc
	default:
		store = cache.NewMemoryCache(storeOpts...)
	}

	ttls, err := cc.TTLs()
	if err != nil {
		return nil, err
	}

	a.reg = prometheus.NewRegistry()
	opts := []cache.ManagerOption{
		cache.WithDefaultTTL(cc.DefaultTTL),
		cache.WithMinRefreshInterval(cc.MinRefreshInterval),
		cache.WithStaleIfError(alerts.IsRateLimited),
		cache.WithManagerLogger(a.log),
		cache.WithMetrics(cache.NewMetrics(a.reg)),
	}
	for typ, d := range ttls {
		opts = append(opts, cache.WithTTL(typ, d))
	}
	return cache.NewManager(store, opts...), nil
}

func (a *app) callOptions() []alerts.CallOption {
	if a.noCache {
		return []alerts.CallOption{alerts.NoCache()}
	}
	return nil
}

func (a *app) close(cmd *cobra.Command) error {
	if a.stats && a.reg != nil {
		if err := printStats(cmd.ErrOrStderr(), a.reg); err != nil {
			a.log.Warn().Err(err).Msg("gathering cache statistics failed")
		}
	}
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

