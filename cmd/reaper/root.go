package main

import (
	"context"

	"github.com/agentuity/session-reaper/config"
	"github.com/agentuity/session-reaper/logger"
	"github.com/agentuity/session-reaper/registry"
	"github.com/agentuity/session-reaper/registry/jolokia"
	"github.com/agentuity/session-reaper/registry/redisstore"
	"github.com/agentuity/session-reaper/sys"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	newLogger = func(cfg *config.Config) logger.Logger {
		return logger.NewConsoleLogger(cfg.Level())
	}
	connect = connectRegistry
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "reaper",
		Short:         "Expire idle sessions of the web applications on an application server",
		Version:       jolokia.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runReaper,
	}
	config.AddFlags(root)
	root.AddCommand(newRunCommand(), newListCommand(), newAppsCommand())
	return root
}

// state is what every subcommand needs once configuration is resolved and the registry
// answered a ping.
type state struct {
	cfg      *config.Config
	logger   logger.Logger
	provider registry.Provider
	close    func()
}

func connectRegistry(ctx context.Context, log logger.Logger, cfg *config.Config) (registry.Provider, func(), error) {
	switch cfg.Registry {
	case config.KindRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			// the parse error quotes the raw url, credentials included
			return nil, nil, errors.Newf("invalid redis url %s", cfg.DisplayEndpoint())
		}
		rdb := redis.NewClient(opts)
		return redisstore.New(rdb, redisstore.WithPrefix(cfg.RedisPrefix)), func() { rdb.Close() }, nil
	default:
		client := jolokia.New(log.WithPrefix("[jolokia]"), cfg.JolokiaURL)
		return jolokia.NewRegistry(client), func() {}, nil
	}
}

// prepare loads the configuration and connects to the registry. Errors returned here
// end the process with a non-zero status.
func prepare(cmd *cobra.Command) (*state, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg).With(map[string]interface{}{"run": uuid.NewString()})
	endpoint := cfg.DisplayEndpoint()
	if !sys.IsLocalhost(cfg.Endpoint()) {
		log.Warn("%s is not a loopback address, requests to it are sent without authentication", endpoint)
	}
	provider, closer, err := connect(cmd.Context(), log, cfg)
	if err != nil {
		return nil, err
	}
	if err := provider.Ping(cmd.Context()); err != nil {
		closer()
		return nil, errors.Wrapf(err, "error connecting to %s registry at %s", cfg.Registry, endpoint)
	}
	log.Debug("connected to %s registry at %s", cfg.Registry, endpoint)
	return &state{cfg: cfg, logger: log, provider: provider, close: closer}, nil
}

// discover returns false after logging when the registry could not be queried.
func (s *state) discover(ctx context.Context) ([]registry.ApplicationID, bool) {
	apps, err := registry.Discover(ctx, s.provider, s.cfg.Pattern, *s.cfg.Denylist)
	if err != nil {
		s.logger.Error("error querying applications matching %s: %v", s.cfg.Pattern, err)
		return nil, false
	}
	s.logger.Debug("found %d applications matching %s", len(apps), s.cfg.Pattern)
	return apps, true
}
