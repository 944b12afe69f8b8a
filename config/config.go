// Package config resolves the reaper settings from flags, REAPER_* environment
// variables, an optional YAML file and defaults, in that order.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/agentuity/session-reaper/logger"
	"github.com/agentuity/session-reaper/reaper"
	"github.com/agentuity/session-reaper/registry"
	"github.com/agentuity/session-reaper/registry/jolokia"
	"github.com/agentuity/session-reaper/registry/redisstore"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

const (
	KindJolokia = "jolokia"
	KindRedis   = "redis"

	DefaultRedisURL = "redis://localhost:6379/0"
)

// Duration accepts str2duration syntax such as 90s, 2m or 1d in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := parseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "line %d", value.Line)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return str2duration.String(time.Duration(d)), nil
}

func parseDuration(s string) (time.Duration, error) {
	v, err := str2duration.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration %q", s)
	}
	return v, nil
}

type Config struct {
	Registry               string    `yaml:"registry"`
	JolokiaURL             string    `yaml:"jolokia_url,omitempty"`
	RedisURL               string    `yaml:"redis_url,omitempty"`
	RedisPrefix            string    `yaml:"redis_prefix,omitempty"`
	Pattern                string    `yaml:"pattern,omitempty"`
	Denylist               *[]string `yaml:"denylist,omitempty"`
	UsedTimeCutoff         *Duration `yaml:"used_time_cutoff,omitempty"`
	ShortInactiveThreshold *Duration `yaml:"short_inactive_threshold,omitempty"`
	LongInactiveThreshold  *Duration `yaml:"long_inactive_threshold,omitempty"`
	LogLevel               string    `yaml:"log_level,omitempty"`
}

type setting struct {
	flag, env, usage string
}

var (
	flagConfig   = setting{"config", "REAPER_CONFIG", "path to a YAML config file"}
	flagRegistry = setting{"registry", "REAPER_REGISTRY", "session registry: jolokia or redis"}
	flagJolokia  = setting{"jolokia-url", "REAPER_JOLOKIA_URL", "Jolokia agent URL"}
	flagRedis    = setting{"redis-url", "REAPER_REDIS_URL", "Redis URL"}
	flagPrefix   = setting{"redis-prefix", "REAPER_REDIS_PREFIX", "Redis key prefix"}
	flagPattern  = setting{"pattern", "REAPER_PATTERN", "application discovery pattern"}
	flagDenylist = setting{"denylist", "REAPER_DENYLIST", "comma separated applications never reaped"}
	flagCutoff   = setting{"used-time-cutoff", "REAPER_USED_TIME_CUTOFF", "used time below which a session is a single page view"}
	flagShort    = setting{"short-inactive-threshold", "REAPER_SHORT_INACTIVE_THRESHOLD", "inactivity before a single page view session expires"}
	flagLong     = setting{"long-inactive-threshold", "REAPER_LONG_INACTIVE_THRESHOLD", "inactivity before any other session expires"}
	flagLogLevel = setting{"log-level", logger.EnvLogLevel, "log level: trace, debug, info, warn or error"}
)

// AddFlags registers the persistent flags read by Load. Flags default to empty so that
// the environment and the config file can fill in values the user did not pass.
func AddFlags(cmd *cobra.Command) {
	for _, s := range []setting{flagConfig, flagRegistry, flagJolokia, flagRedis, flagPrefix, flagPattern, flagDenylist, flagCutoff, flagShort, flagLong, flagLogLevel} {
		cmd.PersistentFlags().String(s.flag, "", s.usage)
	}
}

func lookup(cmd *cobra.Command, s setting) (string, bool) {
	if f := cmd.Flag(s.flag); f != nil && f.Changed {
		return f.Value.String(), true
	}
	if val, ok := os.LookupEnv(s.env); ok && val != "" {
		return val, true
	}
	return "", false
}

// FlagOrEnv will try and get a flag from the cobra.Command and if not found, look it up in the environment
// and fallback to defaultValue if non found
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	if val, ok := lookup(cmd, setting{flag: flagName, env: envName}); ok {
		return val
	}
	return defaultValue
}

// LogLevel returns the level from the log-level flag or REAPER_LOG_LEVEL, defaulting to info.
func LogLevel(cmd *cobra.Command) logger.LogLevel {
	level, _ := logger.ParseLevel(FlagOrEnv(cmd, flagLogLevel.flag, flagLogLevel.env, "info"))
	return level
}

// ReadFile decodes a YAML config file.
func ReadFile(filename string) (*Config, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config %s", filename)
	}
	var c Config
	if err := yaml.Unmarshal(buf, &c); err != nil {
		return nil, errors.Wrapf(err, "error parsing config %s", filename)
	}
	return &c, nil
}

// Load resolves the configuration for cmd and validates it.
func Load(cmd *cobra.Command) (*Config, error) {
	c := &Config{}
	if fn, ok := lookup(cmd, flagConfig); ok {
		fc, err := ReadFile(fn)
		if err != nil {
			return nil, err
		}
		c = fc
	}
	str := func(dst *string, s setting) {
		if val, ok := lookup(cmd, s); ok {
			*dst = val
		}
	}
	str(&c.Registry, flagRegistry)
	str(&c.JolokiaURL, flagJolokia)
	str(&c.RedisURL, flagRedis)
	str(&c.RedisPrefix, flagPrefix)
	str(&c.Pattern, flagPattern)
	str(&c.LogLevel, flagLogLevel)
	if val, ok := lookup(cmd, flagDenylist); ok {
		list := SplitList(val)
		c.Denylist = &list
	}
	for _, d := range []struct {
		dst **Duration
		s   setting
	}{
		{&c.UsedTimeCutoff, flagCutoff},
		{&c.ShortInactiveThreshold, flagShort},
		{&c.LongInactiveThreshold, flagLong},
	} {
		val, ok := lookup(cmd, d.s)
		if !ok {
			continue
		}
		v, err := parseDuration(val)
		if err != nil {
			return nil, errors.Wrapf(err, "--%s", d.s.flag)
		}
		dv := Duration(v)
		*d.dst = &dv
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// SplitList splits a comma separated list, dropping empty entries.
func SplitList(val string) []string {
	list := []string{}
	for _, v := range strings.Split(val, ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}

func (c *Config) applyDefaults() {
	if c.Registry == "" {
		c.Registry = KindJolokia
	}
	c.Registry = strings.ToLower(c.Registry)
	if c.JolokiaURL == "" {
		c.JolokiaURL = jolokia.DefaultURL
	}
	if c.RedisURL == "" {
		c.RedisURL = DefaultRedisURL
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = redisstore.DefaultPrefix
	}
	if c.Pattern == "" {
		if c.Registry == KindRedis {
			c.Pattern = redisstore.DefaultPattern
		} else {
			c.Pattern = jolokia.DefaultPattern
		}
	}
	if c.Denylist == nil {
		list := append([]string(nil), registry.DefaultDenylist...)
		c.Denylist = &list
	}
	dflt := reaper.DefaultPolicy()
	for _, d := range []struct {
		dst **Duration
		val time.Duration
	}{
		{&c.UsedTimeCutoff, dflt.UsedTimeCutoff},
		{&c.ShortInactiveThreshold, dflt.ShortInactiveThreshold},
		{&c.LongInactiveThreshold, dflt.LongInactiveThreshold},
	} {
		if *d.dst == nil {
			v := Duration(d.val)
			*d.dst = &v
		}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	switch c.Registry {
	case KindJolokia, KindRedis:
	default:
		return errors.Newf("unknown registry %q, expected %s or %s", c.Registry, KindJolokia, KindRedis)
	}
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return errors.Newf("unknown log level %q", c.LogLevel)
	}
	return c.Policy().Validate()
}

// Policy returns the expiry policy. It must only be called after defaults are applied.
func (c *Config) Policy() reaper.Policy {
	return reaper.Policy{
		UsedTimeCutoff:         time.Duration(*c.UsedTimeCutoff),
		ShortInactiveThreshold: time.Duration(*c.ShortInactiveThreshold),
		LongInactiveThreshold:  time.Duration(*c.LongInactiveThreshold),
	}
}

// Endpoint is the address the selected registry connects to.
func (c *Config) Endpoint() string {
	if c.Registry == KindRedis {
		return c.RedisURL
	}
	return c.JolokiaURL
}

// Level is the parsed log level.
func (c *Config) Level() logger.LogLevel {
	level, _ := logger.ParseLevel(c.LogLevel)
	return level
}
