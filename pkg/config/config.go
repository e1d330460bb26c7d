package config

import (
	"log"
	"time"

	"nostr-jobs/pkg/coordinator"
	"nostr-jobs/pkg/health"
	"nostr-jobs/pkg/jobs"
	"nostr-jobs/pkg/relay"

	"github.com/spf13/pflag"
)

type Config struct {
	RelayURLs []string `validate:"required,min=1,dive,startswith=ws"`
	Connect   ConnectConfig
	Timeouts  TimeoutConfig
	Probe     ProbeConfig
	Cache     CacheConfig
	// BatchLimit is how many listings one fetch asks relays for.
	BatchLimit     int    `validate:"gte=1,lte=500"`
	AdminAddr      string `validate:"omitempty,hostname_port"`
	GRPCAddr       string `validate:"omitempty,hostname_port"`
	StatusInterval time.Duration
	Debug          bool
}

type ConnectConfig struct {
	Timeout  time.Duration `validate:"gt=0"`
	Attempts int           `validate:"gte=1,lte=10"`
	Backoff  time.Duration `validate:"gte=0"`
}

// TimeoutConfig holds the nested fetch bounds: the caller's wait must cover
// the relay call, which must cover one round trip.
type TimeoutConfig struct {
	Fetch     time.Duration `validate:"gt=0,gtfield=Relay"`
	Relay     time.Duration `validate:"gt=0,gtfield=Transport"`
	Transport time.Duration `validate:"gt=0"`
}

type ProbeConfig struct {
	Interval     time.Duration `validate:"gt=0"`
	Timeout      time.Duration `validate:"gt=0,gtfield=RelayTimeout"`
	RelayTimeout time.Duration `validate:"gt=0"`
}

type CacheConfig struct {
	ListingTTL time.Duration `validate:"gte=0"`
	StatsTTL   time.Duration `validate:"gte=0"`
}

// Load resolves configuration with precedence flags > environment > config
// file > defaults, then validates it.
func Load(flags *pflag.FlagSet, logger *log.Logger) (*Config, error) {
	flagSource := FlagSourceFromSet(flags)
	env := &EnvSource{}

	path := NewConfigResolver(flagSource, env).ResolveString(KeyConfigFile, "")
	file, err := NewFileSource(path, logger)
	if err != nil {
		return nil, err
	}

	cfg := Resolve(NewConfigResolver(flagSource, env, file))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve builds a Config from the resolver without validating it.
func Resolve(resolver *ConfigResolver) *Config {
	return &Config{
		RelayURLs: resolver.ResolveStrings(KeyRelayURLs, DefaultRelayURLs),
		Connect: ConnectConfig{
			Timeout:  resolver.ResolveDuration(KeyConnectTimeout, DefaultConnectTimeout),
			Attempts: resolver.ResolveInt(KeyConnectAttempts, DefaultConnectAttempts),
			Backoff:  resolver.ResolveDuration(KeyConnectBackoff, DefaultConnectBackoff),
		},
		Timeouts: TimeoutConfig{
			Fetch:     resolver.ResolveDuration(KeyFetchTimeout, DefaultFetchTimeout),
			Relay:     resolver.ResolveDuration(KeyRelayTimeout, DefaultRelayTimeout),
			Transport: resolver.ResolveDuration(KeyTransportTimeout, DefaultTransportTimeout),
		},
		Probe: ProbeConfig{
			Interval:     resolver.ResolveDuration(KeyProbeInterval, DefaultProbeInterval),
			Timeout:      resolver.ResolveDuration(KeyProbeTimeout, DefaultProbeTimeout),
			RelayTimeout: resolver.ResolveDuration(KeyProbeRelayTimeout, DefaultProbeRelayTimeout),
		},
		Cache: CacheConfig{
			ListingTTL: resolver.ResolveDuration(KeyListingTTL, DefaultListingTTL),
			StatsTTL:   resolver.ResolveDuration(KeyStatsTTL, DefaultStatsTTL),
		},
		BatchLimit:     resolver.ResolveInt(KeyBatchLimit, DefaultBatchLimit),
		AdminAddr:      resolver.ResolveString(KeyAdminAddr, DefaultAdminAddr),
		GRPCAddr:       resolver.ResolveString(KeyGRPCAddr, DefaultGRPCAddr),
		StatusInterval: resolver.ResolveDuration(KeyStatusInterval, DefaultStatusInterval),
		Debug:          resolver.ResolveBool(KeyDebug, false),
	}
}

func (c *Config) ClientConfig() relay.ClientConfig {
	return relay.ClientConfig{
		URLs:             c.RelayURLs,
		TransportTimeout: c.Timeouts.Transport,
		ConnectAttempts:  c.Connect.Attempts,
		ConnectBackoff:   c.Connect.Backoff,
	}
}

func (c *Config) CoordinatorConfig() coordinator.Config {
	return coordinator.Config{
		Timeout:      c.Timeouts.Fetch,
		FetchTimeout: c.Timeouts.Relay,
		TTLs: coordinator.TTLs{
			Listing: c.Cache.ListingTTL,
			Stats:   c.Cache.StatsTTL,
		},
		Debug: c.Debug,
	}
}

func (c *Config) HealthConfig() health.Config {
	return health.Config{
		Interval:     c.Probe.Interval,
		Timeout:      c.Probe.Timeout,
		FetchTimeout: c.Probe.RelayTimeout,
	}
}

func (c *Config) ServiceConfig() jobs.Config {
	return jobs.Config{
		BatchLimit:  c.BatchLimit,
		LatestLimit: coordinator.DefaultLimit,
	}
}
