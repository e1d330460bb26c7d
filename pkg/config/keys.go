package config

import "time"

// Configuration key constants
// These are the environment variable names. Config file keys are the same
// names lower-cased without the JOBS_ prefix (JOBS_RELAY_URLS -> relay_urls).

const (
	KeyConfigFile = "JOBS_CONFIG_FILE"

	// Relay set
	KeyRelayURLs       = "JOBS_RELAY_URLS"
	KeyConnectTimeout  = "JOBS_CONNECT_TIMEOUT"
	KeyConnectAttempts = "JOBS_CONNECT_ATTEMPTS"
	KeyConnectBackoff  = "JOBS_CONNECT_BACKOFF"

	// Fetch bounds
	KeyFetchTimeout     = "JOBS_FETCH_TIMEOUT"
	KeyRelayTimeout     = "JOBS_RELAY_TIMEOUT"
	KeyTransportTimeout = "JOBS_TRANSPORT_TIMEOUT"
	KeyBatchLimit       = "JOBS_BATCH_LIMIT"

	// Health probe
	KeyProbeInterval     = "JOBS_PROBE_INTERVAL"
	KeyProbeTimeout      = "JOBS_PROBE_TIMEOUT"
	KeyProbeRelayTimeout = "JOBS_PROBE_RELAY_TIMEOUT"

	// Cache freshness
	KeyListingTTL = "JOBS_LISTING_TTL"
	KeyStatsTTL   = "JOBS_STATS_TTL"

	// Operator surfaces
	KeyAdminAddr      = "JOBS_ADMIN_ADDR"
	KeyGRPCAddr       = "JOBS_GRPC_ADDR"
	KeyStatusInterval = "JOBS_STATUS_INTERVAL"
	KeyDebug          = "JOBS_DEBUG"
)

// DefaultRelayURLs is the relay set used when none is configured.
var DefaultRelayURLs = []string{
	"wss://relay.damus.io",
	"wss://relay.nostr.band",
	"wss://nos.lol",
	"wss://nostr-pub.wellorder.net",
	"wss://nostr.wine",
}

// Default values for configuration
const (
	DefaultConnectTimeout  = 15 * time.Second
	DefaultConnectAttempts = 3
	DefaultConnectBackoff  = time.Second

	DefaultFetchTimeout     = 2500 * time.Millisecond
	DefaultRelayTimeout     = 2 * time.Second
	DefaultTransportTimeout = 1500 * time.Millisecond
	DefaultBatchLimit       = 100

	DefaultProbeInterval     = 30 * time.Second
	DefaultProbeTimeout      = 5 * time.Second
	DefaultProbeRelayTimeout = 3 * time.Second

	DefaultListingTTL = 60 * time.Second
	DefaultStatsTTL   = 120 * time.Second

	DefaultAdminAddr      = "127.0.0.1:8088"
	DefaultGRPCAddr       = ""
	DefaultStatusInterval = time.Minute
)

// CLI flag name constants
const (
	FlagConfigFile        = "config"
	FlagRelayURLs         = "relay"
	FlagConnectTimeout    = "connect-timeout"
	FlagConnectAttempts   = "connect-attempts"
	FlagConnectBackoff    = "connect-backoff"
	FlagFetchTimeout      = "fetch-timeout"
	FlagRelayTimeout      = "relay-timeout"
	FlagTransportTimeout  = "transport-timeout"
	FlagBatchLimit        = "batch-limit"
	FlagProbeInterval     = "probe-interval"
	FlagProbeTimeout      = "probe-timeout"
	FlagProbeRelayTimeout = "probe-relay-timeout"
	FlagListingTTL        = "listing-ttl"
	FlagStatsTTL          = "stats-ttl"
	FlagAdminAddr         = "admin-addr"
	FlagGRPCAddr          = "grpc-addr"
	FlagStatusInterval    = "status-interval"
	FlagDebug             = "debug"
)

// Help message constants
const (
	AppName        = "nostr-jobs"
	AppDescription = "Query Nostr job listings (kind 9993) with caching and relay health tracking"

	HelpConfigFile        = "Path to a YAML config file"
	HelpRelayURLs         = "Relay URL (repeatable)"
	HelpConnectTimeout    = "Upper bound for the initial relay connection"
	HelpConnectAttempts   = "Dial attempts per relay"
	HelpConnectBackoff    = "Backoff between dial attempts, multiplied by attempt number"
	HelpFetchTimeout      = "Longest a caller waits for a fetch, queueing included"
	HelpRelayTimeout      = "Bound on a single relay call"
	HelpTransportTimeout  = "Bound on one relay round trip"
	HelpBatchLimit        = "Listings pulled per fetch before filtering"
	HelpProbeInterval     = "Interval between health probes"
	HelpProbeTimeout      = "Bound on a whole health probe"
	HelpProbeRelayTimeout = "Bound on the relay call inside a health probe"
	HelpListingTTL        = "Freshness window for search results"
	HelpStatsTTL          = "Freshness window for statistics"
	HelpAdminAddr         = "Admin HTTP listen address (empty disables)"
	HelpGRPCAddr          = "gRPC health checking listen address (empty disables)"
	HelpStatusInterval    = "Interval between status log lines (0 disables)"
	HelpDebug             = "Enable debug logging"

	HelpEnvironmentVars = "Environment Variables:"
	HelpNote            = "Note: CLI options override environment variables, which override the config file"
)
