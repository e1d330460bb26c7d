package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

type option struct {
	flag string
	key  string
	help string
}

// options lists every setting in help order.
var options = []option{
	{FlagConfigFile, KeyConfigFile, HelpConfigFile},
	{FlagRelayURLs, KeyRelayURLs, HelpRelayURLs},
	{FlagConnectTimeout, KeyConnectTimeout, HelpConnectTimeout},
	{FlagConnectAttempts, KeyConnectAttempts, HelpConnectAttempts},
	{FlagConnectBackoff, KeyConnectBackoff, HelpConnectBackoff},
	{FlagFetchTimeout, KeyFetchTimeout, HelpFetchTimeout},
	{FlagRelayTimeout, KeyRelayTimeout, HelpRelayTimeout},
	{FlagTransportTimeout, KeyTransportTimeout, HelpTransportTimeout},
	{FlagBatchLimit, KeyBatchLimit, HelpBatchLimit},
	{FlagProbeInterval, KeyProbeInterval, HelpProbeInterval},
	{FlagProbeTimeout, KeyProbeTimeout, HelpProbeTimeout},
	{FlagProbeRelayTimeout, KeyProbeRelayTimeout, HelpProbeRelayTimeout},
	{FlagListingTTL, KeyListingTTL, HelpListingTTL},
	{FlagStatsTTL, KeyStatsTTL, HelpStatsTTL},
	{FlagAdminAddr, KeyAdminAddr, HelpAdminAddr},
	{FlagGRPCAddr, KeyGRPCAddr, HelpGRPCAddr},
	{FlagStatusInterval, KeyStatusInterval, HelpStatusInterval},
	{FlagDebug, KeyDebug, HelpDebug},
}

// RegisterFlags defines every configuration flag on fs. Flag defaults are
// for help output only; unset flags never shadow env or file values.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfigFile, "", HelpConfigFile)
	fs.StringSlice(FlagRelayURLs, DefaultRelayURLs, HelpRelayURLs)
	fs.Duration(FlagConnectTimeout, DefaultConnectTimeout, HelpConnectTimeout)
	fs.Int(FlagConnectAttempts, DefaultConnectAttempts, HelpConnectAttempts)
	fs.Duration(FlagConnectBackoff, DefaultConnectBackoff, HelpConnectBackoff)
	fs.Duration(FlagFetchTimeout, DefaultFetchTimeout, HelpFetchTimeout)
	fs.Duration(FlagRelayTimeout, DefaultRelayTimeout, HelpRelayTimeout)
	fs.Duration(FlagTransportTimeout, DefaultTransportTimeout, HelpTransportTimeout)
	fs.Int(FlagBatchLimit, DefaultBatchLimit, HelpBatchLimit)
	fs.Duration(FlagProbeInterval, DefaultProbeInterval, HelpProbeInterval)
	fs.Duration(FlagProbeTimeout, DefaultProbeTimeout, HelpProbeTimeout)
	fs.Duration(FlagProbeRelayTimeout, DefaultProbeRelayTimeout, HelpProbeRelayTimeout)
	fs.Duration(FlagListingTTL, DefaultListingTTL, HelpListingTTL)
	fs.Duration(FlagStatsTTL, DefaultStatsTTL, HelpStatsTTL)
	fs.String(FlagAdminAddr, DefaultAdminAddr, HelpAdminAddr)
	fs.String(FlagGRPCAddr, DefaultGRPCAddr, HelpGRPCAddr)
	fs.Duration(FlagStatusInterval, DefaultStatusInterval, HelpStatusInterval)
	fs.Bool(FlagDebug, false, HelpDebug)
}

// FlagSourceFromSet collects the flags that were set explicitly on fs.
func FlagSourceFromSet(fs *pflag.FlagSet) *FlagSource {
	keys := make(map[string]string, len(options))
	for _, o := range options {
		keys[o.flag] = o.key
	}

	src := NewFlagSource()
	fs.Visit(func(f *pflag.Flag) {
		key, ok := keys[f.Name]
		if !ok {
			return
		}
		switch f.Value.Type() {
		case "string":
			if v, err := fs.GetString(f.Name); err == nil {
				src.Set(key, v)
			}
		case "stringSlice":
			if v, err := fs.GetStringSlice(f.Name); err == nil {
				src.Set(key, v)
			}
		case "int":
			if v, err := fs.GetInt(f.Name); err == nil {
				src.Set(key, v)
			}
		case "bool":
			if v, err := fs.GetBool(f.Name); err == nil {
				src.Set(key, v)
			}
		case "duration":
			if v, err := fs.GetDuration(f.Name); err == nil {
				src.Set(key, v)
			}
		}
	})
	return src
}

// EnvUsage describes the environment variables, for the command help.
func EnvUsage() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", HelpEnvironmentVars)
	for _, o := range options {
		fmt.Fprintf(&b, "  %-28s %s\n", o.key, o.help)
	}
	fmt.Fprintf(&b, "\n%s\n", HelpNote)
	return b.String()
}
