package config

import "time"

// ConfigResolver resolves configuration values from multiple sources with precedence
type ConfigResolver struct {
	sources []ConfigSource
}

func NewConfigResolver(sources ...ConfigSource) *ConfigResolver {
	return &ConfigResolver{sources: sources}
}

// lookup returns the value from the first source that has key.
func lookup[T any](r *ConfigResolver, get func(ConfigSource) (T, bool), defaultValue T) T {
	for _, source := range r.sources {
		if value, found := get(source); found {
			return value
		}
	}
	return defaultValue
}

func (r *ConfigResolver) ResolveString(key, defaultValue string) string {
	return lookup(r, func(s ConfigSource) (string, bool) { return s.GetString(key) }, defaultValue)
}

// ResolveStrings resolves a list value. The first source holding the key wins
// outright; lists are never merged. The default is copied so callers may
// modify the result.
func (r *ConfigResolver) ResolveStrings(key string, defaultValue []string) []string {
	def := make([]string, len(defaultValue))
	copy(def, defaultValue)
	return lookup(r, func(s ConfigSource) ([]string, bool) { return s.GetStrings(key) }, def)
}

func (r *ConfigResolver) ResolveInt(key string, defaultValue int) int {
	return lookup(r, func(s ConfigSource) (int, bool) { return s.GetInt(key) }, defaultValue)
}

func (r *ConfigResolver) ResolveBool(key string, defaultValue bool) bool {
	return lookup(r, func(s ConfigSource) (bool, bool) { return s.GetBool(key) }, defaultValue)
}

func (r *ConfigResolver) ResolveDuration(key string, defaultValue time.Duration) time.Duration {
	return lookup(r, func(s ConfigSource) (time.Duration, bool) { return s.GetDuration(key) }, defaultValue)
}
