package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigSource represents a source of configuration values
type ConfigSource interface {
	GetString(key string) (string, bool)
	GetStrings(key string) ([]string, bool)
	GetInt(key string) (int, bool)
	GetBool(key string) (bool, bool)
	GetDuration(key string) (time.Duration, bool)
}

// EnvSource implements ConfigSource for environment variables
type EnvSource struct{}

func (e *EnvSource) GetString(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

// GetStrings reads a comma-separated list.
func (e *EnvSource) GetStrings(key string) ([]string, bool) {
	value := os.Getenv(key)
	if value == "" {
		return nil, false
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, len(out) > 0
}

func (e *EnvSource) GetInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i, true
	}
	return 0, false
}

func (e *EnvSource) GetBool(key string) (bool, bool) {
	value := os.Getenv(key)
	if value == "" {
		return false, false
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b, true
	}
	return false, false
}

func (e *EnvSource) GetDuration(key string) (time.Duration, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, true
	}
	return 0, false
}

// FlagSource implements ConfigSource for command-line flags
type FlagSource struct {
	values map[string]interface{}
}

func NewFlagSource() *FlagSource {
	return &FlagSource{values: make(map[string]interface{})}
}

func (f *FlagSource) Set(key string, value interface{}) {
	f.values[key] = value
}

func (f *FlagSource) GetString(key string) (string, bool) {
	if value, exists := f.values[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str, true
		}
	}
	return "", false
}

func (f *FlagSource) GetStrings(key string) ([]string, bool) {
	if value, exists := f.values[key]; exists {
		if list, ok := value.([]string); ok && len(list) > 0 {
			return list, true
		}
	}
	return nil, false
}

func (f *FlagSource) GetInt(key string) (int, bool) {
	if value, exists := f.values[key]; exists {
		if i, ok := value.(int); ok {
			return i, true
		}
	}
	return 0, false
}

func (f *FlagSource) GetBool(key string) (bool, bool) {
	if value, exists := f.values[key]; exists {
		if b, ok := value.(bool); ok {
			return b, true
		}
	}
	return false, false
}

func (f *FlagSource) GetDuration(key string) (time.Duration, bool) {
	if value, exists := f.values[key]; exists {
		if d, ok := value.(time.Duration); ok {
			return d, true
		}
	}
	return 0, false
}

// FileSource implements ConfigSource for a YAML config file read by viper.
type FileSource struct {
	v *viper.Viper
}

// NewFileSource reads path, or searches the default locations when path is
// empty. A missing file in the default locations is not an error.
func NewFileSource(path string, logger *log.Logger) (*FileSource, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/nostr-jobs/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".nostr-jobs"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		logger.Printf("no config file found, using flags, environment and defaults")
	} else {
		logger.Printf("using config file: %s", v.ConfigFileUsed())
	}
	return &FileSource{v: v}, nil
}

// NewFileSourceFromViper wraps an already loaded viper instance.
func NewFileSourceFromViper(v *viper.Viper) *FileSource {
	return &FileSource{v: v}
}

func fileKey(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, "JOBS_"))
}

func (f *FileSource) GetString(key string) (string, bool) {
	k := fileKey(key)
	if !f.v.IsSet(k) {
		return "", false
	}
	value := f.v.GetString(k)
	return value, value != ""
}

func (f *FileSource) GetStrings(key string) ([]string, bool) {
	k := fileKey(key)
	if !f.v.IsSet(k) {
		return nil, false
	}
	list := f.v.GetStringSlice(k)
	return list, len(list) > 0
}

func (f *FileSource) GetInt(key string) (int, bool) {
	k := fileKey(key)
	if !f.v.IsSet(k) {
		return 0, false
	}
	return f.v.GetInt(k), true
}

func (f *FileSource) GetBool(key string) (bool, bool) {
	k := fileKey(key)
	if !f.v.IsSet(k) {
		return false, false
	}
	return f.v.GetBool(k), true
}

func (f *FileSource) GetDuration(key string) (time.Duration, bool) {
	k := fileKey(key)
	if !f.v.IsSet(k) {
		return 0, false
	}
	return f.v.GetDuration(k), true
}
