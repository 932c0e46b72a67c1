package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DBGBRIDGE_"

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// envSetter applies one environment value to the configuration.
type envSetter func(c *Config, value string) error

// envMapping maps environment variables to settings.
var envMapping = map[string]envSetter{
	EnvPrefix + "LOG_LEVEL": func(c *Config, v string) error {
		c.Log.Level = strings.ToLower(v)
		return nil
	},
	EnvPrefix + "LOG_FORMAT": func(c *Config, v string) error {
		c.Log.Format = strings.ToLower(v)
		return nil
	},
	EnvPrefix + "BACKEND": func(c *Config, v string) error {
		c.Session.Backend = v
		return nil
	},
	EnvPrefix + "COMMAND": func(c *Config, v string) error {
		fields := strings.Fields(v)
		if len(fields) == 0 {
			return nil
		}
		c.Session.Command = fields[0]
		c.Session.Args = fields[1:]
		return nil
	},
	EnvPrefix + "MAX_BUFFER": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Session.MaxBuffer = n
		return nil
	},
}

// EnvVars returns the recognized environment variable names.
func EnvVars() []string {
	names := make([]string, 0, len(envMapping))
	for k := range envMapping {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ApplyEnv overrides settings from environment variables found by lookup.
// Empty values are ignored.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	for name, set := range envMapping {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		if err := set(c, v); err != nil {
			return fmt.Errorf("environment %s=%q: %w", name, v, err)
		}
	}
	return nil
}
