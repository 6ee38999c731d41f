// Package config loads and validates the full recognized option set via
// Viper, generalizing the original server's config loader from a handful
// of cache-server knobs to every option this server supports.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SaveParam is one "save <seconds> <changes>" rule.
type SaveParam struct {
	Seconds int
	Changes int
}

// Config is the full process configuration.
type Config struct {
	Port    int    `mapstructure:"port"`
	Bind    string `mapstructure:"bind"`
	Timeout int    `mapstructure:"timeout"` // idle-close seconds, 0 disables

	Databases  int `mapstructure:"databases"`
	MaxClients int `mapstructure:"maxclients"`
	MaxMemory  int64 `mapstructure:"maxmemory"`

	Dir        string `mapstructure:"dir"`
	LogLevel   string `mapstructure:"loglevel"` // debug|verbose|notice|warning
	LogFile    string `mapstructure:"logfile"`
	PidFile    string `mapstructure:"pidfile"`
	Daemonize  bool   `mapstructure:"daemonize"`

	RequirePass string `mapstructure:"requirepass"`
	SlaveOf     string `mapstructure:"slaveof"` // "host port", empty = standalone
	MasterAuth  string `mapstructure:"masterauth"`

	GlueOutputBuf     bool `mapstructure:"glueoutputbuf"`
	ShareObjects      bool `mapstructure:"shareobjects"`
	ShareObjectsPoolSize int `mapstructure:"shareobjectspoolsize"`
	RDBCompression    bool `mapstructure:"rdbcompression"`
	DBFilename        string `mapstructure:"dbfilename"`

	Save []SaveParam `mapstructure:"-"` // parsed from the "save" list, see parseSaveParams

	AppendOnly   bool   `mapstructure:"appendonly"`
	AppendFsync  string `mapstructure:"appendfsync"` // no|always|everysec

	VMEnabled    bool  `mapstructure:"vm-enabled"`
	VMSwapFile   string `mapstructure:"vm-swap-file"`
	VMMaxMemory  int64 `mapstructure:"vm-max-memory"`
	VMPageSize   int   `mapstructure:"vm-page-size"`
	VMPages      int   `mapstructure:"vm-pages"`
	VMMaxThreads int   `mapstructure:"vm-max-threads"`

	HashMaxZipmapEntries int `mapstructure:"hash-max-zipmap-entries"`
	HashMaxZipmapValue   int `mapstructure:"hash-max-zipmap-value"`
}

// DefaultConfig returns the option set's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:       6379,
		Bind:       "0.0.0.0",
		Timeout:    0,
		Databases:  16,
		MaxClients: 10000,
		MaxMemory:  0,
		Dir:        ".",
		LogLevel:   "notice",
		LogFile:    "",
		PidFile:    "gofastdb.pid",
		Save:       []SaveParam{{Seconds: 900, Changes: 1}, {Seconds: 300, Changes: 10}, {Seconds: 60, Changes: 10000}},
		DBFilename: "dump.rdb",
		RDBCompression: true,
		AppendOnly:  false,
		AppendFsync: "everysec",
		VMEnabled:    false,
		VMSwapFile:   "gofastdb.swap",
		VMMaxMemory:  0,
		VMPageSize:   256,
		VMPages:      1 << 20,
		VMMaxThreads: 4,
		HashMaxZipmapEntries: 64,
		HashMaxZipmapValue:   512,
		ShareObjectsPoolSize: 10000,
	}
}

// Load reads configuration from (in precedence order) flags bound to v,
// environment variables prefixed GOFASTDB_, an optional config file, and
// the documented defaults.
func Load(v *viper.Viper) (*Config, error) {
	def := DefaultConfig()

	v.SetEnvPrefix("GOFASTDB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", def.Port)
	v.SetDefault("bind", def.Bind)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("databases", def.Databases)
	v.SetDefault("maxclients", def.MaxClients)
	v.SetDefault("maxmemory", def.MaxMemory)
	v.SetDefault("dir", def.Dir)
	v.SetDefault("loglevel", def.LogLevel)
	v.SetDefault("logfile", def.LogFile)
	v.SetDefault("pidfile", def.PidFile)
	v.SetDefault("daemonize", def.Daemonize)
	v.SetDefault("requirepass", def.RequirePass)
	v.SetDefault("slaveof", def.SlaveOf)
	v.SetDefault("masterauth", def.MasterAuth)
	v.SetDefault("glueoutputbuf", def.GlueOutputBuf)
	v.SetDefault("shareobjects", def.ShareObjects)
	v.SetDefault("shareobjectspoolsize", def.ShareObjectsPoolSize)
	v.SetDefault("rdbcompression", def.RDBCompression)
	v.SetDefault("dbfilename", def.DBFilename)
	v.SetDefault("appendonly", def.AppendOnly)
	v.SetDefault("appendfsync", def.AppendFsync)
	v.SetDefault("vm-enabled", def.VMEnabled)
	v.SetDefault("vm-swap-file", def.VMSwapFile)
	v.SetDefault("vm-max-memory", def.VMMaxMemory)
	v.SetDefault("vm-page-size", def.VMPageSize)
	v.SetDefault("vm-pages", def.VMPages)
	v.SetDefault("vm-max-threads", def.VMMaxThreads)
	v.SetDefault("hash-max-zipmap-entries", def.HashMaxZipmapEntries)
	v.SetDefault("hash-max-zipmap-value", def.HashMaxZipmapValue)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if saveRaw := v.GetStringSlice("save"); len(saveRaw) > 0 {
		parsed, err := parseSaveParams(saveRaw)
		if err != nil {
			return nil, err
		}
		cfg.Save = parsed
	}
	return cfg, nil
}

// parseSaveParams parses repeated "S C" pairs from a "save" config entry
// list, the `save <S> <C>` (repeatable) option.
func parseSaveParams(pairs []string) ([]SaveParam, error) {
	out := make([]SaveParam, 0, len(pairs))
	for _, p := range pairs {
		fields := strings.Fields(p)
		if len(fields) != 2 {
			return nil, fmt.Errorf("config: invalid save rule %q, want \"seconds changes\"", p)
		}
		var sp SaveParam
		if _, err := fmt.Sscanf(fields[0], "%d", &sp.Seconds); err != nil {
			return nil, fmt.Errorf("config: invalid save seconds in %q: %w", p, err)
		}
		if _, err := fmt.Sscanf(fields[1], "%d", &sp.Changes); err != nil {
			return nil, fmt.Errorf("config: invalid save changes in %q: %w", p, err)
		}
		out = append(out, sp)
	}
	return out, nil
}

// Validate checks internal consistency beyond what Viper's types enforce.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.Databases < 1 {
		return fmt.Errorf("config: databases must be at least 1")
	}
	if c.MaxClients < 1 {
		return fmt.Errorf("config: maxclients must be at least 1")
	}
	switch c.LogLevel {
	case "debug", "verbose", "notice", "warning":
	default:
		return fmt.Errorf("config: invalid loglevel %q", c.LogLevel)
	}
	switch c.AppendFsync {
	case "no", "always", "everysec":
	default:
		return fmt.Errorf("config: invalid appendfsync %q", c.AppendFsync)
	}
	if c.VMEnabled {
		if c.VMPageSize <= 0 || c.VMPages <= 0 || c.VMMaxThreads <= 0 {
			return fmt.Errorf("config: vm-page-size, vm-pages, and vm-max-threads must be positive when vm-enabled")
		}
	}
	return nil
}

// IdleTimeout returns Timeout as a duration, 0 meaning disabled.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// SlaveOfHostPort splits SlaveOf into (host, port), ok=false if unset or
// malformed.
func (c *Config) SlaveOfHostPort() (host string, port string, ok bool) {
	fields := strings.Fields(c.SlaveOf)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}
