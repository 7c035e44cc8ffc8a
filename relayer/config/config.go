package config

import (
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"

	"github.com/bpolania/near-cosmos-ibc/relayer"
)

// GlobalConfig holds process-wide settings.
type GlobalConfig struct {
	// LogLevel is one of debug, info, error or none.
	LogLevel string `mapstructure:"log-level" yaml:"log-level"`
	// ListenAddr is the bind address of the HTTP server exposing health,
	// metrics and the force-relay endpoint.
	ListenAddr string `mapstructure:"listen-addr" yaml:"listen-addr"`
	// DBPath is the directory of the relay tracker database. Empty selects an
	// in-memory database.
	DBPath string `mapstructure:"db-path" yaml:"db-path"`
	// Retention is how long terminal relay records are kept before the sweep
	// deletes them.
	Retention time.Duration `mapstructure:"retention" yaml:"retention"`
}

// ChainConfig describes how to reach one chain of the relay path.
type ChainConfig struct {
	ChainID string `mapstructure:"chain-id" yaml:"chain-id"`
	// RPCAddr is the tendermint RPC endpoint.
	RPCAddr string `mapstructure:"rpc-addr" yaml:"rpc-addr"`
	// Timeout bounds individual RPC calls.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Config is the root configuration of the relayer daemon.
type Config struct {
	Global      GlobalConfig              `mapstructure:"global" yaml:"global"`
	Src         ChainConfig               `mapstructure:"src" yaml:"src"`
	Dst         ChainConfig               `mapstructure:"dst" yaml:"dst"`
	Path        relayer.Path              `mapstructure:"path" yaml:"path"`
	Coordinator relayer.CoordinatorConfig `mapstructure:"coordinator" yaml:"coordinator"`
}

// Default returns a configuration with sensible defaults and no chains
// configured.
func Default() Config {
	return Config{
		Global: GlobalConfig{
			LogLevel:   "info",
			ListenAddr: "127.0.0.1:5183",
			Retention:  24 * time.Hour,
		},
		Src:         ChainConfig{Timeout: 10 * time.Second},
		Dst:         ChainConfig{Timeout: 10 * time.Second},
		Coordinator: relayer.DefaultCoordinatorConfig(),
	}
}

// Load reads the configuration file at the given path, layered over the
// defaults. Settings may be overridden through RELAYER_-prefixed environment
// variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("RELAYER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationHook())); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// durationHook decodes duration fields given as strings like "30s".
func durationHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) || from.Kind() != reflect.String {
			return data, nil
		}
		return cast.ToDurationE(data.(string))
	}
}

// Validate checks the configuration for missing required settings.
func (c Config) Validate() error {
	for _, chain := range []struct {
		name string
		cfg  ChainConfig
	}{{"src", c.Src}, {"dst", c.Dst}} {
		if chain.cfg.ChainID == "" {
			return errors.Errorf("%s chain: chain-id must be set", chain.name)
		}
		if chain.cfg.RPCAddr == "" {
			return errors.Errorf("%s chain: rpc-addr must be set", chain.name)
		}
	}

	for _, end := range []struct {
		name string
		end  relayer.PathEnd
	}{{"src", c.Path.Src}, {"dst", c.Path.Dst}} {
		if end.end.ClientID == "" || end.end.ChannelID == "" || end.end.PortID == "" {
			return errors.Errorf("path %s end: client-id, port-id and channel-id must be set", end.name)
		}
	}

	if c.Path.Src.ChainID != c.Src.ChainID || c.Path.Dst.ChainID != c.Dst.ChainID {
		return errors.New("path endpoint chain IDs must match the configured chains")
	}
	return nil
}

// Marshal renders the configuration as YAML, used to write the initial config
// file.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
