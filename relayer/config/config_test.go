package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

const testConfigYAML = `global:
  log-level: debug
  listen-addr: 127.0.0.1:7171
  retention: 48h
src:
  chain-id: chain-a
  rpc-addr: http://localhost:26657
  timeout: 5s
dst:
  chain-id: chain-b
  rpc-addr: http://localhost:26667
path:
  src:
    chain-id: chain-a
    client-id: 07-tendermint-0
    connection-id: connection-0
    port-id: transfer
    channel-id: channel-0
  dst:
    chain-id: chain-b
    client-id: 07-tendermint-1
    connection-id: connection-0
    port-id: transfer
    channel-id: channel-1
coordinator:
  scan-interval: 2s
  max-attempts: 7
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Global.LogLevel)
	require.Equal(t, "127.0.0.1:7171", cfg.Global.ListenAddr)
	require.Equal(t, 48*time.Hour, cfg.Global.Retention)

	require.Equal(t, "chain-a", cfg.Src.ChainID)
	require.Equal(t, 5*time.Second, cfg.Src.Timeout)
	// unset values keep their defaults
	require.Equal(t, 10*time.Second, cfg.Dst.Timeout)

	require.Equal(t, "07-tendermint-0", cfg.Path.Src.ClientID)
	require.Equal(t, "channel-1", cfg.Path.Dst.ChannelID)

	require.Equal(t, 2*time.Second, cfg.Coordinator.ScanInterval)
	require.Equal(t, uint32(7), cfg.Coordinator.MaxAttempts)
	require.Equal(t, 8, cfg.Coordinator.MaxInflight)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	// no chains configured
	_, err := Load(writeConfig(t, "global:\n  log-level: info\n"))
	require.Error(t, err)
}

func TestValidateChainIDMismatch(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfigYAML))
	require.NoError(t, err)

	cfg.Path.Src.ChainID = "chain-c"
	require.Error(t, cfg.Validate())
}

func TestDefaultMarshalRoundTrip(t *testing.T) {
	bz, err := Default().Marshal()
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal(bz, &cfg))
	require.Equal(t, Default(), cfg)
}
