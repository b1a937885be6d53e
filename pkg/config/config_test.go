package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[Config]
ChainId = smartx-dev-1
BlockchainPath = ./data/chain.snapshot
Port = 8766
IP = 0.0.0.0
Debug = true

[Miner]
MinerAddress = smartX0000000000000000000000000000000000aa

[Server]
ServerPublicKey = pub-key-material
ServerPrivateKey = priv-key-material

[Peers]
a = /ip4/127.0.0.1/tcp/4001/p2p/QmVzBvgWEpJ3a9vGBzuHgVEoSfgvFgP9WKFL14mx8sN3Ek
b = /ip4/10.0.0.5/tcp/4001/p2p/QmYyQSo1c1Ym7orWxLYvCrM2EmxFTANf8wXmmE7DWjhx5N
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "smartxchain.ini")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))
	return path
}

func TestLoadParsesAllSections(t *testing.T) {
	path := writeSample(t)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "smartx-dev-1", cfg.ChainID)
	require.Equal(t, "./data/chain.snapshot", cfg.BlockchainPath)
	require.Equal(t, 8766, cfg.Port)
	require.Equal(t, "0.0.0.0", cfg.IP)
	require.True(t, cfg.Debug)
	require.Equal(t, "smartX0000000000000000000000000000000000aa", cfg.MinerAddress)
	require.Equal(t, "pub-key-material", cfg.ServerPublicKey)
	require.Equal(t, "priv-key-material", cfg.ServerPrivateKey)
	require.Len(t, cfg.Peers, 2)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/smartxchain.ini")
	require.Error(t, err)
}
