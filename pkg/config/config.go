// Package config loads the node's plain-text INI-shaped configuration
// file (spec §6: sections [Config], [Peers], [Miner], [Server]).
//
// Version: v0.2.0
package config

import (
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"

	"smartxchain/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.2.0"

// Config is the unified node configuration, one field per recognized key
// (spec §6 "Recognized keys: ChainId, BlockchainPath, Port, IP, Debug,
// MinerAddress, ServerPublicKey, ServerPrivateKey, and one URL per line
// under [Peers]").
type Config struct {
	ChainID        string
	BlockchainPath string
	Port           int
	IP             string
	Debug          bool

	MinerAddress string

	ServerPublicKey  string
	ServerPrivateKey string

	Peers []string
}

// Load parses the INI file at path into a Config.
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, utils.Wrap(err, fmt.Sprintf("load config file %s", path))
	}

	cfg := &Config{}

	section := f.Section("Config")
	cfg.ChainID = section.Key("ChainId").String()
	cfg.BlockchainPath = section.Key("BlockchainPath").String()
	cfg.IP = section.Key("IP").String()

	port, err := strconv.Atoi(section.Key("Port").String())
	if err != nil {
		return nil, utils.Wrap(err, "parse Config.Port")
	}
	cfg.Port = port

	debug, err := section.Key("Debug").Bool()
	if err != nil {
		return nil, utils.Wrap(err, "parse Config.Debug")
	}
	cfg.Debug = debug

	miner := f.Section("Miner")
	cfg.MinerAddress = miner.Key("MinerAddress").String()

	server := f.Section("Server")
	cfg.ServerPublicKey = server.Key("ServerPublicKey").String()
	cfg.ServerPrivateKey = server.Key("ServerPrivateKey").String()

	peers := f.Section("Peers")
	for _, key := range peers.Keys() {
		if url := key.String(); url != "" {
			cfg.Peers = append(cfg.Peers, url)
		}
	}

	return cfg, nil
}

// LoadFromEnv loads the config file named by the SMARTX_CONFIG_PATH
// environment variable, defaulting to "smartxchain.ini".
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("SMARTX_CONFIG_PATH", "smartxchain.ini"))
}
