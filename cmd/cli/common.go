// Package cli implements the synx command-line surface: one cobra command
// group per spec §1 module (node, wallet, chain, contract, peer), mirroring
// the teacher's cmd/cli/*.go layout of one file per concern plus a shared
// RegisterRoutes aggregator (cmd/cli/index.go).
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartxchain/pkg/config"
)

// configFlag is the persistent --config flag shared by every subcommand
// that needs to load node configuration (spec §6).
var configFlag string

func registerConfigFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to the node's INI config file")
}

// loadConfig resolves the config path from --config, falling back to the
// SMARTX_CONFIG_PATH environment variable / default used by LoadFromEnv.
func loadConfig() (*config.Config, error) {
	if configFlag != "" {
		return config.Load(configFlag)
	}
	return config.LoadFromEnv()
}

func printKV(cmd *cobra.Command, pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", pairs[i]+":", pairs[i+1])
	}
}
