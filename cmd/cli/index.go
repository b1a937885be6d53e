package cli

import "github.com/spf13/cobra"

// RegisterRoutes attaches every command group to root, mirroring the
// teacher's cmd/cli/index.go RegisterRoutes aggregator.
func RegisterRoutes(root *cobra.Command) {
	root.AddCommand(NodeCmd, WalletCmd, ChainCmd, ContractCmd, PeerCmd)
}
