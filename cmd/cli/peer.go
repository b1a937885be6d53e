package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartxchain/node"
	"smartxchain/p2p"
)

var PeerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Inspect the peer registry persisted in the chain archive",
}

var peerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List peers from the last-persisted archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		peers, err := node.ArchivedPeers(cfg)
		if err != nil {
			return err
		}
		for _, rec := range peers {
			printKV(cmd, "url", rec.URL, "chainId", rec.ChainID, "lastSeen", rec.LastSeen.Format("2006-01-02T15:04:05Z07:00"))
		}
		return nil
	},
}

var peerAddCmd = &cobra.Command{
	Use:   "add <multiaddr>",
	Short: "Validate a peer multiaddr (its normalized form is what node start registers)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		normalized, err := p2p.NormalizeURL(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), normalized)
		return nil
	},
}

func init() {
	registerConfigFlag(peerListCmd)
	PeerCmd.AddCommand(peerListCmd, peerAddCmd)
}
