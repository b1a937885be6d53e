package cli

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/spf13/cobra"

	"smartxchain/node"
)

var walletKeyPath string

var WalletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Key material for the node's operating address",
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Generate (or load) the node's Ed25519 signing key and print its address",
	RunE: func(cmd *cobra.Command, args []string) error {
		kd := node.Ed25519KeyDeriver{}
		addr, _, err := kd.LoadOrCreate(walletKeyPath)
		if err != nil {
			return err
		}
		printKV(cmd, "address", string(addr), "keyPath", walletKeyPath)
		return nil
	},
}

var walletAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address and public key derived from the key at --key-path",
	RunE: func(cmd *cobra.Command, args []string) error {
		kd := node.Ed25519KeyDeriver{}
		addr, priv, err := kd.LoadOrCreate(walletKeyPath)
		if err != nil {
			return err
		}
		pub := priv.Public().(ed25519.PublicKey)
		printKV(cmd, "address", string(addr), "publicKey", hex.EncodeToString(pub))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{walletCreateCmd, walletAddressCmd} {
		c.Flags().StringVar(&walletKeyPath, "key-path", "node.key", "path to the node's signing key file")
	}
	WalletCmd.AddCommand(walletCreateCmd, walletAddressCmd)
}
