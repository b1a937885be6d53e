package cli

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"smartxchain/core"
	"smartxchain/node"
	"smartxchain/pkg/cryptoutil"
)

var chainKeyPath string
var chainKeyHash string

var ChainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Inspect and mutate the local chain archive directly (offline, no running node required)",
}

func openChain(cmd *cobra.Command) (*core.Chain, *core.ContractStore, core.Address, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, "", fmt.Errorf("load config: %w", err)
	}
	kd := node.Ed25519KeyDeriver{}
	addr, _, err := kd.LoadOrCreate(chainKeyPath)
	if err != nil {
		return nil, nil, "", fmt.Errorf("load signing key: %w", err)
	}
	chain, contracts, err := node.OpenArchive(cfg, addr)
	if err != nil {
		return nil, nil, "", fmt.Errorf("open chain archive: %w", err)
	}
	return chain, contracts, addr, nil
}

func saveChain(cmd *cobra.Command, chain *core.Chain, contracts *core.ContractStore) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return node.SaveArchive(cfg, chain, contracts, nil)
}

var chainStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print chain length, tip hash, and validity",
	RunE: func(cmd *cobra.Command, args []string) error {
		chain, _, _, err := openChain(cmd)
		if err != nil {
			return err
		}
		printKV(cmd,
			"length", strconv.Itoa(chain.Len()),
			"tipHash", chain.Tip().BlockHash.Hex(),
			"valid", strconv.FormatBool(chain.IsValid()),
		)
		return nil
	},
}

var chainBlockCmd = &cobra.Command{
	Use:   "block <index>",
	Short: "Print one block by index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("malformed index %q", args[0])
		}
		chain, _, _, err := openChain(cmd)
		if err != nil {
			return err
		}
		blk, err := chain.BlockAt(idx)
		if err != nil {
			return err
		}
		printKV(cmd,
			"index", strconv.FormatUint(blk.Index, 10),
			"hash", blk.BlockHash.Hex(),
			"previousHash", blk.PreviousHash.Hex(),
			"miner", string(blk.MinerAddress),
			"txCount", strconv.Itoa(len(blk.Transactions)),
		)
		return nil
	},
}

var chainBalanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Print an address's balance as replayed from genesis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := core.NewAddress(args[0])
		if err != nil {
			return err
		}
		chain, _, _, err := openChain(cmd)
		if err != nil {
			return err
		}
		printKV(cmd, "address", string(addr), "balance", chain.Balance(addr).String())
		return nil
	},
}

var chainTransferCmd = &cobra.Command{
	Use:   "transfer <from> <to> <amount>",
	Short: "Queue a native transfer into the pending pool",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := core.NewAddress(args[0])
		if err != nil {
			return err
		}
		to, err := core.NewAddress(args[1])
		if err != nil {
			return err
		}
		amount, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Errorf("malformed amount %q", args[2])
		}

		chain, contracts, _, err := openChain(cmd)
		if err != nil {
			return err
		}
		tx := core.NewTransfer(from, to, amount, "")
		keyHash := chainKeyHash
		if keyHash == "" && chainPassphrase != "" {
			keyHash = cryptoutil.HashKey(chainPassphrase)
		}
		if err := chain.AppendTransaction(tx, keyHash); err != nil {
			return err
		}
		if err := saveChain(cmd, chain, contracts); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "queued")
		return nil
	},
}

var chainMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine a new block from the pending pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		chain, contracts, miner, err := openChain(cmd)
		if err != nil {
			return err
		}
		blk, err := chain.MinePending(miner, nil)
		if err != nil {
			return err
		}
		if err := saveChain(cmd, chain, contracts); err != nil {
			return err
		}
		printKV(cmd, "minedIndex", strconv.FormatUint(blk.Index, 10), "hash", blk.BlockHash.Hex())
		return nil
	},
}

var chainPassphrase string

func init() {
	for _, c := range []*cobra.Command{chainStatusCmd, chainBlockCmd, chainBalanceCmd, chainTransferCmd, chainMineCmd} {
		registerConfigFlag(c)
		c.Flags().StringVar(&chainKeyPath, "key-path", "node.key", "path to the node's signing key file (used as the mining address)")
	}
	chainTransferCmd.Flags().StringVar(&chainKeyHash, "key-hash", "", "precomputed base64(SHA-256(privateKey)) sender authentication hash")
	chainTransferCmd.Flags().StringVar(&chainPassphrase, "passphrase", "", "sender passphrase hashed via hashKey() when --key-hash is not given")

	ChainCmd.AddCommand(chainStatusCmd, chainBlockCmd, chainBalanceCmd, chainTransferCmd, chainMineCmd)
}
