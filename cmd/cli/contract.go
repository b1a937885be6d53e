package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"smartxchain/core"
	"smartxchain/node"
	"smartxchain/pkg/codec"
	"smartxchain/sandbox"
)

var contractKeyPath string

var ContractCmd = &cobra.Command{
	Use:   "contract",
	Short: "Deploy and invoke smart contracts against the local chain archive",
}

var contractDeployCmd = &cobra.Command{
	Use:   "deploy <name> <owner> <source-file>",
	Short: "Deploy a contract's source, storing it as a codec-encoded record",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, ownerArg, sourcePath := args[0], args[1], args[2]
		owner, err := core.NewAddress(ownerArg)
		if err != nil {
			return err
		}
		source, err := os.ReadFile(sourcePath)
		if err != nil {
			return fmt.Errorf("read contract source: %w", err)
		}
		if v := sandbox.Analyze(string(source)); v != nil {
			return fmt.Errorf("rejected by safety analyzer: %w", v)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		kd := node.Ed25519KeyDeriver{}
		minerAddr, _, err := kd.LoadOrCreate(contractKeyPath)
		if err != nil {
			return err
		}
		chain, contracts, err := node.OpenArchive(cfg, minerAddr)
		if err != nil {
			return err
		}

		encodedCode, err := codec.Encode(string(source))
		if err != nil {
			return err
		}
		encodedState, err := codec.Encode("{}")
		if err != nil {
			return err
		}
		gas := sandbox.EstimateGas(string(source))
		rec, err := contracts.Deploy(name, owner, encodedCode, gas, encodedState)
		if err != nil {
			return err
		}

		if err := node.SaveArchive(cfg, chain, contracts, nil); err != nil {
			return err
		}
		caps := sandbox.ParseCapabilities(string(source))
		capStrs := make([]string, len(caps))
		for i, c := range caps {
			capStrs[i] = string(c)
		}
		printKV(cmd, "name", rec.Name, "owner", string(rec.Owner), "gas", rec.Gas.String(),
			"capabilities", strings.Join(capStrs, ","))
		return nil
	},
}

var contractListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployed contracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		kd := node.Ed25519KeyDeriver{}
		minerAddr, _, err := kd.LoadOrCreate(contractKeyPath)
		if err != nil {
			return err
		}
		_, contracts, err := node.OpenArchive(cfg, minerAddr)
		if err != nil {
			return err
		}
		for name, rec := range contracts.All() {
			printKV(cmd, "name", name, "owner", string(rec.Owner), "gas", rec.Gas.String())
		}
		return nil
	},
}

var contractInvokeCmd = &cobra.Command{
	Use:   "invoke <name> [input...]",
	Short: "Execute a deployed contract's entry point against its current state",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, inputs := args[0], args[1:]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		kd := node.Ed25519KeyDeriver{}
		minerAddr, _, err := kd.LoadOrCreate(contractKeyPath)
		if err != nil {
			return err
		}
		chain, contracts, err := node.OpenArchive(cfg, minerAddr)
		if err != nil {
			return err
		}

		rec, err := contracts.Get(name)
		if err != nil {
			return err
		}
		var source string
		if err := codec.Decode(rec.SerializedCode, &source); err != nil {
			return fmt.Errorf("decode contract source: %w", err)
		}
		var state string
		if err := codec.Decode(rec.State(), &state); err != nil {
			return fmt.Errorf("decode contract state: %w", err)
		}

		rt := sandbox.NewRuntime(sandbox.DefaultConfig())
		if err := rt.Compile(source); err != nil {
			return err
		}
		if err := rt.LoadState(state); err != nil {
			return err
		}
		result, newState, err := rt.Execute(context.Background(), inputs)
		if err != nil {
			printKV(cmd, "result", result)
			return err
		}

		encodedState, err := codec.Encode(newState)
		if err != nil {
			return err
		}
		if err := contracts.CompareAndSwapState(name, rec.State(), encodedState); err != nil {
			return err
		}
		tx := &core.Transaction{
			Type:         core.TxContractState,
			Sender:       rec.Owner,
			Recipient:    core.AddressSystem,
			Amount:       decimal.Zero,
			Gas:          rec.Gas,
			ContractName: name,
		}
		if err := chain.AppendTransaction(tx, ""); err != nil {
			return err
		}
		if err := node.SaveArchive(cfg, chain, contracts, nil); err != nil {
			return err
		}
		printKV(cmd, "result", result)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{contractDeployCmd, contractListCmd, contractInvokeCmd} {
		registerConfigFlag(c)
		c.Flags().StringVar(&contractKeyPath, "key-path", "node.key", "path to the node's signing key file")
	}
	ContractCmd.AddCommand(contractDeployCmd, contractListCmd, contractInvokeCmd)
}
