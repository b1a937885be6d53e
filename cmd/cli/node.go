package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"smartxchain/node"
)

var NodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run the node supervisor (chain, peer network, query server)",
}

var nodeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Boot the node and serve until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sup, err := node.Boot(cfg, nil)
		if err != nil {
			return fmt.Errorf("boot node: %w", err)
		}
		logrus.Infof("node booted, miner address %s", sup.MinerAddress)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logrus.Info("shutdown signal received, persisting state")
		if err := sup.Shutdown(); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	registerConfigFlag(nodeStartCmd)
	NodeCmd.AddCommand(nodeStartCmd)
}
