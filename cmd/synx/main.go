package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"smartxchain/cmd/cli"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "synx",
		Short: "smartxchain node and wallet CLI",
	}
	cli.RegisterRoutes(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
