// Package cmd holds mcpctl's cobra command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helioslabs/mcpgate/cmd/mcpctl/config"
	"github.com/helioslabs/mcpgate/log"
)

var appLogger log.Logger

var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "mcpctl is a CLI for administering an mcpgate server",
	Long:  `A command-line interface for managing gateway access tokens and OAuth provider configurations of an mcpgate server.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		appLogger = log.NewZerologAdapter(zerolog.WarnLevel, true)
		return config.InitConfig()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&config.CfgFile, "config", "",
		fmt.Sprintf("config file (default is $HOME/.%s/config.yaml)", config.AppName))
}
