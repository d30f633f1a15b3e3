package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helioslabs/mcpgate/cmd/mcpctl/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mcpctl contexts",
}

var (
	setContextServer string
	setContextToken  string
)

var setContextCmd = &cobra.Command{
	Use:   "set-context <name>",
	Short: "Create or update a named gateway context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		ctx, ok := config.GlobalConfig.Contexts[name]
		if !ok {
			ctx = &config.Context{}
			config.GlobalConfig.Contexts[name] = ctx
		}
		if setContextServer != "" {
			ctx.ServerEndpoint = setContextServer
		}
		if setContextToken != "" {
			ctx.AuthToken = setContextToken
		}
		if ctx.ServerEndpoint == "" {
			return fmt.Errorf("context %q has no server endpoint; pass --server", name)
		}
		if config.GlobalConfig.CurrentContext == "" {
			config.GlobalConfig.CurrentContext = name
		}
		if err := config.Save(); err != nil {
			return err
		}
		fmt.Printf("Context %q saved.\n", name)
		return nil
	},
}

var useContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Switch the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, ok := config.GlobalConfig.Contexts[name]; !ok {
			return fmt.Errorf("context %q does not exist", name)
		}
		config.GlobalConfig.CurrentContext = name
		if err := config.Save(); err != nil {
			return err
		}
		fmt.Printf("Switched to context %q.\n", name)
		return nil
	},
}

var currentContextCmd = &cobra.Command{
	Use:   "current-context",
	Short: "Print the current context name",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.GlobalConfig.CurrentContext == "" {
			return fmt.Errorf("no current context set")
		}
		fmt.Println(config.GlobalConfig.CurrentContext)
		return nil
	},
}

func init() {
	setContextCmd.Flags().StringVar(&setContextServer, "server", "", "gateway endpoint, e.g. http://localhost:8080")
	setContextCmd.Flags().StringVar(&setContextToken, "token", "", "gateway access token for this context")

	configCmd.AddCommand(setContextCmd, useContextCmd, currentContextCmd)
	rootCmd.AddCommand(configCmd)
}
