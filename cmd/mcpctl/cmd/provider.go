package cmd

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/helioslabs/mcpgate/cmd/mcpctl/client"
)

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage OAuth provider configurations",
}

var (
	providerName        string
	providerServerID    string
	providerClientID    string
	providerRedirectURI string
	providerAuthURL     string
	providerTokenURL    string
	providerScopes      []string
)

var providerRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a third-party OAuth provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := currentGateway()
		if err != nil {
			return err
		}

		// The client secret never goes through argv or shell history.
		fmt.Print("Enter client secret: ")
		secretBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read client secret: %w", err)
		}

		err = gw.RegisterProvider(cmd.Context(), &client.RegisterProviderRequest{
			ProviderName: providerName,
			ServerID:     providerServerID,
			ClientID:     providerClientID,
			ClientSecret: string(secretBytes),
			RedirectURI:  providerRedirectURI,
			AuthURL:      providerAuthURL,
			TokenURL:     providerTokenURL,
			Scopes:       providerScopes,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Provider %q registered.\n", providerServerID)
		return nil
	},
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := currentGateway()
		if err != nil {
			return err
		}
		creds, err := gw.ListProviders(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVER ID\tPROVIDER\tCLIENT ID\tSCOPES")
		for _, cred := range creds {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cred.ServerID, cred.ProviderName, cred.ClientID,
				strings.Join(cred.Scopes, ","))
		}
		return w.Flush()
	},
}

func init() {
	providerRegisterCmd.Flags().StringVar(&providerName, "name", "", `provider name, e.g. "github"`)
	providerRegisterCmd.Flags().StringVar(&providerServerID, "server-id", "", "MCP server id this provider backs")
	providerRegisterCmd.Flags().StringVar(&providerClientID, "client-id", "", "OAuth client id")
	providerRegisterCmd.Flags().StringVar(&providerRedirectURI, "redirect-uri", "", "OAuth redirect URI")
	providerRegisterCmd.Flags().StringVar(&providerAuthURL, "auth-url", "", "authorization endpoint URL")
	providerRegisterCmd.Flags().StringVar(&providerTokenURL, "token-url", "", "token endpoint URL")
	providerRegisterCmd.Flags().StringSliceVar(&providerScopes, "scopes", nil, "OAuth scopes to request")
	_ = providerRegisterCmd.MarkFlagRequired("server-id")
	_ = providerRegisterCmd.MarkFlagRequired("client-id")
	_ = providerRegisterCmd.MarkFlagRequired("token-url")

	providerCmd.AddCommand(providerRegisterCmd, providerListCmd)
	rootCmd.AddCommand(providerCmd)
}
