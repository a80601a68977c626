package main

import (
	"context"
	"fmt"
	"net/mail"
	"os"

	"github.com/syftbox-sh/syftbox/internal/client/config"
	"github.com/syftbox-sh/syftbox/internal/transport"
	"github.com/syftbox-sh/syftbox/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var email string
	var dataDir string
	var serverURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize syftbox datasite",
		Run: func(cmd *cobra.Command, args []string) {
			if cfg, err := config.LoadFromFile(config.DefaultConfigPath); err == nil {
				fmt.Println("SyftBox Datasite already initialized")
				fmt.Printf("Config Path: %s\n", green(cfg.Path))
				fmt.Printf("Email:       %s\n", cyan(cfg.Email))
				fmt.Printf("Data Dir:    %s\n", cyan(cfg.DataDir))
				fmt.Printf("Server:      %s\n", cyan(cfg.ServerURL))
				os.Exit(0)
			}

			if dataDir == "" {
				fmt.Printf("%s: %s\n", red("ERROR"), "data-dir is required")
				os.Exit(1)
			}

			if serverURL == "" {
				fmt.Printf("%s: %s\n", red("ERROR"), "server-url is required")
				os.Exit(1)
			}

			if email == "" {
				fmt.Printf("Enter your email: ")
				fmt.Scanln(&email)
			}

			if _, err := mail.ParseAddress(email); err != nil {
				fmt.Printf("%s: %s\n", red("ERROR"), "invalid email")
				os.Exit(1)
			}

			tokens, err := doLogin(cmd.Context(), serverURL, email)
			if err != nil {
				fmt.Printf("%s: %s\n", red("ERROR"), err)
				os.Exit(1)
			}

			cfg := &config.Config{
				Email:        email,
				DataDir:      dataDir,
				ServerURL:    serverURL,
				ClientURL:    config.DefaultClientURL,
				AccessToken:  tokens.AccessToken,
				RefreshToken: tokens.RefreshToken,
				AppsEnabled:  true,
				Path:         config.DefaultConfigPath,
			}

			if err := cfg.Validate(); err != nil {
				fmt.Printf("%s: %s\n", red("ERROR"), err)
				os.Exit(1)
			}

			if err := cfg.Save(); err != nil {
				fmt.Printf("%s: %s\n", red("ERROR"), err)
				os.Exit(1)
			}

			fmt.Println("SyftBox Datasite initialized")
			fmt.Printf("Config Path: %s\n", green(cfg.Path))
			fmt.Printf("Email:       %s\n", cyan(cfg.Email))
			fmt.Printf("Data Dir:    %s\n", cyan(cfg.DataDir))
			fmt.Printf("Server:      %s\n", cyan(cfg.ServerURL))
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", defaultDataDir, "data directory")
	cmd.Flags().StringVarP(&serverURL, "server-url", "u", defaultServerURL, "server URL")

	return cmd
}

// doLogin drives the OTP login flow against the real /auth/* endpoints
// (spec section 6) instead of a bespoke SDK: request a code, prompt for
// it, and exchange it for a token pair.
func doLogin(ctx context.Context, serverURL string, email string) (*transport.TokenPair, error) {
	tc := transport.New(transport.Config{
		BaseURL:       serverURL,
		Email:         email,
		ClientVersion: version.Version,
	})

	if err := tc.RequestEmailToken(ctx, email); err != nil {
		return nil, fmt.Errorf("request email token: %w", err)
	}

	fmt.Printf("Enter the OTP code sent to %s: ", email)
	var emailCode string
	fmt.Scanln(&emailCode)

	tokens, err := tc.ValidateEmailToken(ctx, email, emailCode)
	if err != nil {
		return nil, fmt.Errorf("validate email token: %w", err)
	}

	return tokens, nil
}
