package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg     *Config
	client  *Client
	profile *Profile
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "bankctl",
		Short: "CLI tool for the table bank server",
		Long: `bankctl is a CLI tool for the table bank server.

It can read session state over the JSON API, stream a session's events,
and take a seat at the table over WebSocket with an interactive prompt.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			p, err := LoadProfile(cfg.ProfilePath)
			if err != nil {
				return err
			}
			profile = p

			client = NewClient(cfg.resolveServer(profile))
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: BANKCTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.ProfilePath, "profile", cfg.ProfilePath, "Profile file path (env: BANKCTL_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newCodeCmd())
	rootCmd.AddCommand(newLobbyCmd())
	rootCmd.AddCommand(newGameCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newEventsCmd())
	rootCmd.AddCommand(newPlayCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
