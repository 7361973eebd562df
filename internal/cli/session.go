package cli

import (
	"errors"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/mcoot/tablebank/internal/dispatch"
)

var errNoCode = errors.New("no session code given and no saved seat in the profile")

func newLobbyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lobby",
		Short: "Lobby queries",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [code]",
		Short: "Show a lobby's members and settings",
		Long:  "Show a lobby's members and settings. Defaults to the session of the saved seat.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := codeArg(args)
			if err != nil {
				return err
			}

			var result dispatch.LobbyView
			if err := client.Get(sessionPath(code, "lobby"), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	})

	return cmd
}

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game queries",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [code]",
		Short: "Show balances and whose turn it is",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := codeArg(args)
			if err != nil {
				return err
			}

			var result dispatch.GameView
			if err := client.Get(sessionPath(code, "game"), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	})

	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [code]",
		Short: "Show the transaction ledger, oldest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := codeArg(args)
			if err != nil {
				return err
			}

			var result dispatch.TransactionHistory
			if err := client.Get(sessionPath(code, "transactions"), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}

// codeArg returns the code argument, falling back to the saved seat's session
func codeArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if profile != nil && profile.Seat != nil {
		return string(profile.Seat.Code), nil
	}
	return "", errNoCode
}

func sessionPath(code, resource string) string {
	return "/api/v1/sessions/" + url.PathEscape(code) + "/" + resource
}
