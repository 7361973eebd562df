package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/tablebank/internal/api/response"
)

func newCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code",
		Short: "Generate an unused session code",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Code

			if err := client.Post("/api/v1/codes", nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(result)
			return nil
		},
	}
}
