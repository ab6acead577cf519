package cmd

import (
	"github.com/spf13/cobra"

	"github.com/infrahq/broker/internal"
)

func newVersionCmd(cli *CLI) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the broker version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.Output("Version: %v", internal.FullVersion())
			if internal.Commit != "" {
				cli.Output("Commit:  %v", internal.Commit)
			}
			if internal.Date != "" {
				cli.Output("Date:    %v", internal.Date)
			}
			return nil
		},
	}
}
