package main

import (
	"github.com/spf13/cobra"
	"github.com/wg-gen-plus/wgconsole/internal/router"
)

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show live interface and peer status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context(), router.Status)
		},
	}
}
