package main

import (
	"github.com/spf13/cobra"
	"github.com/wg-gen-plus/wgconsole/internal/wgkey"
)

func newKeygenCmd(c *cli) *cobra.Command {
	var preshared bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a WireGuard key pair locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pair, err := wgkey.Generate(preshared)
			if err != nil {
				return err
			}

			return c.render.KeyPair(pair)
		},
	}

	cmd.Flags().BoolVar(&preshared, "preshared", false, "also generate a preshared key")

	return cmd
}
