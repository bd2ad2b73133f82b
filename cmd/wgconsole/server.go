package main

import (
	"github.com/spf13/cobra"
	"github.com/wg-gen-plus/wgconsole/internal/router"
)

func newServerCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Show and change the server interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context(), router.Server)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the server interface settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.open(cmd.Context(), router.Server)
			},
		},
		newServerUpdateCmd(c),
		newServerConfigCmd(c),
		&cobra.Command{
			Use:   "version",
			Short: "Show the backend build version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, err := c.requireAuth(cmd.Context(), router.Server)
				if err != nil {
					return err
				}

				version, err := app.Server.Version(cmd.Context())
				if err != nil {
					c.logger.Debug("backend version unavailable, showing cached value")
				}

				return c.render.Version(version)
			},
		},
	)

	return cmd
}

func newServerUpdateCmd(c *cli) *cobra.Command {
	var (
		address    []string
		listenPort int
		mtu        int
		endpoint   string
		keepalive  int
		dns        []string
		allowedIPs []string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change server settings. Only the flags given are changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.requireAuth(cmd.Context(), router.Server)
			if err != nil {
				return err
			}

			current, err := app.Server.Read(cmd.Context())
			if err != nil {
				return err
			}

			srv := *current
			fs := cmd.Flags()

			if fs.Changed("address") {
				srv.Address = address
			}

			if fs.Changed("listen-port") {
				srv.ListenPort = listenPort
			}

			if fs.Changed("mtu") {
				srv.Mtu = mtu
			}

			if fs.Changed("endpoint") {
				srv.Endpoint = endpoint
			}

			if fs.Changed("persistent-keepalive") {
				srv.PersistentKeepalive = keepalive
			}

			if fs.Changed("dns") {
				srv.DNS = dns
			}

			if fs.Changed("allowed-ips") {
				srv.AllowedIPs = allowedIPs
			}

			updated, err := app.Server.Update(cmd.Context(), srv)
			if err != nil {
				c.banner(app.Server.Banner.Message())
				return err
			}

			return c.render.Server(updated)
		},
	}

	fs := cmd.Flags()
	fs.StringSliceVar(&address, "address", nil, "interface address in CIDR form (repeatable)")
	fs.IntVar(&listenPort, "listen-port", 0, "UDP listen port")
	fs.IntVar(&mtu, "mtu", 0, "interface MTU, 0 for the default")
	fs.StringVar(&endpoint, "endpoint", "", "public host:port clients connect to")
	fs.IntVar(&keepalive, "persistent-keepalive", 0, "keepalive interval in seconds pushed to clients")
	fs.StringSliceVar(&dns, "dns", nil, "DNS server pushed to clients (repeatable)")
	fs.StringSliceVar(&allowedIPs, "allowed-ips", nil, "default allowed IPs for new clients (repeatable)")

	return cmd
}

func newServerConfigCmd(c *cli) *cobra.Command {
	var (
		out  string
		diff bool
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print, save or diff the server's wg configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.requireAuth(cmd.Context(), router.Server)
			if err != nil {
				return err
			}

			if diff {
				d, err := app.Server.ConfigDiff(cmd.Context())
				if err != nil {
					return err
				}

				return c.render.ConfigDiff(d)
			}

			data, err := app.Server.Config(cmd.Context())
			if err != nil {
				return err
			}

			if out != "" {
				if err := writeFile(out, data); err != nil {
					return err
				}

				return c.render.Message("Saved " + out)
			}

			return c.render.Raw(data)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write the config to this file instead of stdout")
	cmd.Flags().BoolVar(&diff, "diff", false, "show what changed since the last --diff run")
	cmd.MarkFlagsMutuallyExclusive("out", "diff")

	return cmd
}
