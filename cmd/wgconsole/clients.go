package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/wg-gen-plus/wgconsole/internal/models"
	"github.com/wg-gen-plus/wgconsole/internal/prompt"
	"github.com/wg-gen-plus/wgconsole/internal/router"
)

// errNeedsYes stops a delete that cannot be confirmed interactively.
var errNeedsYes = errors.New("refusing to delete without confirmation, pass --yes")

// confirm asks before destructive commands. Tests replace it.
var confirm = prompt.Confirm

func newClientsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clients",
		Aliases: []string{"client"},
		Short:   "Manage WireGuard clients",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context(), router.Clients)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List clients",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.open(cmd.Context(), router.Clients)
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show one client",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := c.requireAuth(cmd.Context(), router.Clients)
				if err != nil {
					return err
				}

				client, err := app.Clients.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return c.render.Client(client)
			},
		},
		newClientCreateCmd(c),
		newClientUpdateCmd(c),
		newClientConfigCmd(c),
		&cobra.Command{
			Use:   "email <id>",
			Short: "E-mail the configuration to the client's address",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := c.requireAuth(cmd.Context(), router.Clients)
				if err != nil {
					return err
				}

				if err := app.Clients.SendEmail(cmd.Context(), args[0]); err != nil {
					return err
				}

				return c.render.Message("Configuration e-mailed")
			},
		},
		newClientEnableCmd(c, true),
		newClientEnableCmd(c, false),
		newClientDeleteCmd(c),
	)

	return cmd
}

type clientFlags struct {
	name       string
	email      string
	address    []string
	allowedIPs []string
	tags       []string
	disabled   bool
	remoteDNS  bool
}

func (f *clientFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "display name (2 to 40 characters)")
	fs.StringVar(&f.email, "email", "", "owner e-mail address")
	fs.StringSliceVar(&f.address, "address", nil, "tunnel address in CIDR form (repeatable)")
	fs.StringSliceVar(&f.allowedIPs, "allowed-ips", nil, "route through the tunnel in CIDR form (repeatable)")
	fs.StringSliceVar(&f.tags, "tags", nil, "label (repeatable)")
	fs.BoolVar(&f.disabled, "disabled", false, "create or leave the client disabled")
	fs.BoolVar(&f.remoteDNS, "remote-dns", false, "push the server DNS to the client")
}

// apply copies the flags the user set onto client.
func (f *clientFlags) apply(fs *pflag.FlagSet, client *models.Client) {
	if fs.Changed("name") {
		client.Name = f.name
	}

	if fs.Changed("email") {
		client.Email = f.email
	}

	if fs.Changed("address") {
		client.Address = f.address
	}

	if fs.Changed("allowed-ips") {
		client.AllowedIPs = f.allowedIPs
	}

	if fs.Changed("tags") {
		client.Tags = f.tags
	}

	if fs.Changed("disabled") {
		client.Enable = !f.disabled
	}

	if fs.Changed("remote-dns") {
		client.UseRemoteDNS = f.remoteDNS
	}
}

func newClientCreateCmd(c *cli) *cobra.Command {
	var f clientFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a client. The backend generates its keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.requireAuth(cmd.Context(), router.Clients)
			if err != nil {
				return err
			}

			client := models.Client{Enable: true}
			f.apply(cmd.Flags(), &client)

			created, err := app.Clients.Create(cmd.Context(), client)
			if err != nil {
				c.banner(app.Clients.Banner.Message())
				return err
			}

			return c.render.Client(created)
		},
	}

	f.register(cmd.Flags())

	return cmd
}

func newClientUpdateCmd(c *cli) *cobra.Command {
	var f clientFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a client. Only the flags given are changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.requireAuth(cmd.Context(), router.Clients)
			if err != nil {
				return err
			}

			client, err := app.Clients.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			f.apply(cmd.Flags(), &client)

			updated, err := app.Clients.Update(cmd.Context(), client)
			if err != nil {
				c.banner(app.Clients.Banner.Message())
				return err
			}

			return c.render.Client(updated)
		},
	}

	f.register(cmd.Flags())

	return cmd
}

func newClientConfigCmd(c *cli) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "config <id>",
		Short: "Print or save the wg-quick configuration of a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.requireAuth(cmd.Context(), router.Clients)
			if err != nil {
				return err
			}

			data, err := app.Clients.Config(cmd.Context(), args[0])
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

	return cmd
}

func newClientEnableCmd(c *cli, enable bool) *cobra.Command {
	use, short := "enable <id>", "Enable a client"
	if !enable {
		use, short = "disable <id>", "Disable a client"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.requireAuth(cmd.Context(), router.Clients)
			if err != nil {
				return err
			}

			client, err := app.Clients.SetEnabled(cmd.Context(), args[0], enable)
			if err != nil {
				return err
			}

			return c.render.Client(client)
		},
	}
}

func newClientDeleteCmd(c *cli) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.requireAuth(cmd.Context(), router.Clients)
			if err != nil {
				return err
			}

			if !yes {
				ok, err := confirm(fmt.Sprintf("Delete client %s?", args[0]), false)
				if errors.Is(err, prompt.ErrNotInteractive) {
					return errNeedsYes
				}
				if err != nil {
					return err
				}

				if !ok {
					return c.render.Message("Cancelled")
				}
			}

			if err := app.Clients.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			return c.render.Message(fmt.Sprintf("Client %s deleted", args[0]))
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

// writeFile writes data to path with owner-only permissions; WireGuard
// configs hold private keys.
func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	return nil
}
