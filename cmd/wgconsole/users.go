package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wg-gen-plus/wgconsole/internal/models"
	"github.com/wg-gen-plus/wgconsole/internal/prompt"
	"github.com/wg-gen-plus/wgconsole/internal/router"
)

func newUsersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage console user accounts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context(), router.Users)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List users",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.open(cmd.Context(), router.Users)
			},
		},
		&cobra.Command{
			Use:   "get <sub>",
			Short: "Show one user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := c.requireAuth(cmd.Context(), router.Users)
				if err != nil {
					return err
				}

				user, err := app.Users.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return c.render.User(&user)
			},
		},
		&cobra.Command{
			Use:   "me",
			Short: "Show the signed-in user's account",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				app, err := c.requireAuth(cmd.Context(), router.Users)
				if err != nil {
					return err
				}

				me := app.Users.Me(cmd.Context())
				c.banner(app.Banner(mustRoute(router.Users)))

				return c.render.User(me)
			},
		},
		newUserEditCmd(c, false),
		newUserEditCmd(c, true),
		newUserDeleteCmd(c),
	)

	return cmd
}

func mustRoute(path string) router.Route {
	route, _ := router.Match(path)
	return route
}

func newUserEditCmd(c *cli, update bool) *cobra.Command {
	var (
		name     string
		email    string
		password string
		admin    bool
		profile  string
	)

	cmd := &cobra.Command{
		Use:   "create <sub>",
		Short: "Create a console user",
		Args:  cobra.ExactArgs(1),
	}

	if update {
		cmd.Use = "update <sub>"
		cmd.Short = "Change a console user. Only the flags given are changed"
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := c.requireAuth(ctx, router.Users)
		if err != nil {
			return err
		}

		user := models.User{Sub: args[0]}

		if update {
			if user, err = app.Users.Get(ctx, args[0]); err != nil {
				return err
			}
		}

		fs := cmd.Flags()
		if fs.Changed("name") {
			user.Name = name
		}

		if fs.Changed("email") {
			user.Email = email
		}

		if fs.Changed("password") {
			user.Password = password
		}

		if fs.Changed("admin") {
			user.IsAdmin = admin
		}

		if fs.Changed("profile") {
			user.Profile = profile
		}

		var saved models.User
		if update {
			saved, err = app.Users.Update(ctx, user)
		} else {
			saved, err = app.Users.Create(ctx, user)
		}

		if err != nil {
			c.banner(app.Users.Banner.Message())
			return err
		}

		return c.render.User(&saved)
	}

	fs := cmd.Flags()
	fs.StringVar(&name, "name", "", "display name")
	fs.StringVar(&email, "email", "", "e-mail address")
	fs.StringVar(&password, "password", "", "password for local login")
	fs.BoolVar(&admin, "admin", false, "grant administrator rights")
	fs.StringVar(&profile, "profile", "", "profile picture URL")

	return cmd
}

func newUserDeleteCmd(c *cli) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <sub>",
		Short: "Delete a console user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.requireAuth(cmd.Context(), router.Users)
			if err != nil {
				return err
			}

			if !yes {
				ok, err := confirm(fmt.Sprintf("Delete user %s?", args[0]), false)
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

			if err := app.Users.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}

			return c.render.Message(fmt.Sprintf("User %s deleted", args[0]))
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}
