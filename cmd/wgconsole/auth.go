package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"github.com/wg-gen-plus/wgconsole/internal/console"
	errs "github.com/wg-gen-plus/wgconsole/internal/errors"
	"github.com/wg-gen-plus/wgconsole/internal/prompt"
	"github.com/wg-gen-plus/wgconsole/internal/session"
)

type loginFlags struct {
	username  string
	password  string
	oauth     bool
	code      string
	state     string
	noBrowser bool
}

func newLoginCmd(c *cli) *cobra.Command {
	var f loginFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the backend",
		Long: `Sign in with the login path the backend offers.

Local backends take a username and password, from flags or an interactive
prompt. OAuth2 backends open the provider in a browser and wait for the
redirect on WG_CALLBACK_ADDR; the backend's OAuth2 redirect URL must point
at http://<WG_CALLBACK_ADDR>/callback. When the redirect lands elsewhere,
pass the code and state from it with --code and --state.

Examples:
  wgconsole login                             # pick the backend's login path
  wgconsole login --username admin            # prompt for the password only
  wgconsole login --oauth --no-browser        # print the provider URL instead
  wgconsole login --code abc --state xyz      # finish an OAuth2 sign-in by hand`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.login(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.username, "username", "", "local account name")
	cmd.Flags().StringVar(&f.password, "password", "", "local account password (prompted when omitted)")
	cmd.Flags().BoolVar(&f.oauth, "oauth", false, "use the OAuth2 flow even when the backend reports local login")
	cmd.Flags().StringVar(&f.code, "code", "", "authorization code from the OAuth2 redirect")
	cmd.Flags().StringVar(&f.state, "state", "", "state from the OAuth2 redirect")
	cmd.Flags().BoolVar(&f.noBrowser, "no-browser", false, "print the sign-in URL instead of opening a browser")
	cmd.MarkFlagsRequiredTogether("code", "state")

	return cmd
}

func (c *cli) login(ctx context.Context, f loginFlags) error {
	app, err := c.ensureApp(ctx)
	if err != nil {
		return err
	}

	switch {
	case f.code != "":
		if app.State.ClientID() == "" {
			return errs.ErrNoClientID
		}

		err = c.withSpinner(" Exchanging authorization code...", func() error {
			return app.Session.Exchange(ctx, f.code, f.state)
		})
	case f.oauth || !app.Session.IsLocalAuth():
		err = c.loginOAuth2(ctx, app, f.noBrowser)
	default:
		err = c.loginLocal(ctx, app, f.username, f.password)
	}

	if err != nil {
		return err
	}

	return c.render.Session(app.Session.Snapshot())
}

func (c *cli) loginLocal(ctx context.Context, app *console.App, username, password string) error {
	if username == "" || password == "" {
		var err error

		username, password, err = prompt.Credentials(username)
		if err != nil {
			return err
		}
	}

	return c.withSpinner(" Signing in...", func() error {
		return app.Session.LocalLogin(ctx, username, password)
	})
}

func (c *cli) loginOAuth2(ctx context.Context, app *console.App, noBrowser bool) error {
	cb := session.NewCallbackServer(c.cfg.CallbackAddr)

	var s *spinner.Spinner

	open := func(url string) error {
		fmt.Fprintf(c.stderr, "Open this URL to sign in:\n\n  %s\n\n", url)

		s = c.startSpinner(" Waiting for the browser sign-in...")

		if noBrowser || !c.cfg.OpenBrowser {
			return nil
		}

		return session.OpenBrowser(url)
	}

	err := app.Session.CompleteOAuth2(ctx, cb, open)

	if s != nil {
		s.Stop()
	}

	if err != nil {
		c.logger.Debug("OAuth2 sign-in failed", slog.String("status", app.Session.AuthStatus().String()))
	}

	return err
}

func (c *cli) startSpinner(suffix string) *spinner.Spinner {
	s := newSpinner(c.stderr)
	s.Suffix = suffix
	s.Start()

	return s
}

// newSpinner animates on w only when w is a terminal file.
func newSpinner(w io.Writer) *spinner.Spinner {
	if f, ok := w.(*os.File); ok {
		return spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriterFile(f))
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Disable()

	return s
}

func (c *cli) withSpinner(suffix string, fn func() error) error {
	s := c.startSpinner(suffix)
	defer s.Stop()

	return fn()
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			if err := app.Session.WaitProfile(cmd.Context()); err != nil {
				return err
			}

			if err := app.Session.Logout(cmd.Context()); err != nil {
				return err
			}

			return c.render.Message("Signed out")
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the session state and the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			if err := app.Session.WaitProfile(cmd.Context()); err != nil {
				return err
			}

			if err := c.render.Session(app.Session.Snapshot()); err != nil {
				return err
			}

			if !app.Session.IsAuthenticated() {
				return errs.ErrNotAuthenticated
			}

			return nil
		},
	}
}

func newAuthTypeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "auth-type",
		Short: "Show whether the backend uses local or OAuth2 login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			return c.render.AuthType(app.Session.IsLocalAuth())
		},
	}
}
