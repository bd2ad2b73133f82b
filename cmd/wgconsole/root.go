package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/wg-gen-plus/wgconsole/internal/config"
	"github.com/wg-gen-plus/wgconsole/internal/console"
	errs "github.com/wg-gen-plus/wgconsole/internal/errors"
	"github.com/wg-gen-plus/wgconsole/internal/logging"
	"github.com/wg-gen-plus/wgconsole/internal/router"
	"github.com/wg-gen-plus/wgconsole/internal/session"
	"github.com/wg-gen-plus/wgconsole/internal/views"
)

// Exit codes for scripting.
const (
	ExitCodeSuccess      = 0
	ExitCodeError        = 1
	ExitCodeAuthRequired = 2
	ExitCodeAuthFailed   = 3
)

// cli carries what every command needs. The App is built lazily so
// commands that never touch the backend (keygen, version) do not open
// the token store.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	output  string
	noColor bool

	cfg    *config.Config
	logger *slog.Logger
	app    *console.App
	render *views.Renderer
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}
	defer c.close()

	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitCodeSuccess
	}

	fmt.Fprintf(stderr, "error: %v\n", err)

	return exitCode(err)
}

// exitCode maps an error to a semantic exit code.
func exitCode(err error) int {
	if errors.Is(err, errs.ErrNotAuthenticated) {
		return ExitCodeAuthRequired
	}

	var authErr *session.AuthError
	if errors.As(err, &authErr) || errors.Is(err, errs.ErrOAuthCallback) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "wgconsole",
		Short: "Administration console for a Wg Gen Plus WireGuard backend",
		Long: `wgconsole manages WireGuard clients, server settings, live status and
console users on a Wg Gen Plus backend.

Run without arguments to open the landing view: the client list when signed
in, otherwise instructions for signing in.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			format, err := views.ParseFormat(c.output)
			if err != nil {
				return err
			}

			c.render = views.New(c.stdout, format, !c.noColor && isTerminal(c.stdout))

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context(), router.Home)
		},
	}

	root.SetVersionTemplate(`{{printf "wgconsole version %s\n" .Version}}`)
	root.PersistentFlags().StringVarP(&c.output, "output", "o", "table", "output format: table, json or yaml")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(
		newOpenCmd(c),
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newAuthTypeCmd(c),
		newClientsCmd(c),
		newServerCmd(c),
		newStatusCmd(c),
		newUsersCmd(c),
		newKeygenCmd(c),
		newMCPCmd(c),
		newVersionCmd(c),
	)

	return root
}

// ensureApp loads config, opens the token store and restores the session.
func (c *cli) ensureApp(ctx context.Context) (*console.App, error) {
	if c.app != nil {
		return c.app, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	c.cfg = cfg
	c.logger = logging.NewLogger(cfg.Environment, cfg.LogLevel)

	app, err := console.Open(cfg, c.logger)
	if err != nil {
		return nil, err
	}

	app.Start(ctx)
	c.app = app

	return app, nil
}

func (c *cli) close() {
	if c.app == nil {
		return
	}

	if err := c.app.Close(); err != nil {
		c.logger.Warn("closing token store", slog.String("error", err.Error()))
	}
}

// requireAuth applies the route guard for path. When the guard sends the
// user home the home view is rendered and ErrNotAuthenticated returned.
func (c *cli) requireAuth(ctx context.Context, path string) (*console.App, error) {
	app, err := c.ensureApp(ctx)
	if err != nil {
		return nil, err
	}

	if err := app.Session.WaitProfile(ctx); err != nil {
		return nil, err
	}

	route, _ := app.Router.Resolve(path)
	if route.Path == router.Home {
		return nil, c.sentHome(app)
	}

	return app, nil
}

func (c *cli) sentHome(app *console.App) error {
	if err := c.render.Home(app.Session.IsLocalAuth()); err != nil {
		return err
	}

	return errs.ErrNotAuthenticated
}

// open navigates to path and renders whatever view the guard lets
// through.
func (c *cli) open(ctx context.Context, path string) error {
	app, err := c.ensureApp(ctx)
	if err != nil {
		return err
	}

	page, err := app.Navigate(ctx, path)
	if page.Route.Path == "" {
		return err
	}

	if page.Route.Path == router.Home {
		if requested, ok := router.Match(path); ok && requested.RequireAuth {
			return c.sentHome(app)
		}

		return c.render.Home(app.Session.IsLocalAuth())
	}

	if err != nil {
		c.banner(app.Banner(page.Route))
		return err
	}

	switch page.Route.Path {
	case router.Clients:
		return c.render.Clients(page.Clients)
	case router.Server:
		return c.render.Server(page.Server)
	case router.Status:
		return c.render.Status(page.Status)
	case router.Users:
		return c.render.Users(page.Users)
	}

	return nil
}

// banner prints a container's error banner to stderr in table mode.
func (c *cli) banner(msg string) {
	if msg == "" || c.render.Format() != views.FormatTable {
		return
	}

	fmt.Fprintln(c.stderr, views.Banner(msg))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	info, err := f.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}

func newOpenCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Navigate to a console view (/, /clients, /server, /status, /users)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Context(), args[0])
		},
	}
}

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the wgconsole version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(c.stdout, "wgconsole %s\n", Version)

			return nil
		},
	}
}
