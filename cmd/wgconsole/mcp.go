package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/wg-gen-plus/wgconsole/internal/console"
	"github.com/wg-gen-plus/wgconsole/internal/mcpserver"
	"github.com/wg-gen-plus/wgconsole/internal/server"
	"golang.org/x/sync/errgroup"
)

func newMCPCmd(c *cli) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the console operations as MCP tools",
		Long: `Serve the console operations as MCP tools, over stdio by default.

With --listen (or MCP_LISTEN_ADDR) the tools are served over streamable
HTTP at /mcp. Every request must carry one of the MCP_API_KEYS as a
Bearer token. The process holds the token store lock while it runs, so
other wgconsole commands wait for it to exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			if listen != "" {
				c.cfg.MCPListenAddr = listen
			}

			mcpServer := mcp.NewServer(
				&mcp.Implementation{Name: "wgconsole", Version: Version},
				nil,
			)
			mcpserver.RegisterTools(mcpServer, app)

			if c.cfg.MCPListenAddr == "" {
				c.logger.Info("serving MCP over stdio")
				return mcpServer.Run(cmd.Context(), &mcp.StdioTransport{})
			}

			return c.serveMCPHTTP(cmd.Context(), app, mcpServer)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "serve MCP over HTTP on this address (overrides MCP_LISTEN_ADDR)")

	return cmd
}

func (c *cli) serveMCPHTTP(ctx context.Context, app *console.App, mcpServer *mcp.Server) error {
	if err := c.cfg.ValidateMCPHTTP(); err != nil {
		return fmt.Errorf("invalid MCP configuration: %w", err)
	}

	keys, err := c.cfg.ParseMCPAPIKeys()
	if err != nil {
		return err
	}

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return mcpServer
	}, nil)

	mux := server.NewMux(server.MuxConfig{
		Keys:       keys,
		MCPHandler: handler,
		Logger:     c.logger,
		Healthy:    app.Session.IsAuthenticated,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Serve(gctx, server.NewHTTPServer(c.cfg.MCPListenAddr, mux), c.logger)
	})

	g.Go(func() error {
		if err := app.Session.WaitProfile(gctx); err != nil {
			return nil
		}

		snap := app.Session.Snapshot()
		if snap.User == nil {
			c.logger.Warn("MCP server started without a session, tools will ask for session_login")
			return nil
		}

		c.logger.Info("MCP server ready",
			slog.String("user", snap.User.Name),
			slog.Int("api_keys", len(keys)),
		)

		return nil
	})

	return g.Wait()
}
