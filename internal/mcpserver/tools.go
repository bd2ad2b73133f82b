// Package mcpserver registers MCP tools that expose console operations.
// Every resource tool passes through the same route guard as the CLI
// views, so an agent cannot reach data the signed-in session could not.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/wg-gen-plus/wgconsole/internal/console"
	errs "github.com/wg-gen-plus/wgconsole/internal/errors"
	"github.com/wg-gen-plus/wgconsole/internal/models"
	"github.com/wg-gen-plus/wgconsole/internal/router"
	"github.com/wg-gen-plus/wgconsole/internal/store"
	"github.com/wg-gen-plus/wgconsole/internal/wgkey"
)

// RegisterTools adds all console tools to the given MCP server.
func RegisterTools(server *mcp.Server, app *console.App) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_whoami",
		Description: "Show the console session: auth state, signed-in user and whether the backend uses local login.",
	}, whoamiHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_login",
		Description: "Sign in with a local username and password. Only works when the backend uses local login.",
	}, loginHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_logout",
		Description: "Sign out and forget the stored session token.",
	}, logoutHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clients_list",
		Description: "List every WireGuard client (peer) with addresses, tags and enabled state.",
	}, clientsListHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "client_get",
		Description: "Read one client by id.",
	}, clientGetHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "client_create",
		Description: "Create a client. Address and allowed IPs are CIDRs. The backend generates the keys.",
	}, clientCreateHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "client_update",
		Description: "Change fields of an existing client. Omitted fields keep their current value.",
	}, clientUpdateHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "client_delete",
		Description: "Delete a client by id.",
	}, clientDeleteHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "client_config",
		Description: "Download the wg-quick configuration file for one client.",
	}, clientConfigHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "client_email",
		Description: "Ask the backend to e-mail the configuration to the client's address.",
	}, clientEmailHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "server_show",
		Description: "Show the server interface settings. The private key is never returned.",
	}, serverShowHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "server_config_diff",
		Description: "Download the server wg config and diff it against the copy seen on the previous call.",
	}, serverDiffHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Live WireGuard status: interface summary and per-peer handshake and traffic counters.",
	}, statusHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "users_list",
		Description: "List console user accounts.",
	}, usersListHandler(app))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "keygen",
		Description: "Generate a WireGuard private/public key pair locally, optionally with a preshared key. Nothing is sent to the backend.",
	}, keygenHandler())
}

// --- Input types ---
// The MCP SDK infers JSON schema from these struct types via jsonschema tags.

// EmptyInput has no parameters.
type EmptyInput struct{}

// LoginInput holds parameters for session_login.
type LoginInput struct {
	Username string `json:"username" jsonschema:"required,local account name"`
	Password string `json:"password" jsonschema:"required,local account password"`
}

// IDInput selects one resource.
type IDInput struct {
	ID string `json:"id" jsonschema:"required,resource id"`
}

// ClientInput holds parameters for client_create and client_update.
type ClientInput struct {
	ID         string   `json:"id,omitempty" jsonschema:"client id, required for client_update"`
	Name       *string  `json:"name,omitempty" jsonschema:"display name, 2 to 40 characters"`
	Email      *string  `json:"email,omitempty" jsonschema:"owner e-mail address"`
	Enable     *bool    `json:"enable,omitempty" jsonschema:"whether the peer is active, defaults to true on create"`
	Address    []string `json:"address,omitempty" jsonschema:"tunnel addresses in CIDR form"`
	AllowedIPs []string `json:"allowedIPs,omitempty" jsonschema:"routes sent through the tunnel in CIDR form"`
	Tags       []string `json:"tags,omitempty" jsonschema:"free-form labels"`
}

// KeygenInput holds parameters for keygen.
type KeygenInput struct {
	Preshared bool `json:"preshared,omitempty" jsonschema:"also generate a preshared key"`
}

// --- Output types ---

// SessionResult is the session as seen by the tools.
type SessionResult struct {
	State       string       `json:"state"`
	AuthStatus  string       `json:"authStatus"`
	Status      string       `json:"status"`
	User        *models.User `json:"user,omitempty"`
	IsLocalAuth bool         `json:"isLocalAuth"`
	Error       string       `json:"error,omitempty"`
}

// ClientsResult wraps the client list.
type ClientsResult struct {
	Total   int             `json:"total"`
	Clients []models.Client `json:"clients"`
}

// ClientResult wraps one client.
type ClientResult struct {
	Client models.Client `json:"client"`
}

// ConfigResult carries a downloaded config file.
type ConfigResult struct {
	ID     string `json:"id,omitempty"`
	Config string `json:"config"`
}

// DoneResult acknowledges an operation without a payload.
type DoneResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// ServerResult wraps the server settings and backend version.
type ServerResult struct {
	Version string        `json:"version"`
	Server  models.Server `json:"server"`
}

// DiffResult is a server config diff as +/- lines.
type DiffResult struct {
	First   bool     `json:"first"`
	Changed bool     `json:"changed"`
	Diff    []string `json:"diff"`
}

// UsersResult wraps the user list.
type UsersResult struct {
	Total int           `json:"total"`
	Users []models.User `json:"users"`
}

// --- Handlers ---

// guard applies the route guard for path before a tool touches the
// backend.
func guard(ctx context.Context, app *console.App, path string) error {
	if err := app.Session.WaitProfile(ctx); err != nil {
		return err
	}

	route, _ := router.Match(path)
	if router.Guard(route, app.Session.IsAuthenticated()) != "" {
		return fmt.Errorf("%w: run session_login or wgconsole login first", errs.ErrNotAuthenticated)
	}

	return nil
}

func sessionResult(app *console.App) *SessionResult {
	snap := app.Session.Snapshot()

	return &SessionResult{
		State:       snap.State.String(),
		AuthStatus:  snap.AuthStatus.String(),
		Status:      snap.Status.String(),
		User:        snap.User,
		IsLocalAuth: snap.IsLocalAuth,
		Error:       snap.Error,
	}
}

func whoamiHandler(app *console.App) mcp.ToolHandlerFor[EmptyInput, *SessionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *SessionResult, error) {
		if err := app.Session.WaitProfile(ctx); err != nil {
			return nil, nil, err
		}

		result := sessionResult(app)

		return textResult(result), result, nil
	}
}

func loginHandler(app *console.App) mcp.ToolHandlerFor[LoginInput, *SessionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LoginInput) (*mcp.CallToolResult, *SessionResult, error) {
		if err := app.Session.LocalLogin(ctx, input.Username, input.Password); err != nil {
			return nil, nil, err
		}

		result := sessionResult(app)
		if result.User != nil {
			app.Logger.Info("signed in through MCP", slog.String("user", result.User.Name))
		}

		return textResult(result), result, nil
	}
}

func logoutHandler(app *console.App) mcp.ToolHandlerFor[EmptyInput, *SessionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *SessionResult, error) {
		if err := app.Session.Logout(ctx); err != nil {
			return nil, nil, err
		}

		result := sessionResult(app)

		return textResult(result), result, nil
	}
}

func clientsListHandler(app *console.App) mcp.ToolHandlerFor[EmptyInput, *ClientsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *ClientsResult, error) {
		if err := guard(ctx, app, router.Clients); err != nil {
			return nil, nil, err
		}

		clients, err := app.Clients.Fetch(ctx)
		if err != nil {
			return nil, nil, err
		}

		if clients == nil {
			clients = []models.Client{}
		}

		result := &ClientsResult{Total: len(clients), Clients: clients}

		return textResult(result), result, nil
	}
}

func clientGetHandler(app *console.App) mcp.ToolHandlerFor[IDInput, *ClientResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, *ClientResult, error) {
		if err := guard(ctx, app, router.Clients); err != nil {
			return nil, nil, err
		}

		client, err := app.Clients.Get(ctx, input.ID)
		if err != nil {
			return nil, nil, err
		}

		result := &ClientResult{Client: client}

		return textResult(result), result, nil
	}
}

// apply copies the fields set in input onto c.
func (input ClientInput) apply(c *models.Client) {
	if input.Name != nil {
		c.Name = *input.Name
	}

	if input.Email != nil {
		c.Email = *input.Email
	}

	if input.Enable != nil {
		c.Enable = *input.Enable
	}

	if input.Address != nil {
		c.Address = input.Address
	}

	if input.AllowedIPs != nil {
		c.AllowedIPs = input.AllowedIPs
	}

	if input.Tags != nil {
		c.Tags = input.Tags
	}
}

func clientCreateHandler(app *console.App) mcp.ToolHandlerFor[ClientInput, *ClientResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ClientInput) (*mcp.CallToolResult, *ClientResult, error) {
		if err := guard(ctx, app, router.Clients); err != nil {
			return nil, nil, err
		}

		client := models.Client{Enable: true}
		input.apply(&client)

		created, err := app.Clients.Create(ctx, client)
		if err != nil {
			return nil, nil, err
		}

		result := &ClientResult{Client: created}

		return textResult(result), result, nil
	}
}

func clientUpdateHandler(app *console.App) mcp.ToolHandlerFor[ClientInput, *ClientResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ClientInput) (*mcp.CallToolResult, *ClientResult, error) {
		if err := guard(ctx, app, router.Clients); err != nil {
			return nil, nil, err
		}

		if input.ID == "" {
			return nil, nil, fmt.Errorf("%w: id is required", errs.ErrInvalidResource)
		}

		client, err := app.Clients.Get(ctx, input.ID)
		if err != nil {
			return nil, nil, err
		}

		input.apply(&client)

		updated, err := app.Clients.Update(ctx, client)
		if err != nil {
			return nil, nil, err
		}

		result := &ClientResult{Client: updated}

		return textResult(result), result, nil
	}
}

func clientDeleteHandler(app *console.App) mcp.ToolHandlerFor[IDInput, *DoneResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, *DoneResult, error) {
		if err := guard(ctx, app, router.Clients); err != nil {
			return nil, nil, err
		}

		if err := app.Clients.Delete(ctx, input.ID); err != nil {
			return nil, nil, err
		}

		result := &DoneResult{OK: true, Message: "client " + input.ID + " deleted"}

		return textResult(result), result, nil
	}
}

func clientConfigHandler(app *console.App) mcp.ToolHandlerFor[IDInput, *ConfigResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, *ConfigResult, error) {
		if err := guard(ctx, app, router.Clients); err != nil {
			return nil, nil, err
		}

		data, err := app.Clients.Config(ctx, input.ID)
		if err != nil {
			return nil, nil, err
		}

		result := &ConfigResult{ID: input.ID, Config: string(data)}

		return textResult(result), result, nil
	}
}

func clientEmailHandler(app *console.App) mcp.ToolHandlerFor[IDInput, *DoneResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input IDInput) (*mcp.CallToolResult, *DoneResult, error) {
		if err := guard(ctx, app, router.Clients); err != nil {
			return nil, nil, err
		}

		if err := app.Clients.SendEmail(ctx, input.ID); err != nil {
			return nil, nil, err
		}

		result := &DoneResult{OK: true, Message: "configuration e-mailed"}

		return textResult(result), result, nil
	}
}

func serverShowHandler(app *console.App) mcp.ToolHandlerFor[EmptyInput, *ServerResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *ServerResult, error) {
		if err := guard(ctx, app, router.Server); err != nil {
			return nil, nil, err
		}

		srv, err := app.Server.Read(ctx)
		if err != nil {
			return nil, nil, err
		}

		version, _ := app.Server.Version(ctx)

		result := &ServerResult{Version: version, Server: *srv}
		result.Server.PrivateKey = ""

		return textResult(result), result, nil
	}
}

func serverDiffHandler(app *console.App) mcp.ToolHandlerFor[EmptyInput, *DiffResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *DiffResult, error) {
		if err := guard(ctx, app, router.Server); err != nil {
			return nil, nil, err
		}

		diff, err := app.Server.ConfigDiff(ctx)
		if err != nil {
			return nil, nil, err
		}

		result := &DiffResult{First: diff.First, Changed: diff.Changed, Diff: []string{}}

		for _, l := range diff.Lines {
			switch l.Op {
			case store.DiffInsert:
				result.Diff = append(result.Diff, "+ "+l.Text)
			case store.DiffDelete:
				result.Diff = append(result.Diff, "- "+l.Text)
			}
		}

		return textResult(result), result, nil
	}
}

func statusHandler(app *console.App) mcp.ToolHandlerFor[EmptyInput, *models.Status] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *models.Status, error) {
		if err := guard(ctx, app, router.Status); err != nil {
			return nil, nil, err
		}

		st, err := app.Status.Refresh(ctx)
		if err != nil {
			return nil, nil, err
		}

		return textResult(st), &st, nil
	}
}

func usersListHandler(app *console.App) mcp.ToolHandlerFor[EmptyInput, *UsersResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, *UsersResult, error) {
		if err := guard(ctx, app, router.Users); err != nil {
			return nil, nil, err
		}

		users, err := app.Users.Fetch(ctx)
		if err != nil {
			return nil, nil, err
		}

		if users == nil {
			users = []models.User{}
		}

		result := &UsersResult{Total: len(users), Users: users}

		return textResult(result), result, nil
	}
}

func keygenHandler() mcp.ToolHandlerFor[KeygenInput, *wgkey.Pair] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input KeygenInput) (*mcp.CallToolResult, *wgkey.Pair, error) {
		pair, err := wgkey.Generate(input.Preshared)
		if err != nil {
			return nil, nil, err
		}

		return textResult(pair), &pair, nil
	}
}

// textResult builds a CallToolResult with JSON text content from any value.
// This provides the unstructured content alongside the structured output
// that the SDK populates automatically.
func textResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error marshaling result: %v", err)}},
			IsError: true,
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
