package views

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/wg-gen-plus/wgconsole/internal/models"
	"github.com/wg-gen-plus/wgconsole/internal/session"
	"github.com/wg-gen-plus/wgconsole/internal/store"
	"github.com/wg-gen-plus/wgconsole/internal/wgkey"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Clients renders the client list.
func (r *Renderer) Clients(clients []models.Client) error {
	if ok, err := r.structured(clients); ok {
		return err
	}

	if len(clients) == 0 {
		return r.empty("No clients found")
	}

	t := r.newTable()
	t.AppendHeader(r.header("ID", "NAME", "EMAIL", "ENABLED", "ADDRESS", "TAGS"))

	for _, c := range sortedByName(clients, func(c models.Client) string { return c.Name }) {
		t.AppendRow(table.Row{c.ID, c.Name, c.Email, r.yesNo(c.Enable), join(c.Address), join(c.Tags)})
	}

	t.AppendFooter(table.Row{"", "", "", "", "TOTAL", len(clients)})
	t.Render()

	return nil
}

// sortedByName returns a copy of items ordered for reading: case and
// accents are ignored so "Éva" sits next to "eva".
func sortedByName[T any](items []T, name func(T) string) []T {
	col := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		return col.CompareString(name(a), name(b))
	})
	return out
}

// Client renders one client.
func (r *Renderer) Client(c models.Client) error {
	if ok, err := r.structured(c); ok {
		return err
	}

	rows := [][2]string{
		{"ID", c.ID},
		{"Name", c.Name},
		{"Email", c.Email},
		{"Enabled", r.yesNo(c.Enable)},
		{"Address", join(c.Address)},
		{"Allowed IPs", join(c.AllowedIPs)},
		{"Tags", join(c.Tags)},
		{"Public key", c.PublicKey},
		{"Remote DNS", r.yesNo(c.UseRemoteDNS)},
		{"Site to site", r.yesNo(c.Site2Site)},
	}

	if c.Site2Site {
		rows = append(rows, [2]string{"LAN IPs", join(c.LANIPs)})
	}

	if c.Site2SiteEndpoint != "" {
		rows = append(rows, [2]string{"Endpoint", fmt.Sprintf("%s:%d", c.Site2SiteEndpoint, c.Site2SiteEndpointListenPort)})
	}

	rows = append(rows,
		[2]string{"Created", formatTime(c.Created)},
		[2]string{"Updated", formatTime(c.Updated)},
		[2]string{"Updated by", c.UpdatedBy},
	)

	r.keyValues(rows)

	return nil
}

// Users renders the user list.
func (r *Renderer) Users(users []models.User) error {
	if ok, err := r.structured(users); ok {
		return err
	}

	if len(users) == 0 {
		return r.empty("No users found")
	}

	t := r.newTable()
	t.AppendHeader(r.header("SUB", "NAME", "EMAIL", "ADMIN"))

	for _, u := range sortedByName(users, func(u models.User) string { return u.Name }) {
		t.AppendRow(table.Row{u.Sub, u.Name, u.Email, r.yesNo(u.IsAdmin)})
	}

	t.Render()

	return nil
}

// User renders one user profile.
func (r *Renderer) User(u *models.User) error {
	if u == nil {
		u = models.UnknownUser()
	}

	if ok, err := r.structured(u); ok {
		return err
	}

	rows := [][2]string{
		{"Sub", u.Sub},
		{"Name", u.Name},
		{"Email", u.Email},
		{"Admin", r.yesNo(u.IsAdmin)},
	}

	if u.Profile != "" {
		rows = append(rows, [2]string{"Profile", u.Profile})
	}

	r.keyValues(rows)

	return nil
}

// Server renders the server interface settings. The private key is
// never shown.
func (r *Renderer) Server(srv *models.Server) error {
	if srv == nil {
		return r.empty("No server configuration loaded")
	}

	redacted := *srv
	redacted.PrivateKey = ""

	if ok, err := r.structured(redacted); ok {
		return err
	}

	r.keyValues([][2]string{
		{"Address", join(srv.Address)},
		{"Listen port", strconv.Itoa(srv.ListenPort)},
		{"MTU", strconv.Itoa(srv.Mtu)},
		{"Public key", srv.PublicKey},
		{"Endpoint", srv.Endpoint},
		{"Persistent keepalive", strconv.Itoa(srv.PersistentKeepalive)},
		{"DNS", join(srv.DNS)},
		{"Allowed IPs", join(srv.AllowedIPs)},
		{"Pre up", srv.PreUp},
		{"Post up", srv.PostUp},
		{"Pre down", srv.PreDown},
		{"Post down", srv.PostDown},
		{"Updated", formatTime(srv.Updated)},
		{"Updated by", srv.UpdatedBy},
	})

	return nil
}

// Version renders the backend build version.
func (r *Renderer) Version(version string) error {
	if ok, err := r.structured(models.Version{Version: version}); ok {
		return err
	}

	_, err := fmt.Fprintln(r.w, version)

	return err
}

// Status renders the interface summary followed by one row per peer.
func (r *Renderer) Status(st models.Status) error {
	if ok, err := r.structured(st); ok {
		return err
	}

	if !st.Enabled {
		return r.empty("Status API is disabled on the backend")
	}

	if iface := st.Interface; iface != nil {
		r.keyValues([][2]string{
			{"Interface", iface.Name},
			{"Device", iface.Device},
			{"Listen port", strconv.Itoa(iface.ListenPort)},
			{"Peers", strconv.Itoa(iface.NumberOfPeers)},
			{"Public key", iface.PublicKey},
		})
	}

	if len(st.Clients) == 0 {
		return r.empty("No peers reported")
	}

	t := r.newTable()
	t.AppendHeader(r.header("NAME", "EMAIL", "CONNECTED", "ENDPOINT", "ALLOWED IPS", "HANDSHAKE", "RX", "TX"))

	for _, c := range st.Clients {
		t.AppendRow(table.Row{
			c.Name, c.Email, r.yesNo(c.Connected), c.Endpoint, join(c.AllowedIPs),
			formatTime(c.LastHandshake), formatBytes(c.ReceivedBytes), formatBytes(c.TransmittedBytes),
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.Render()

	return nil
}

type sessionView struct {
	State       string       `json:"state"`
	AuthStatus  string       `json:"authStatus"`
	Status      string       `json:"status"`
	User        *models.User `json:"user,omitempty"`
	RedirectURL string       `json:"authRedirectUrl,omitempty"`
	IsLocalAuth bool         `json:"isLocalAuth"`
	Error       string       `json:"error,omitempty"`
}

// Session renders who is signed in and how far an auth attempt got.
func (r *Renderer) Session(snap session.Snapshot) error {
	v := sessionView{
		State:       snap.State.String(),
		AuthStatus:  snap.AuthStatus.String(),
		Status:      snap.Status.String(),
		User:        snap.User,
		RedirectURL: snap.AuthRedirectURL,
		IsLocalAuth: snap.IsLocalAuth,
		Error:       snap.Error,
	}

	if ok, err := r.structured(v); ok {
		return err
	}

	state := v.State
	if snap.State == session.StateAuthenticated {
		state = r.paint(text.FgGreen, state)
	} else if snap.State == session.StateError {
		state = r.paint(text.FgRed, state)
	}

	rows := [][2]string{
		{"State", state},
		{"OAuth2", v.AuthStatus},
		{"Local login", v.Status},
	}

	if u := snap.User; u != nil {
		rows = append(rows,
			[2]string{"User", u.Name},
			[2]string{"Email", u.Email},
			[2]string{"Admin", r.yesNo(u.IsAdmin)},
		)
	}

	if v.RedirectURL != "" {
		rows = append(rows, [2]string{"Sign-in URL", v.RedirectURL})
	}

	r.keyValues(rows)

	if v.Error != "" {
		_, err := fmt.Fprintln(r.w, Banner(v.Error))
		return err
	}

	return nil
}

// AuthType renders which login path the backend offers.
func (r *Renderer) AuthType(isLocal bool) error {
	if ok, err := r.structured(models.AuthType{IsLocal: isLocal}); ok {
		return err
	}

	mode := "oauth2"
	if isLocal {
		mode = "local"
	}

	_, err := fmt.Fprintln(r.w, mode)

	return err
}

// Home renders the landing view shown to anonymous users.
func (r *Renderer) Home(isLocal bool) error {
	login := "wgconsole login --oauth"
	if isLocal {
		login = "wgconsole login"
	}

	if ok, err := r.structured(map[string]any{"view": "home", "isLocalAuth": isLocal, "login": login}); ok {
		return err
	}

	_, err := fmt.Fprintf(r.w, "%s\n\nYou are not signed in. Run %s to continue.\n",
		r.paint(text.Bold, "Wg Gen Plus"), r.paint(text.FgHiCyan, login))

	return err
}

// KeyPair renders freshly generated WireGuard keys.
func (r *Renderer) KeyPair(p wgkey.Pair) error {
	if ok, err := r.structured(p); ok {
		return err
	}

	rows := [][2]string{
		{"Private key", p.PrivateKey},
		{"Public key", p.PublicKey},
	}

	if p.PresharedKey != "" {
		rows = append(rows, [2]string{"Preshared key", p.PresharedKey})
	}

	r.keyValues(rows)

	return nil
}

type diffView struct {
	First   bool     `json:"first"`
	Changed bool     `json:"changed"`
	Diff    []string `json:"diff"`
}

// ConfigDiff renders a server config diff with coloured +/- lines.
func (r *Renderer) ConfigDiff(d store.ConfigDiff) error {
	if r.format != FormatTable {
		v := diffView{First: d.First, Changed: d.Changed, Diff: []string{}}
		for _, l := range d.Lines {
			if l.Op != store.DiffEqual {
				v.Diff = append(v.Diff, diffPrefix(l.Op)+l.Text)
			}
		}

		_, err := r.structured(v)

		return err
	}

	if d.First {
		return r.empty("No earlier server config cached, saved the current one")
	}

	if !d.Changed {
		return r.empty("Server config unchanged")
	}

	for _, l := range d.Lines {
		line := diffPrefix(l.Op) + l.Text

		switch l.Op {
		case store.DiffInsert:
			line = r.paint(text.FgGreen, line)
		case store.DiffDelete:
			line = r.paint(text.FgRed, line)
		}

		if _, err := fmt.Fprintln(r.w, line); err != nil {
			return err
		}
	}

	return nil
}

func diffPrefix(op store.DiffOp) string {
	switch op {
	case store.DiffInsert:
		return "+ "
	case store.DiffDelete:
		return "- "
	default:
		return "  "
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	return t.Local().Format(time.DateTime)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
