package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/wg-gen-plus/wgconsole/internal/api"
	"github.com/wg-gen-plus/wgconsole/internal/models"
)

// Server paths.
const (
	serverPath        = "/server"
	serverConfigPath  = "/server/config"
	serverVersionPath = "/server/version"
)

// ConfigCache keeps the last server config seen across runs.
type ConfigCache interface {
	ServerConfig() []byte
	SaveServerConfig(data []byte) error
}

// Server holds the WireGuard server settings and its rendered config.
type Server struct {
	api    API
	cache  ConfigCache
	logger *slog.Logger

	Banner *Banner

	mu      sync.RWMutex
	server  *models.Server
	config  []byte
	version string
}

// NewServer creates the server container. cache may be nil.
func NewServer(client API, cache ConfigCache, bannerTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		api:     client,
		cache:   cache,
		logger:  logger,
		Banner:  NewBanner(bannerTimeout),
		version: models.DefaultVersion,
	}
}

// Current returns the last fetched server settings, or nil.
func (s *Server) Current() *models.Server {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.server == nil {
		return nil
	}

	srv := *s.server

	return &srv
}

// Read fetches the server settings and then its config file. A config
// failure shows in the banner without failing Read.
func (s *Server) Read(ctx context.Context) (*models.Server, error) {
	var srv models.Server
	if err := s.api.Get(ctx, serverPath, &srv); err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.server = &srv
	s.mu.Unlock()

	s.Banner.Clear()

	if _, err := s.Config(ctx); err != nil {
		s.logger.Warn("reading server config", slog.String("error", err.Error()))
	}

	return s.Current(), nil
}

// Update patches the server settings.
func (s *Server) Update(ctx context.Context, srv models.Server) (*models.Server, error) {
	var updated models.Server
	if err := s.api.Patch(ctx, serverPath, srv, &updated); err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.server = &updated
	s.mu.Unlock()

	return s.Current(), nil
}

// Config downloads the rendered wg-quick file for the server.
func (s *Server) Config(ctx context.Context) ([]byte, error) {
	data, err := s.api.GetRaw(ctx, serverConfigPath)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.config = data
	s.mu.Unlock()

	return data, nil
}

// Version reads the backend build version. On failure the last known
// version, initially the CI placeholder, is returned with the error.
func (s *Server) Version(ctx context.Context) (string, error) {
	var v models.Version
	if err := s.api.Get(ctx, serverVersionPath, &v); err != nil {
		return s.cachedVersion(), s.fail(err)
	}

	if v.Version == "" {
		return s.cachedVersion(), nil
	}

	s.mu.Lock()
	s.version = v.Version
	s.mu.Unlock()

	return v.Version, nil
}

func (s *Server) cachedVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.version
}

// ConfigDiff is the line diff between two server config files.
type ConfigDiff struct {
	// First is true when no earlier config was cached.
	First bool
	// Changed is false when the files are identical.
	Changed bool
	Lines   []DiffLine
}

// DiffOp marks a diff line.
type DiffOp int

const (
	DiffEqual DiffOp = iota
	DiffInsert
	DiffDelete
)

// DiffLine is one line of a ConfigDiff.
type DiffLine struct {
	Op   DiffOp
	Text string
}

// String renders the diff with "+", "-" and " " prefixes.
func (d ConfigDiff) String() string {
	var b strings.Builder

	for _, l := range d.Lines {
		switch l.Op {
		case DiffInsert:
			b.WriteString("+ ")
		case DiffDelete:
			b.WriteString("- ")
		default:
			b.WriteString("  ")
		}

		b.WriteString(l.Text)
		b.WriteByte('\n')
	}

	return b.String()
}

// ConfigDiff downloads the current server config, diffs it against the
// cached copy from the previous call and caches the new one.
func (s *Server) ConfigDiff(ctx context.Context) (ConfigDiff, error) {
	var prev []byte
	if s.cache != nil {
		prev = s.cache.ServerConfig()
	}

	cur, err := s.Config(ctx)
	if err != nil {
		return ConfigDiff{}, err
	}

	diff := DiffConfigs(string(prev), string(cur))
	diff.First = prev == nil

	if s.cache != nil {
		if err := s.cache.SaveServerConfig(cur); err != nil {
			s.logger.Warn("caching server config", slog.String("error", err.Error()))
		}
	}

	return diff, nil
}

// DiffConfigs computes a line-level diff from prev to cur.
func DiffConfigs(prev, cur string) ConfigDiff {
	dmp := diffmatchpatch.New()

	a, b, lines := dmp.DiffLinesToChars(prev, cur)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	out := ConfigDiff{}

	for _, d := range diffs {
		op := DiffEqual

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = DiffInsert
			out.Changed = true
		case diffmatchpatch.DiffDelete:
			op = DiffDelete
			out.Changed = true
		}

		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" && d.Text == "" {
			continue
		}

		for _, line := range strings.Split(text, "\n") {
			out.Lines = append(out.Lines, DiffLine{Op: op, Text: line})
		}
	}

	return out
}

func (s *Server) fail(err error) error {
	msg := api.Message(err, "Unknown error occurred")
	s.Banner.Show(msg)

	return &Error{Message: msg, Err: err}
}
