package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wg-gen-plus/wgconsole/internal/api"
	"github.com/wg-gen-plus/wgconsole/internal/models"
	"golang.org/x/sync/errgroup"
)

// Status paths.
const (
	statusEnabledPath   = "/status/enabled"
	statusInterfacePath = "/status/interface"
	statusClientsPath   = "/status/clients"
)

// Status holds the live WireGuard interface state.
type Status struct {
	api    API
	logger *slog.Logger

	Banner *Banner

	mu     sync.RWMutex
	status models.Status
}

// NewStatus creates the status container.
func NewStatus(client API, bannerTimeout time.Duration, logger *slog.Logger) *Status {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Status{
		api:    client,
		logger: logger,
		Banner: NewBanner(bannerTimeout),
	}
}

// Snapshot returns the last fetched status.
func (s *Status) Snapshot() models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.status
	out.Clients = append([]models.ClientStatus(nil), s.status.Clients...)

	if s.status.Interface != nil {
		iface := *s.status.Interface
		out.Interface = &iface
	}

	return out
}

// Enabled reports whether the status endpoints are turned on.
func (s *Status) Enabled(ctx context.Context) (bool, error) {
	enabled, err := s.fetchEnabled(ctx)
	if err != nil {
		return false, s.fail(err)
	}

	s.mu.Lock()
	s.status.Enabled = enabled
	s.mu.Unlock()

	return enabled, nil
}

// Interface reads the interface summary.
func (s *Status) Interface(ctx context.Context) (*models.InterfaceStatus, error) {
	iface, err := s.fetchInterface(ctx)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.status.Interface = iface
	s.mu.Unlock()

	return iface, nil
}

// Clients reads per-peer handshake and transfer state.
func (s *Status) Clients(ctx context.Context) ([]models.ClientStatus, error) {
	clients, err := s.fetchClients(ctx)
	if err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	s.status.Clients = clients
	s.mu.Unlock()

	return clients, nil
}

// Refresh fetches all three status endpoints concurrently. The first
// failure cancels the others and is the one shown; the previous status is
// then kept whole.
func (s *Status) Refresh(ctx context.Context) (models.Status, error) {
	var fresh models.Status

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		enabled, err := s.fetchEnabled(gctx)
		fresh.Enabled = enabled
		return err
	})
	g.Go(func() error {
		iface, err := s.fetchInterface(gctx)
		fresh.Interface = iface
		return err
	})
	g.Go(func() error {
		clients, err := s.fetchClients(gctx)
		fresh.Clients = clients
		return err
	})

	if err := g.Wait(); err != nil {
		return s.Snapshot(), s.fail(err)
	}

	s.mu.Lock()
	s.status = fresh
	s.mu.Unlock()

	s.Banner.Clear()

	return s.Snapshot(), nil
}

func (s *Status) fetchEnabled(ctx context.Context) (bool, error) {
	var resp models.StatusEnabled
	if err := s.api.Get(ctx, statusEnabledPath, &resp); err != nil {
		return false, err
	}

	return resp.Enabled, nil
}

func (s *Status) fetchInterface(ctx context.Context) (*models.InterfaceStatus, error) {
	var resp models.InterfaceStatus
	if err := s.api.Get(ctx, statusInterfacePath, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (s *Status) fetchClients(ctx context.Context) ([]models.ClientStatus, error) {
	var resp []models.ClientStatus
	if err := s.api.Get(ctx, statusClientsPath, &resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *Status) fail(err error) error {
	msg := api.Message(err, "Unknown error occurred")
	s.Banner.Show(msg)

	return &Error{Message: msg, Err: err}
}
