package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	errs "github.com/wg-gen-plus/wgconsole/internal/errors"
	"github.com/wg-gen-plus/wgconsole/internal/models"
)

// ClientsPath is the backend's client resource root.
const ClientsPath = "/client"

// Clients holds WireGuard peers.
type Clients struct {
	*Collection[models.Client]
}

// NewClients creates the clients container.
func NewClients(client API, bannerTimeout time.Duration, logger *slog.Logger) *Clients {
	return &Clients{
		Collection: NewCollection(client, CollectionOptions[models.Client]{
			Path:          ClientsPath,
			Noun:          "client",
			Plural:        "clients",
			ID:            func(c models.Client) string { return c.ID },
			BannerTimeout: bannerTimeout,
			Logger:        logger,
		}),
	}
}

// Create validates c locally and then creates it.
func (c *Clients) Create(ctx context.Context, client models.Client) (models.Client, error) {
	if err := c.validate(client); err != nil {
		return models.Client{}, err
	}

	return c.Collection.Create(ctx, client)
}

// Update validates c locally and then patches it.
func (c *Clients) Update(ctx context.Context, client models.Client) (models.Client, error) {
	if err := c.validate(client); err != nil {
		return models.Client{}, err
	}

	return c.Collection.Update(ctx, client)
}

// Config downloads the wg-quick file for one client.
func (c *Clients) Config(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty client id", errs.ErrInvalidResource)
	}

	data, err := c.api.GetRaw(ctx, c.ItemPath(id)+"/config")
	if err != nil {
		return nil, c.fail(err, "Failed to download client config")
	}

	return data, nil
}

// SendEmail asks the backend to e-mail the client its config.
func (c *Clients) SendEmail(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty client id", errs.ErrInvalidResource)
	}

	if err := c.api.Get(ctx, c.ItemPath(id)+"/email", nil); err != nil {
		return c.fail(err, "Failed to send email")
	}

	return nil
}

// SetEnabled reads the client, flips its enable flag and saves it.
func (c *Clients) SetEnabled(ctx context.Context, id string, enabled bool) (models.Client, error) {
	client, err := c.Get(ctx, id)
	if err != nil {
		return models.Client{}, err
	}

	client.Enable = enabled

	return c.Collection.Update(ctx, client)
}

func (c *Clients) validate(client models.Client) error {
	problems := client.Validate()
	if len(problems) == 0 {
		return nil
	}

	err := fmt.Errorf("%w: %w", errs.ErrInvalidResource, errors.Join(problems...))
	msg := problems[0].Error()
	c.Banner.Show(msg)

	return &Error{Message: msg, Err: err}
}
