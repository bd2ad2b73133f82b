// Package store holds the console's feature state: one container per
// backend resource, each proxying CRUD calls through the API client and
// keeping the last fetched data plus an auto-hiding error banner.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/wg-gen-plus/wgconsole/internal/api"
	errs "github.com/wg-gen-plus/wgconsole/internal/errors"
)

// API is the subset of the API client the containers use.
type API interface {
	Get(ctx context.Context, path string, out any) error
	GetRaw(ctx context.Context, path string) ([]byte, error)
	Post(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string, out any) error
}

// Collection is the CRUD template shared by every list resource.
type Collection[T any] struct {
	api    API
	path   string
	noun   string
	plural string
	id     func(T) string
	logger *slog.Logger

	Banner *Banner

	mu    sync.RWMutex
	items []T
}

// CollectionOptions parameterizes a Collection.
type CollectionOptions[T any] struct {
	// Path is the resource root, e.g. "/users".
	Path string
	// Noun and Plural build the default failure messages.
	Noun   string
	Plural string
	// ID returns the key used in "<Path>/<id>" URLs.
	ID func(T) string
	// BannerTimeout is the error banner delay; zero uses the default.
	BannerTimeout time.Duration
	Logger        *slog.Logger
}

// NewCollection creates an empty collection.
func NewCollection[T any](client API, opts CollectionOptions[T]) *Collection[T] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Collection[T]{
		api:    client,
		path:   opts.Path,
		noun:   opts.Noun,
		plural: opts.Plural,
		id:     opts.ID,
		logger: logger,
		Banner: NewBanner(opts.BannerTimeout),
	}
}

// Items returns a copy of the last fetched list.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, len(c.items))
	copy(out, c.items)

	return out
}

// ItemPath returns the URL of one item.
func (c *Collection[T]) ItemPath(id string) string {
	return c.path + "/" + url.PathEscape(id)
}

// Fetch reads the full list. On success it replaces the stored list and
// hides the banner.
func (c *Collection[T]) Fetch(ctx context.Context) ([]T, error) {
	var items []T
	if err := c.api.Get(ctx, c.path, &items); err != nil {
		return nil, c.fail(err, "Failed to fetch "+c.plural)
	}

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()

	c.Banner.Clear()

	return c.Items(), nil
}

// Get reads one item.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var item T
	if id == "" {
		return item, fmt.Errorf("%w: empty %s id", errs.ErrInvalidResource, c.noun)
	}

	if err := c.api.Get(ctx, c.ItemPath(id), &item); err != nil {
		return item, c.fail(err, "Failed to fetch "+c.noun)
	}

	return item, nil
}

// Create posts a new item and refreshes the list.
func (c *Collection[T]) Create(ctx context.Context, item T) (T, error) {
	var created T
	if err := c.api.Post(ctx, c.path, item, &created); err != nil {
		return created, c.fail(err, "Failed to create "+c.noun)
	}

	c.refresh(ctx)

	return created, nil
}

// Update patches the item identified by its ID accessor and refreshes
// the list.
func (c *Collection[T]) Update(ctx context.Context, item T) (T, error) {
	var updated T

	id := c.id(item)
	if id == "" {
		return updated, fmt.Errorf("%w: empty %s id", errs.ErrInvalidResource, c.noun)
	}

	if err := c.api.Patch(ctx, c.ItemPath(id), item, &updated); err != nil {
		return updated, c.fail(err, "Failed to update "+c.noun)
	}

	c.refresh(ctx)

	return updated, nil
}

// Delete removes an item and refreshes the list.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty %s id", errs.ErrInvalidResource, c.noun)
	}

	if err := c.api.Delete(ctx, c.ItemPath(id), nil); err != nil {
		return c.fail(err, "Failed to delete "+c.noun)
	}

	c.refresh(ctx)

	return nil
}

// refresh re-fetches after a mutation. Its failure shows in the banner
// but does not undo the mutation's success.
func (c *Collection[T]) refresh(ctx context.Context) {
	if _, err := c.Fetch(ctx); err != nil {
		c.logger.Warn("refreshing after change",
			slog.String("resource", c.path),
			slog.String("error", err.Error()),
		)
	}
}

// fail shows the display message for err and returns err wrapped with
// it.
func (c *Collection[T]) fail(err error, fallback string) error {
	msg := api.Message(err, fallback)
	c.Banner.Show(msg)

	return &Error{Message: msg, Err: err}
}

// Error is a container failure: the message shown in the banner plus the
// cause.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }
