package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wg-gen-plus/wgconsole/internal/models"
)

// UsersPath is the backend's user resource root.
const UsersPath = "/users"

// Users holds console accounts.
type Users struct {
	*Collection[models.User]

	meMu sync.RWMutex
	me   *models.User
}

// NewUsers creates the users container.
func NewUsers(client API, bannerTimeout time.Duration, logger *slog.Logger) *Users {
	return &Users{
		Collection: NewCollection(client, CollectionOptions[models.User]{
			Path:          UsersPath,
			Noun:          "user",
			Plural:        "users",
			ID:            func(u models.User) string { return u.Sub },
			BannerTimeout: bannerTimeout,
			Logger:        logger,
		}),
	}
}

// Me reads the signed-in user's account. On failure the banner shows the
// error and an unprivileged "Unknown User" is returned instead, so Me
// never fails.
func (u *Users) Me(ctx context.Context) *models.User {
	var me models.User
	if err := u.api.Get(ctx, UsersPath+"/me", &me); err != nil {
		_ = u.fail(err, "Unknown error occurred")
		u.setMe(models.UnknownUser())

		return models.UnknownUser()
	}

	u.setMe(&me)

	return &me
}

// Current returns the last value read by Me, or nil.
func (u *Users) Current() *models.User {
	u.meMu.RLock()
	defer u.meMu.RUnlock()

	if u.me == nil {
		return nil
	}

	me := *u.me

	return &me
}

func (u *Users) setMe(me *models.User) {
	u.meMu.Lock()
	u.me = me
	u.meMu.Unlock()
}
