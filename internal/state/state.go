// Package state is the console's durable token store. It keeps the
// session token, the signed-in user and the in-flight OAuth2 client id in
// a bbolt database so a session survives process restarts.
package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/wg-gen-plus/wgconsole/internal/models"
	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.wgconsole/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

// Key names match the ones the browser console used in localStorage so
// an exported session can be imported as-is.
var (
	appBucket   = []byte("app")
	cacheBucket = []byte("cache")

	tokenKey        = []byte("token")
	userKey         = []byte("user")
	clientIDKey     = []byte("clientId")
	serverConfigKey = []byte("server_config")
)

// State wraps a bbolt database for all persistent console state.
type State struct {
	db *bolt.DB
}

// Load opens the state database at ~/.wgconsole/state.db, creating it if
// it does not exist.
func Load() (*State, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}

	return LoadAt(path)
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(appBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(cacheBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

func (s *State) get(bucket, key []byte) []byte {
	var out []byte

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}

		return nil
	})

	return out
}

func (s *State) put(bucket, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, value)
	})
}

func (s *State) delete(bucket, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	})
}

// Token returns the stored session token, or empty string.
func (s *State) Token() string {
	return string(s.get(appBucket, tokenKey))
}

// SaveToken persists the session token, replacing any previous one.
func (s *State) SaveToken(token string) error {
	return s.put(appBucket, tokenKey, []byte(token))
}

// DestroyToken removes the session token. Removing an absent token is
// not an error.
func (s *State) DestroyToken() error {
	return s.delete(appBucket, tokenKey)
}

// ClientID returns the OAuth2 client id of an in-flight exchange, or
// empty string.
func (s *State) ClientID() string {
	return string(s.get(appBucket, clientIDKey))
}

// SaveClientID persists the OAuth2 client id handed out with the
// authorization URL.
func (s *State) SaveClientID(id string) error {
	return s.put(appBucket, clientIDKey, []byte(id))
}

// DestroyClientID removes the OAuth2 client id.
func (s *State) DestroyClientID() error {
	return s.delete(appBucket, clientIDKey)
}

// User returns the stored user, or nil when none is stored or the
// record cannot be decoded.
func (s *State) User() *models.User {
	data := s.get(appBucket, userKey)
	if data == nil {
		return nil
	}

	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil
	}

	return &u
}

// SaveUser persists the signed-in user as JSON.
func (s *State) SaveUser(u *models.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}

	return s.put(appBucket, userKey, data)
}

// DestroyUser removes the stored user.
func (s *State) DestroyUser() error {
	return s.delete(appBucket, userKey)
}

// SaveSession writes token and user in one transaction and drops the
// OAuth2 client id, which is no longer needed once a token exists.
func (s *State) SaveSession(token string, u *models.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(appBucket)
		if err := b.Put(tokenKey, []byte(token)); err != nil {
			return err
		}

		if err := b.Put(userKey, data); err != nil {
			return err
		}

		return b.Delete(clientIDKey)
	})
}

// ClearSession removes token, user and client id in one transaction.
func (s *State) ClearSession() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(appBucket)
		for _, k := range [][]byte{tokenKey, userKey, clientIDKey} {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		return nil
	})
}

// ServerConfig returns the last server config file seen, or nil.
func (s *State) ServerConfig() []byte {
	return s.get(cacheBucket, serverConfigKey)
}

// SaveServerConfig records the server config file for later diffs.
func (s *State) SaveServerConfig(data []byte) error {
	return s.put(cacheBucket, serverConfigKey, data)
}

// DefaultPath returns ~/.wgconsole/state.db.
func DefaultPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		// Refuse to fall back to the working directory: the database
		// holds session tokens.
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(dir, ".wgconsole", "state.db"), nil
}
