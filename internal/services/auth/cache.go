// Package auth supplies the billing API token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/j-veylop/credits-dashboard-tui/internal/config"
	"github.com/j-veylop/credits-dashboard-tui/internal/db"
	"github.com/j-veylop/credits-dashboard-tui/internal/logger"
	"github.com/j-veylop/credits-dashboard-tui/internal/models"
)

// ErrNoToken is returned when no source holds a token.
var ErrNoToken = errors.New("no auth token configured")

// TokenKey is the store key of a token saved with Save.
const TokenKey = "auth_token"

// validationTTL is how long a successful login check is trusted.
const validationTTL = 5 * time.Minute

// Source names where the current token came from.
type Source string

const (
	SourceNone  Source = ""
	SourceEnv   Source = "env"
	SourceStore Source = "store"
	SourceFile  Source = "file"
)

// Store is the persistent key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// LoginFetcher checks a token against the billing API.
type LoginFetcher interface {
	FetchLoginInfo(ctx context.Context) (*models.LoginInfo, error)
}

// Cache memoizes the token. Concurrent loads share one lookup.
type Cache struct {
	store     Store
	group     singleflight.Group
	envToken  string
	tokenFile string
	now       func() time.Time

	mu          sync.RWMutex
	token       string
	source      Source
	login       *models.LoginInfo
	validatedAt time.Time
}

// NewCache creates a cache reading, in order, envToken, the store and
// tokenFile.
func NewCache(envToken, tokenFile string, store Store) *Cache {
	return &Cache{
		store:     store,
		envToken:  config.CleanToken(envToken),
		tokenFile: tokenFile,
		now:       time.Now,
	}
}

// Token returns the cached token, loading it on first use.
func (c *Cache) Token(ctx context.Context) (string, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		return token, nil
	}

	v, err, _ := c.group.Do("token", func() (any, error) {
		token, source, err := c.load(ctx)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.token = token
		c.source = source
		c.mu.Unlock()
		logger.Debug("auth token loaded", "source", source)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) load(ctx context.Context) (string, Source, error) {
	if c.envToken != "" {
		return c.envToken, SourceEnv, nil
	}

	if c.store != nil {
		stored, err := c.store.Get(ctx, TokenKey)
		switch {
		case err == nil:
			if token := config.CleanToken(stored); token != "" {
				return token, SourceStore, nil
			}
		case !errors.Is(err, db.ErrNotFound):
			return "", SourceNone, fmt.Errorf("failed to read stored token: %w", err)
		}
	}

	if token := config.LoadTokenFile(c.tokenFile); token != "" {
		return token, SourceFile, nil
	}

	return "", SourceNone, ErrNoToken
}

// Invalidate drops the cached token and login check.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.source = SourceNone
	c.login = nil
	c.validatedAt = time.Time{}
	c.mu.Unlock()
}

// Source reports where the cached token came from.
func (c *Cache) Source() Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// Masked returns the cached token shortened with Mask, or "" when no token
// has been loaded yet.
func (c *Cache) Masked() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return ""
	}
	return Mask(c.token)
}

// Save persists token in the store and makes it current.
func (c *Cache) Save(ctx context.Context, token string) error {
	token = config.CleanToken(token)
	if token == "" {
		return ErrNoToken
	}
	if c.store == nil {
		return errors.New("no token store configured")
	}
	if err := c.store.Set(ctx, TokenKey, token); err != nil {
		return err
	}

	c.Invalidate()
	return nil
}

// Clear removes the stored token.
func (c *Cache) Clear(ctx context.Context) error {
	if c.store != nil {
		if err := c.store.Remove(ctx, TokenKey); err != nil {
			return err
		}
	}
	c.Invalidate()
	return nil
}

// Validate checks the token with the login endpoint. A success is reused
// for five minutes.
func (c *Cache) Validate(ctx context.Context, fetcher LoginFetcher) (*models.LoginInfo, error) {
	c.mu.RLock()
	login, at := c.login, c.validatedAt
	c.mu.RUnlock()
	if login != nil && c.now().Sub(at) < validationTTL {
		return login, nil
	}

	v, err, _ := c.group.Do("validate", func() (any, error) {
		info, err := fetcher.FetchLoginInfo(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.login = info
		c.validatedAt = c.now()
		c.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.LoginInfo), nil
}

// Mask shortens a token for display.
func Mask(token string) string {
	if len(token) <= 10 {
		return "****"
	}
	return token[:6] + "..." + token[len(token)-4:]
}
