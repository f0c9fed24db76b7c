// Package session manages the client's auth token and CSRF token in browser storage.
package session

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"luxio/storage"
)

// Tokens stores the JWT next to its expiry (epoch milliseconds).
type Tokens struct {
	store storage.Store
	now   func() time.Time
}

func NewTokens(store storage.Store) *Tokens {
	return &Tokens{store: store, now: time.Now}
}

func (t *Tokens) Store(ctx context.Context, token string, expiresAt time.Time) error {
	if err := t.store.SetItem(ctx, storage.KeyAuthToken, token); err != nil {
		return err
	}
	return t.store.SetItem(ctx, storage.KeyAuthTokenExpiration, strconv.FormatInt(expiresAt.UnixMilli(), 10))
}

// Get returns the stored token while it is unexpired. An expired token, or one with a
// missing or unreadable expiry, is cleared and never returned.
func (t *Tokens) Get(ctx context.Context) (string, bool) {
	token, ok, err := t.store.GetItem(ctx, storage.KeyAuthToken)
	if err != nil || !ok || token == "" {
		return "", false
	}
	raw, ok, err := t.store.GetItem(ctx, storage.KeyAuthTokenExpiration)
	if err != nil || !ok {
		t.Clear(ctx)
		return "", false
	}
	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || t.now().UnixMilli() >= expiresAt {
		t.Clear(ctx)
		return "", false
	}
	return token, true
}

func (t *Tokens) Clear(ctx context.Context) {
	for _, key := range []string{storage.KeyAuthToken, storage.KeyAuthTokenExpiration} {
		if err := t.store.RemoveItem(ctx, key); err != nil {
			log.Printf("session: failed to remove %s: %v", key, err)
		}
	}
}

const DefaultCSRFMaxAge = time.Hour

// CSRFCache keeps the anti-forgery token in memory, mirrored to storage with the time
// it was fetched.
type CSRFCache struct {
	store  storage.Store
	maxAge time.Duration
	now    func() time.Time

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
}

func NewCSRFCache(store storage.Store, maxAge time.Duration) *CSRFCache {
	if maxAge <= 0 {
		maxAge = DefaultCSRFMaxAge
	}
	return &CSRFCache{store: store, maxAge: maxAge, now: time.Now}
}

func (c *CSRFCache) Get(ctx context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.fresh(c.fetchedAt) {
		return c.token, true
	}

	token, ok, err := c.store.GetItem(ctx, storage.KeyCSRFToken)
	if err != nil || !ok || token == "" {
		return "", false
	}
	raw, ok, err := c.store.GetItem(ctx, storage.KeyCSRFTimestamp)
	if err != nil || !ok {
		return "", false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || !c.fresh(time.UnixMilli(ms)) {
		return "", false
	}
	c.token, c.fetchedAt = token, time.UnixMilli(ms)
	return token, true
}

func (c *CSRFCache) Put(ctx context.Context, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token, c.fetchedAt = token, c.now()
	if err := c.store.SetItem(ctx, storage.KeyCSRFToken, token); err != nil {
		log.Printf("session: failed to cache csrf token: %v", err)
		return
	}
	_ = c.store.SetItem(ctx, storage.KeyCSRFTimestamp, strconv.FormatInt(c.fetchedAt.UnixMilli(), 10))
}

func (c *CSRFCache) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token, c.fetchedAt = "", time.Time{}
	_ = c.store.RemoveItem(ctx, storage.KeyCSRFToken)
	_ = c.store.RemoveItem(ctx, storage.KeyCSRFTimestamp)
}

func (c *CSRFCache) fresh(at time.Time) bool {
	return c.now().Sub(at) < c.maxAge
}

// Teardown drops every trace of the session: auth token, CSRF token and the whole
// session storage area.
func Teardown(ctx context.Context, tokens *Tokens, csrf *CSRFCache, sessionStore storage.Store) {
	tokens.Clear(ctx)
	csrf.Reset(ctx)
	if sessionStore != nil {
		if err := sessionStore.Clear(ctx); err != nil {
			log.Printf("session: failed to clear session storage: %v", err)
		}
	}
}
