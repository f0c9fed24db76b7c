// Package cache keeps short-lived security state in Redis: issued CSRF tokens and
// revoked JWT ids.
package cache

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	csrfPrefix    = "luxio:csrf:"
	revokedPrefix = "luxio:revoked:"
)

type CSRFTokens struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCSRFTokens(client *redis.Client, ttl time.Duration) *CSRFTokens {
	return &CSRFTokens{client: client, ttl: ttl}
}

func (c *CSRFTokens) TTL() time.Duration {
	return c.ttl
}

// Issue mints a token bound to the caller's binding id (the CSRF cookie). A token is
// only accepted together with the binding it was issued for.
func (c *CSRFTokens) Issue(ctx context.Context, binding string) (string, error) {
	if binding == "" {
		return "", errors.New("csrf binding is required")
	}
	token := uuid.NewString()
	if err := c.client.Set(ctx, csrfPrefix+token, binding, c.ttl).Err(); err != nil {
		return "", fmt.Errorf("store csrf token: %w", err)
	}
	return token, nil
}

func (c *CSRFTokens) Valid(ctx context.Context, token, binding string) (bool, error) {
	if token == "" || binding == "" {
		return false, nil
	}
	owner, err := c.client.Get(ctx, csrfPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check csrf token: %w", err)
	}
	return subtle.ConstantTimeCompare([]byte(owner), []byte(binding)) == 1, nil
}

// Revocations records logged-out token ids until the token would have expired anyway.
type Revocations struct {
	client *redis.Client
}

func NewRevocations(client *redis.Client) *Revocations {
	return &Revocations{client: client}
}

func (r *Revocations) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, revokedPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return true, nil
}
