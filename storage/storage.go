// Package storage is the browser-storage abstraction the storefront client persists
// into: one Store per localStorage/sessionStorage area.
package storage

import (
	"context"
	"errors"
)

// Keys used by the storefront.
const (
	KeyCart                = "luxio-cart"
	KeyOrders              = "luxio-orders"
	KeyLanguage            = "luxio-language"
	KeyAuthToken           = "auth_token"
	KeyAuthTokenExpiration = "auth_token_expiration"
	KeyCSRFToken           = "luxio_csrf_token"
	KeyCSRFTimestamp       = "luxio_csrf_timestamp"
	KeyWishlist            = "luxio_wishlist"
)

var ErrQuotaExceeded = errors.New("storage quota exceeded")

type Store interface {
	// GetItem returns ok=false when the key is absent.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
