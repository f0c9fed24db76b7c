package cart

import (
	"context"
	"encoding/json"
	"log"

	"luxio/storage"
)

// Wishlist is the set of product IDs saved under luxio_wishlist.
type Wishlist struct {
	store storage.Store
}

func NewWishlist(store storage.Store) *Wishlist {
	return &Wishlist{store: store}
}

func (w *Wishlist) Load(ctx context.Context) []string {
	raw, ok, err := w.store.GetItem(ctx, storage.KeyWishlist)
	if err != nil {
		log.Printf("wishlist: failed to read storage: %v", err)
		return []string{}
	}
	if !ok || raw == "" {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		log.Printf("wishlist: corrupted data, clearing: %v", err)
		_ = w.store.RemoveItem(ctx, storage.KeyWishlist)
		return []string{}
	}
	out := ids[:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (w *Wishlist) Contains(ctx context.Context, productID string) bool {
	for _, id := range w.Load(ctx) {
		if id == productID {
			return true
		}
	}
	return false
}

// Toggle adds productID if absent and removes it otherwise. It returns whether the
// product is in the wishlist afterwards.
func (w *Wishlist) Toggle(ctx context.Context, productID string) (bool, error) {
	ids := w.Load(ctx)
	present := false
	next := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		if id == productID {
			present = true
			continue
		}
		next = append(next, id)
	}
	if !present {
		next = append(next, productID)
	}

	data, err := json.Marshal(next)
	if err != nil {
		return present, err
	}
	if err := w.store.SetItem(ctx, storage.KeyWishlist, string(data)); err != nil {
		log.Printf("wishlist: failed to save: %v", err)
		return present, err
	}
	return !present, nil
}
