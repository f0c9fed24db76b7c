// Package cart persists the shopping cart into browser storage. Every operation is
// best-effort: storage failures are logged and reported through models.Result, and
// corrupted data is dropped rather than surfaced.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"

	"luxio/models"
	"luxio/storage"
)

const MaxQuantity = 99

type Cart struct {
	store storage.Store
}

func New(store storage.Store) *Cart {
	return &Cart{store: store}
}

// rawItem mirrors the fields that must be present and well typed for a stored line to
// be accepted.
type rawItem struct {
	ID       *string  `json:"id"`
	Name     *string  `json:"name"`
	Price    *float64 `json:"price"`
	Quantity *float64 `json:"quantity"`
}

func (r rawItem) valid() bool {
	if r.ID == nil || *r.ID == "" || r.Name == nil || *r.Name == "" || r.Price == nil || r.Quantity == nil {
		return false
	}
	q := *r.Quantity
	return q == math.Trunc(q) && q > 0 && q <= MaxQuantity
}

// IsValidItem reports whether item may be persisted.
func IsValidItem(item models.CartItem) bool {
	return item.ID != "" && item.Name != "" && item.Quantity > 0 && item.Quantity <= MaxQuantity &&
		!math.IsNaN(item.Price) && !math.IsInf(item.Price, 0)
}

// Load returns the stored cart with invalid lines removed. Unparsable data is deleted
// and an empty cart returned.
func (c *Cart) Load(ctx context.Context) []models.CartItem {
	raw, ok, err := c.store.GetItem(ctx, storage.KeyCart)
	if err != nil {
		log.Printf("cart: failed to read storage: %v", err)
		return []models.CartItem{}
	}
	if !ok || raw == "" {
		return []models.CartItem{}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Printf("cart: corrupted cart data, clearing: %v", err)
		if err := c.store.RemoveItem(ctx, storage.KeyCart); err != nil {
			log.Printf("cart: failed to clear corrupted cart: %v", err)
		}
		return []models.CartItem{}
	}

	items := make([]models.CartItem, 0, len(entries))
	for _, entry := range entries {
		var check rawItem
		if err := json.Unmarshal(entry, &check); err != nil || !check.valid() {
			log.Printf("cart: dropping invalid item %s", entry)
			continue
		}
		var item models.CartItem
		if err := json.Unmarshal(entry, &item); err != nil {
			log.Printf("cart: dropping invalid item %s: %v", entry, err)
			continue
		}
		items = append(items, item)
	}
	return items
}

// Save writes the valid subset of items and reports whether the write succeeded.
func (c *Cart) Save(ctx context.Context, items []models.CartItem) bool {
	valid := make([]models.CartItem, 0, len(items))
	for _, item := range items {
		if IsValidItem(item) {
			valid = append(valid, item)
		}
	}
	data, err := json.Marshal(valid)
	if err != nil {
		log.Printf("cart: failed to encode cart: %v", err)
		return false
	}
	if err := c.store.SetItem(ctx, storage.KeyCart, string(data)); err != nil {
		log.Printf("cart: failed to save cart: %v", err)
		return false
	}
	return true
}

// Add puts one unit of product into the cart, merging with an existing line that has
// the same ID and description.
func (c *Cart) Add(ctx context.Context, product models.CartItem) models.Result {
	if product.ID == "" || product.Name == "" {
		return models.Result{Success: false, Message: "Invalid product"}
	}
	items := c.Load(ctx)

	idx := find(items, product.ID, product.Description)
	if idx >= 0 {
		if items[idx].Quantity >= MaxQuantity {
			return models.Result{Success: false, Message: fmt.Sprintf("Maximum quantity (%d) reached for this item", MaxQuantity)}
		}
		items[idx].Quantity++
	} else {
		product.Quantity = 1
		items = append(items, product)
	}

	if !c.Save(ctx, items) {
		return models.Result{Success: false, Message: "Failed to save cart"}
	}
	return models.Result{Success: true, Message: "Added to cart"}
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line; values above
// MaxQuantity are clamped.
func (c *Cart) UpdateQuantity(ctx context.Context, id, description string, quantity int) models.Result {
	if quantity <= 0 {
		return c.Remove(ctx, id, description)
	}
	if quantity > MaxQuantity {
		quantity = MaxQuantity
	}

	items := c.Load(ctx)
	idx := find(items, id, description)
	if idx < 0 {
		return models.Result{Success: false, Message: "Item not found in cart"}
	}
	items[idx].Quantity = quantity

	if !c.Save(ctx, items) {
		return models.Result{Success: false, Message: "Failed to save cart"}
	}
	return models.Result{Success: true}
}

func (c *Cart) Remove(ctx context.Context, id, description string) models.Result {
	items := c.Load(ctx)
	idx := find(items, id, description)
	if idx < 0 {
		return models.Result{Success: false, Message: "Item not found in cart"}
	}
	items = append(items[:idx], items[idx+1:]...)

	if !c.Save(ctx, items) {
		return models.Result{Success: false, Message: "Failed to save cart"}
	}
	return models.Result{Success: true, Message: "Removed from cart"}
}

func (c *Cart) Clear(ctx context.Context) bool {
	if err := c.store.RemoveItem(ctx, storage.KeyCart); err != nil {
		log.Printf("cart: failed to clear cart: %v", err)
		return false
	}
	return true
}

func find(items []models.CartItem, id, description string) int {
	for i, item := range items {
		if item.ID == id && item.Description == description {
			return i
		}
	}
	return -1
}
