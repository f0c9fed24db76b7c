// Package orders keeps the browser-side list of placed orders. The server's order list
// is authoritative; these records only back the confirmation screens.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"luxio/models"
	"luxio/storage"
)

type Ledger struct {
	store storage.Store
	now   func() time.Time
}

func NewLedger(store storage.Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

func (l *Ledger) Load(ctx context.Context) []models.Order {
	raw, ok, err := l.store.GetItem(ctx, storage.KeyOrders)
	if err != nil {
		log.Printf("orders: failed to read storage: %v", err)
		return []models.Order{}
	}
	if !ok || raw == "" {
		return []models.Order{}
	}
	var list []models.Order
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		log.Printf("orders: corrupted order data, clearing: %v", err)
		_ = l.store.RemoveItem(ctx, storage.KeyOrders)
		return []models.Order{}
	}
	return list
}

// Record appends a pending order. An empty reference is generated.
func (l *Ledger) Record(ctx context.Context, reference string, items []models.CartItem, total float64, customer models.CustomerInfo) (models.Order, error) {
	now := l.now()
	if reference == "" {
		reference = ReferenceAt(now)
	}
	order := models.Order{
		Reference:    reference,
		Items:        append([]models.CartItem(nil), items...),
		Total:        total,
		Status:       models.OrderPending,
		Date:         now,
		CustomerInfo: customer,
	}

	list := append(l.Load(ctx), order)
	data, err := json.Marshal(list)
	if err != nil {
		return order, fmt.Errorf("encode orders: %w", err)
	}
	if err := l.store.SetItem(ctx, storage.KeyOrders, string(data)); err != nil {
		log.Printf("orders: failed to save order %s: %v", reference, err)
		return order, fmt.Errorf("save orders: %w", err)
	}
	return order, nil
}

func (l *Ledger) Find(ctx context.Context, reference string) (models.Order, bool) {
	for _, o := range l.Load(ctx) {
		if o.Reference == reference {
			return o, true
		}
	}
	return models.Order{}, false
}
