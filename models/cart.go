package models

// CartItem is one cart line. Lines are keyed by (ID, Description) so variants of the
// same product coexist.
type CartItem struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	OriginalPrice float64  `json:"originalPrice,omitempty"`
	Discount      int      `json:"discount,omitempty"`
	Quantity      int      `json:"quantity"`
	Image         string   `json:"image"`
	Description   string   `json:"description"`
	Features      []string `json:"features"`
	Category      string   `json:"category"`
}

type CartSummary struct {
	ItemCount   int     `json:"itemCount"`
	UniqueItems int     `json:"uniqueItems"`
	Total       float64 `json:"total"`
	Savings     float64 `json:"savings"`
}

// Result reports a best-effort operation; callers surface Message to the user.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
