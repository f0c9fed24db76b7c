package models

type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	OriginalPrice float64   `json:"originalPrice,omitempty"`
	Discount      int       `json:"discount,omitempty"`
	Image         string    `json:"image"`
	Description   string    `json:"description"`
	Features      []string  `json:"features"`
	Category      string    `json:"category"`
	Variants      []Variant `json:"variants,omitempty"`
}

// Variant is a color/capacity combination with its own price.
type Variant struct {
	Color    string  `json:"color"`
	Capacity string  `json:"capacity"`
	Price    float64 `json:"price"`
	Image    string  `json:"image,omitempty"`
}

// CartLine builds the cart line for p, or for one of its variants when v is non-nil.
func (p Product) CartLine(v *Variant) CartItem {
	item := CartItem{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Discount:      p.Discount,
		Quantity:      1,
		Image:         p.Image,
		Description:   p.Description,
		Features:      p.Features,
		Category:      p.Category,
	}
	if v != nil {
		item.Price = v.Price
		item.Description = variantDescription(p.Description, *v)
		if v.Image != "" {
			item.Image = v.Image
		}
	}
	return item
}

func variantDescription(base string, v Variant) string {
	desc := base
	for _, part := range []string{v.Color, v.Capacity} {
		if part == "" {
			continue
		}
		if desc != "" {
			desc += " - "
		}
		desc += part
	}
	return desc
}
