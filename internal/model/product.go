package model

// Product is one entry of a storefront product catalog, as returned by the
// backend listing endpoint or embedded in a category-keyed catalog.
type Product struct {
	// ID is a structured identifier, e.g. "gid://shopify/Product/8412795":
	// the trailing numeric segment is the stable numeric key.
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category string   `json:"category,omitempty"`
	Media    []string `json:"media,omitempty"`
}

// PrimaryMedia returns the product's primary image URL, or "" when the
// product carries no media.
func (p Product) PrimaryMedia() string {
	if len(p.Media) == 0 {
		return ""
	}
	return p.Media[0]
}

// Catalog is a category-keyed product catalog used by the multiple/look tabs.
type Catalog struct {
	Products []Product `json:"products"`
}

// Category filter values accepted by the reconciler. Any other value selects
// products whose Category matches it exactly.
const (
	CategoryAll           = "all"
	CategoryUncategorized = "uncategorized"
)
