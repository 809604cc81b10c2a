package server

// Config holds configuration for the host bridge server.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string

	// StoreDomain is the storefront domain the bridge represents, e.g.
	// "demo-store.myshopify.com".
	StoreDomain string

	// StoreOrigin is the storefront origin reported in STORE_INFO answers.
	StoreOrigin string

	// PageURL is the full storefront page URL reported in STORE_INFO.
	PageURL string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":8788",
		StoreDomain: "demo-store.myshopify.com",
		StoreOrigin: "https://demo-store.myshopify.com",
		PageURL:     "https://demo-store.myshopify.com/products/classic-tee",
	}
}
