package demostore

// Config holds configuration for the demo storefront.
type Config struct {
	// Port is the port on which the demo storefront listens.
	Port int

	// BridgeURL is the host bridge the embedded widget page connects to.
	BridgeURL string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:      9877,
		BridgeURL: "http://localhost:8788",
	}
}
