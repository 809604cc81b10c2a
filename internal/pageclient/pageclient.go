package pageclient

import (
	"context"
	"net/http"
	"time"
)

// PageClient fetches storefront pages and image binaries. Two backends exist:
// plain net/http and a chromedp-driven browser for storefronts that only
// materialize their galleries after script execution.
type PageClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	// Get is a convenience method for simple GET requests
	Get(ctx context.Context, url string) (*Response, error)

	Close() error
}

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
}

// Backend names accepted by the factory.
const (
	BackendNetHTTP  = "nethttp"
	BackendChromedp = "chromedp"
)

// Config selects and tunes a backend.
type Config struct {
	// Backend is one of the registered backend names; empty means nethttp.
	Backend string

	// Timeout bounds nethttp requests.
	Timeout time.Duration

	// IdleAfter is how long the network must stay quiet before a chromedp
	// snapshot is considered settled.
	IdleAfter time.Duration

	// Headless disables the visible browser window for chromedp.
	Headless bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:   BackendNetHTTP,
		Timeout:   30 * time.Second,
		IdleAfter: 2 * time.Second,
		Headless:  true,
	}
}
