package demostore

import (
	"fmt"
	"net/http"
	"sync"
)

// DemoStore is a simple HTTP server impersonating a storefront so the
// widget's standalone extraction and the host bridge can be exercised
// end to end without a real shop.
type DemoStore struct {
	cfg   Config
	pages map[string]PageDefinition
	mu    sync.RWMutex
}

// NewDemoStore creates a new demo storefront instance.
func NewDemoStore(cfg Config) *DemoStore {
	pages := GetAllPages()
	pageMap := make(map[string]PageDefinition)
	for _, p := range pages {
		pageMap[p.Path] = p
	}
	return &DemoStore{cfg: cfg, pages: pageMap}
}

// Handler returns the storefront mux, usable directly with httptest.
func (s *DemoStore) Handler() http.Handler {
	mux := http.NewServeMux()

	for path := range s.pages {
		p := path // capture for closure
		mux.HandleFunc(p, s.pageHandler(p))
	}

	// Static file placeholder
	mux.HandleFunc("/static/", s.staticHandler)

	return mux
}

// Start starts the demo storefront.
func (s *DemoStore) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	fmt.Printf("Demo storefront starting on http://localhost%s\n", addr)
	fmt.Printf("Widget bridge expected at %s\n", s.cfg.BridgeURL)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *DemoStore) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The "/" pattern matches every otherwise-unhandled path.
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}

		s.mu.RLock()
		pageDef, ok := s.pages[path]
		s.mu.RUnlock()

		if !ok {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(pageDef.HTML))
	}
}

func (s *DemoStore) staticHandler(w http.ResponseWriter, r *http.Request) {
	// One transparent pixel stands in for every static asset.
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte{0x89, 0x50, 0x4E, 0x47})
}
