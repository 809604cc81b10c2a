package reconciler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/model"
	"github.com/fitmirror/fitmirror/internal/pageclient"
	"github.com/fitmirror/fitmirror/internal/reconciler"
	"github.com/fitmirror/fitmirror/internal/storectx"
)

// fakePage serves canned bodies keyed by URL.
type fakePage struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  int
}

func (f *fakePage) Do(ctx context.Context, req *pageclient.Request) (*pageclient.Response, error) {
	return f.Get(ctx, req.URL)
}

func (f *fakePage) Get(ctx context.Context, u string) (*pageclient.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	body, ok := f.bodies[u]
	if !ok {
		return nil, fmt.Errorf("no fixture for %s", u)
	}
	return &pageclient.Response{Body: body, StatusCode: 200}, nil
}

func (f *fakePage) Close() error { return nil }

type fakeProvider struct {
	cfg *storectx.InjectedConfig
}

func (f *fakeProvider) Read() *storectx.InjectedConfig { return f.cfg }

func TestApplyParentImagesReplacesWholesale(t *testing.T) {
	r := reconciler.New(reconciler.Config{Embedded: true, Logger: logging.NewTestLogger(false)})

	r.ApplyParentImages(model.TabSingle, model.ProductImagesPayload{
		Images: []model.ImageRef{{URL: "https://shop.example/a.jpg", ID: 1}},
	})
	r.ApplyParentImages(model.TabSingle, model.ProductImagesPayload{
		Images:            []model.ImageRef{{URL: "https://shop.example/b.jpg", ID: 2}},
		RecommendedImages: []model.ImageRef{{URL: "https://shop.example/rec.jpg"}},
	})

	set := r.Set(model.TabSingle)
	if set == nil || len(set.Refs) != 2 {
		t.Fatalf("expected replacement set of 2, got %+v", set)
	}
	if set.Refs[0].URL != "https://shop.example/b.jpg" {
		t.Errorf("first ref = %q, stale set leaked through", set.Refs[0].URL)
	}
	if r.Source(model.TabSingle) != reconciler.SourceParent {
		t.Errorf("source = %s", r.Source(model.TabSingle))
	}
}

func TestTabsIsolated(t *testing.T) {
	r := reconciler.New(reconciler.Config{Embedded: true, Logger: logging.NewTestLogger(false)})

	r.ApplyParentImages(model.TabSingle, model.ProductImagesPayload{
		Images: []model.ImageRef{{URL: "https://shop.example/single.jpg"}},
	})
	r.ApplyCartItems(model.TabMultiple, []model.CartItem{
		{URL: "https://shop.example/cart.jpg", VariantID: 42},
	})

	if set := r.Set(model.TabSingle); len(set.Refs) != 1 || set.Refs[0].URL != "https://shop.example/single.jpg" {
		t.Errorf("single tab polluted: %+v", set)
	}
	if set := r.Set(model.TabMultiple); len(set.Refs) != 1 || set.Refs[0].URL != "https://shop.example/cart.jpg" {
		t.Errorf("multiple tab polluted: %+v", set)
	}
	if r.Set(model.TabLook) != nil {
		t.Error("untouched tab must stay nil")
	}
}

func TestResolveStandaloneRefusedWhenEmbedded(t *testing.T) {
	extractCalled := false
	r := reconciler.New(reconciler.Config{
		Embedded: true,
		PageURL:  "https://widget.example/",
		Extract: func(html, baseURL string) ([]model.ImageRef, error) {
			extractCalled = true
			return nil, nil
		},
		Logger: logging.NewTestLogger(false),
	})

	if _, err := r.ResolveStandalone(context.Background(), model.TabSingle); err == nil {
		t.Fatal("expected error resolving standalone chain in iframe mode")
	}
	if extractCalled {
		t.Fatal("DOM extraction must never run in iframe mode")
	}
}

func TestResolveStandalonePriorityChain(t *testing.T) {
	product := url.QueryEscape(`{"images":[{"id":7,"url":"https://shop.example/param.jpg"}]}`)
	paramURL := "https://widget.example/?product=" + product

	page := &fakePage{bodies: map[string][]byte{
		"https://widget.example/": []byte(`<html><body><img src="https://cdn.example/products/dom.jpg" width="900"></body></html>`),
	}}
	provider := &fakeProvider{cfg: &storectx.InjectedConfig{
		Images: []model.ImageRef{{URL: "https://shop.example/injected.jpg"}},
	}}

	// Query parameter wins over everything.
	r := reconciler.New(reconciler.Config{
		PageURL:  paramURL,
		Provider: provider,
		Page:     page,
		Logger:   logging.NewTestLogger(false),
	})
	src, err := r.ResolveStandalone(context.Background(), model.TabSingle)
	if err != nil {
		t.Fatalf("ResolveStandalone: %v", err)
	}
	if src != reconciler.SourceURLParam {
		t.Fatalf("source = %s, want url-param", src)
	}
	if set := r.Set(model.TabSingle); set.Refs[0].URL != "https://shop.example/param.jpg" {
		t.Errorf("refs = %+v", set.Refs)
	}
	if page.calls != 0 {
		t.Errorf("page fetched %d times despite earlier source winning", page.calls)
	}

	// Without a parameter the injected global wins.
	r = reconciler.New(reconciler.Config{
		PageURL:  "https://widget.example/",
		Provider: provider,
		Page:     page,
		Logger:   logging.NewTestLogger(false),
	})
	if src, _ = r.ResolveStandalone(context.Background(), model.TabSingle); src != reconciler.SourceInjected {
		t.Fatalf("source = %s, want injected", src)
	}

	// With neither, heuristic extraction runs against the fetched page.
	r = reconciler.New(reconciler.Config{
		PageURL:  "https://widget.example/",
		Provider: &fakeProvider{},
		Page:     page,
		Logger:   logging.NewTestLogger(false),
	})
	if src, _ = r.ResolveStandalone(context.Background(), model.TabSingle); src != reconciler.SourceDOM {
		t.Fatalf("source = %s, want dom", src)
	}
	if set := r.Set(model.TabSingle); set.Refs[0].URL != "https://cdn.example/products/dom.jpg" {
		t.Errorf("refs = %+v", set.Refs)
	}
}

func TestApplyCatalogFiltering(t *testing.T) {
	catalog := model.Catalog{Products: []model.Product{
		{ID: "gid://shopify/Product/101", Category: "tops", Media: []string{"https://cdn.example/101.jpg"}},
		{ID: "gid://shopify/Product/102", Category: "bottoms", Media: []string{"https://cdn.example/102.jpg"}},
		{ID: "gid://shopify/Product/103", Media: []string{"https://cdn.example/103.jpg"}},
		{ID: "gid://shopify/Product/104", Category: "tops"}, // no media: skipped
	}}

	r := reconciler.New(reconciler.Config{Logger: logging.NewTestLogger(false)})

	r.ApplyCatalog(model.TabMultiple, catalog, model.CategoryAll)
	if set := r.Set(model.TabMultiple); len(set.Refs) != 3 {
		t.Fatalf("all: expected 3 refs, got %+v", set.Refs)
	}

	r.ApplyCatalog(model.TabMultiple, catalog, "tops")
	set := r.Set(model.TabMultiple)
	if len(set.Refs) != 1 || set.Refs[0].URL != "https://cdn.example/101.jpg" {
		t.Fatalf("tops: got %+v", set.Refs)
	}
	if set.Refs[0].ID != int64(101) {
		t.Errorf("expected derived numeric id 101, got %v", set.Refs[0].ID)
	}

	r.ApplyCatalog(model.TabMultiple, catalog, model.CategoryUncategorized)
	if set := r.Set(model.TabMultiple); len(set.Refs) != 1 || set.Refs[0].URL != "https://cdn.example/103.jpg" {
		t.Fatalf("uncategorized: got %+v", set.Refs)
	}
	if r.Source(model.TabMultiple) != reconciler.SourceCatalog {
		t.Errorf("source = %s", r.Source(model.TabMultiple))
	}
}

func TestFetchBackendProducts(t *testing.T) {
	listing, _ := json.Marshal(model.Catalog{Products: []model.Product{
		{ID: "gid://shopify/Product/201", Media: []string{"https://cdn.example/201.jpg"}},
		{ID: "plain-sku"}, // no media
	}})
	page := &fakePage{bodies: map[string][]byte{
		"https://backend.example/products?store=demo-store": listing,
	}}

	r := reconciler.New(reconciler.Config{
		Page:        page,
		ProductsURL: "https://backend.example/products?store=demo-store",
		Logger:      logging.NewTestLogger(false),
	})

	n, err := r.FetchBackendProducts(context.Background(), model.TabMultiple)
	if err != nil {
		t.Fatalf("FetchBackendProducts: %v", err)
	}
	if n != 1 {
		t.Fatalf("installed %d refs, want 1", n)
	}
	if r.Source(model.TabMultiple) != reconciler.SourceBackend {
		t.Errorf("source = %s", r.Source(model.TabMultiple))
	}

	// Unconfigured client: quiet no-op so callers fall through to the cart.
	r = reconciler.New(reconciler.Config{Logger: logging.NewTestLogger(false)})
	if n, err := r.FetchBackendProducts(context.Background(), model.TabMultiple); err != nil || n != 0 {
		t.Fatalf("expected quiet no-op, got n=%d err=%v", n, err)
	}
}

func TestClear(t *testing.T) {
	r := reconciler.New(reconciler.Config{Embedded: true, Logger: logging.NewTestLogger(false)})
	r.ApplyParentImages(model.TabSingle, model.ProductImagesPayload{
		Images: []model.ImageRef{{URL: "https://shop.example/a.jpg"}},
	})
	r.Clear(model.TabSingle)
	if r.Set(model.TabSingle) != nil || r.Source(model.TabSingle) != reconciler.SourceNone {
		t.Fatal("Clear must drop the set and its source")
	}
}

func TestDeriveNumericID(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"gid://shopify/Product/8412795", int64(8412795)},
		{"8412795", int64(8412795)},
		{"gid://shopify/Product/8412795/", int64(8412795)},
		{"plain-sku", "plain-sku"},
		{"gid://shopify/Product/abc", "gid://shopify/Product/abc"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := reconciler.DeriveNumericID(tc.in); got != tc.want {
			t.Errorf("DeriveNumericID(%q) = %v (%T), want %v", tc.in, got, got, tc.want)
		}
	}
}
