package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/fitmirror/fitmirror/internal/extract"
	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/model"
	"github.com/fitmirror/fitmirror/internal/pageclient"
	"github.com/fitmirror/fitmirror/internal/storectx"
)

// Source names which strategy currently backs a tab's image set. Exactly one
// source is live per tab at any time; sources are mutually exclusive by
// priority, never merged.
type Source string

const (
	SourceNone     Source = ""
	SourceParent   Source = "parent"
	SourceURLParam Source = "url-param"
	SourceInjected Source = "injected"
	SourceDOM      Source = "dom"
	SourceCatalog  Source = "catalog"
	SourceBackend  Source = "backend"
	SourceCart     Source = "cart"
)

// ExtractFunc matches extract.ProductImages; injectable so tests can spy on
// whether DOM extraction ran.
type ExtractFunc func(html, baseURL string) ([]model.ImageRef, error)

// Config wires a Reconciler.
type Config struct {
	// Embedded switches the reconciler into iframe mode, where the only
	// trusted source is the parent's PRODUCT_IMAGES message.
	Embedded bool

	// PageURL is the widget's own URL, carrying the optional product query
	// parameter in standalone mode.
	PageURL string

	// Provider reads the page-injected config global. Optional.
	Provider storectx.InjectedConfigProvider

	// Page fetches the hosting page for DOM extraction and the backend
	// products listing. Optional; strategies needing it are skipped when nil.
	Page pageclient.PageClient

	// ProductsURL is the backend listing endpoint used as fallback when no
	// catalog is available.
	ProductsURL string

	// Extract overrides the DOM extraction function. Defaults to
	// extract.ProductImages.
	Extract ExtractFunc

	Logger logging.Logger
}

// Reconciler merges images arriving from independent sources into one
// authoritative TabImageSet per tab, with strict priority and no cross-tab
// leakage. Every accepted source replaces a tab's set wholesale.
type Reconciler struct {
	cfg     Config
	extract ExtractFunc
	logger  logging.Logger

	mu      sync.Mutex
	sets    map[model.Tab]*model.TabImageSet
	sources map[model.Tab]Source
}

func New(cfg Config) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("reconciler")
	}
	ex := cfg.Extract
	if ex == nil {
		ex = extract.ProductImages
	}
	return &Reconciler{
		cfg:     cfg,
		extract: ex,
		logger:  logger,
		sets:    make(map[model.Tab]*model.TabImageSet),
		sources: make(map[model.Tab]Source),
	}
}

// Set returns the current authoritative set for tab; may be nil.
func (r *Reconciler) Set(tab model.Tab) *model.TabImageSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sets[tab]
}

// Source reports which strategy currently backs tab.
func (r *Reconciler) Source(tab model.Tab) Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sources[tab]
}

func (r *Reconciler) replace(tab model.Tab, refs []model.ImageRef, src Source) {
	r.mu.Lock()
	r.sets[tab] = model.NewTabImageSet(refs)
	r.sources[tab] = src
	r.mu.Unlock()
	r.logger.Debug("tab image set replaced",
		logging.Field{Key: "tab", Value: string(tab)},
		logging.Field{Key: "source", Value: string(src)},
		logging.Field{Key: "count", Value: len(refs)})
}

// ApplyParentImages installs a PRODUCT_IMAGES payload from the host page. In
// iframe mode this is the only source consulted; the iframe's own document is
// not the storefront, so the local DOM is never read.
func (r *Reconciler) ApplyParentImages(tab model.Tab, payload model.ProductImagesPayload) {
	refs := append([]model.ImageRef(nil), payload.Images...)
	refs = append(refs, payload.RecommendedImages...)
	r.replace(tab, refs, SourceParent)
}

// ApplyCartItems installs host cart contents, the last resort of the
// fallback chain.
func (r *Reconciler) ApplyCartItems(tab model.Tab, items []model.CartItem) {
	refs := make([]model.ImageRef, 0, len(items))
	for _, it := range items {
		if it.URL == "" {
			continue
		}
		id := it.ID
		if id == nil {
			id = it.VariantID
		}
		refs = append(refs, model.ImageRef{URL: it.URL, ID: id})
	}
	r.replace(tab, refs, SourceCart)
}

// ResolveStandalone runs the standalone-mode priority chain for tab: product
// query parameter, injected global, heuristic DOM extraction. First source
// yielding a non-empty list wins; later sources are not consulted. Returns
// the winning source, or SourceNone when every strategy came up empty.
//
// Calling this in iframe mode is a programming error and is refused: the
// parent message is the only valid source there.
func (r *Reconciler) ResolveStandalone(ctx context.Context, tab model.Tab) (Source, error) {
	if r.cfg.Embedded {
		return SourceNone, fmt.Errorf("reconciler: standalone resolution invoked in iframe mode")
	}

	if refs := productParamImages(r.cfg.PageURL); len(refs) > 0 {
		r.replace(tab, refs, SourceURLParam)
		return SourceURLParam, nil
	}

	if r.cfg.Provider != nil {
		if cfg := r.cfg.Provider.Read(); cfg != nil && len(cfg.Images) > 0 {
			r.replace(tab, append([]model.ImageRef(nil), cfg.Images...), SourceInjected)
			return SourceInjected, nil
		}
	}

	if r.cfg.Page != nil && r.cfg.PageURL != "" {
		resp, err := r.cfg.Page.Get(ctx, r.cfg.PageURL)
		if err != nil {
			return SourceNone, fmt.Errorf("fetch page for extraction: %w", err)
		}
		refs, err := r.extract(string(resp.Body), r.cfg.PageURL)
		if err != nil {
			return SourceNone, fmt.Errorf("extract product images: %w", err)
		}
		if len(refs) > 0 {
			r.replace(tab, refs, SourceDOM)
			return SourceDOM, nil
		}
	}

	return SourceNone, nil
}

// ApplyCatalog derives the multiple/look tab list by filtering a
// category-keyed catalog: "all" keeps everything, "uncategorized" keeps
// products without a category, anything else matches Category exactly. Each
// product contributes its primary media URL keyed by its derived numeric id.
func (r *Reconciler) ApplyCatalog(tab model.Tab, catalog model.Catalog, category string) {
	var refs []model.ImageRef
	for _, p := range catalog.Products {
		switch category {
		case model.CategoryAll, "":
		case model.CategoryUncategorized:
			if p.Category != "" {
				continue
			}
		default:
			if p.Category != category {
				continue
			}
		}
		media := p.PrimaryMedia()
		if media == "" {
			continue
		}
		refs = append(refs, model.ImageRef{URL: media, ID: DeriveNumericID(p.ID)})
	}
	r.replace(tab, refs, SourceCatalog)
}

// FetchBackendProducts pulls the store's full product listing from the
// backend endpoint, the first fallback when no catalog is available. Returns
// the number of images installed; zero means callers should fall through to
// the cart request.
func (r *Reconciler) FetchBackendProducts(ctx context.Context, tab model.Tab) (int, error) {
	if r.cfg.Page == nil || r.cfg.ProductsURL == "" {
		return 0, nil
	}
	resp, err := r.cfg.Page.Get(ctx, r.cfg.ProductsURL)
	if err != nil {
		return 0, fmt.Errorf("fetch products listing: %w", err)
	}
	var catalog model.Catalog
	if err := json.Unmarshal(resp.Body, &catalog); err != nil {
		return 0, fmt.Errorf("parse products listing: %w", err)
	}

	var refs []model.ImageRef
	for _, p := range catalog.Products {
		media := p.PrimaryMedia()
		if media == "" {
			continue
		}
		refs = append(refs, model.ImageRef{URL: media, ID: DeriveNumericID(p.ID)})
	}
	if len(refs) == 0 {
		return 0, nil
	}
	r.replace(tab, refs, SourceBackend)
	return len(refs), nil
}

// Clear drops a tab's set entirely, used by a manual refresh before the
// priority chain re-runs from scratch.
func (r *Reconciler) Clear(tab model.Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sets, tab)
	delete(r.sources, tab)
}

// DeriveNumericID extracts the trailing numeric segment of a slash-delimited
// structured identifier ("gid://shopify/Product/8412795" -> 8412795). When no
// numeric segment exists the raw identifier is returned unchanged.
func DeriveNumericID(id string) any {
	trimmed := strings.TrimRight(id, "/")
	if trimmed == "" {
		return id
	}
	last := trimmed
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		last = trimmed[i+1:]
	}
	if n, err := strconv.ParseInt(last, 10, 64); err == nil {
		return n
	}
	return id
}

// productParamImages decodes the "product" query parameter: URL-encoded JSON
// carrying an images array.
func productParamImages(pageURL string) []model.ImageRef {
	if pageURL == "" {
		return nil
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	raw := u.Query().Get("product")
	if raw == "" {
		return nil
	}
	var payload struct {
		Images []model.ImageRef `json:"images"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}
	return payload.Images
}
