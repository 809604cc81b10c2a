package storectx

import (
	"net/url"
	"strings"

	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/model"
	"golang.org/x/net/idna"
)

// platformSuffix is the hosted-storefront domain component stripped when
// normalizing a shop domain into a canonical cache/query key.
const platformSuffix = ".myshopify.com"

// methodRank is the central precedence table for context reconciliation.
// A context may only be overwritten by one whose source method outranks the
// overwritable threshold: unknown and postmessage stay overwritable, every
// other method is final once set.
var methodRank = map[model.ContextMethod]int{
	model.MethodUnknown:       0,
	model.MethodPostMessage:   1,
	model.MethodParentRequest: 2,
	model.MethodDOM:           2,
	model.MethodURL:           2,
}

// overwritableRank is the highest rank that a later context may still replace.
const overwritableRank = 1

// InjectedConfig is storefront context planted on the page by a same-origin
// script tag or global, read before any other strategy.
type InjectedConfig struct {
	Domain     string
	ShopDomain string
	FullURL    string
	Origin     string
	Images     []model.ImageRef
}

// InjectedConfigProvider abstracts the ambient page-global read so tests can
// substitute a fake instead of touching real globals.
type InjectedConfigProvider interface {
	Read() *InjectedConfig
}

// PageEnv is the widget's view of the page it runs on: its own URL (query
// parameters included) and, when not embedded, the hosting document's HTML.
type PageEnv struct {
	PageURL  string
	Embedded bool
	// DocumentHTML is the hosting page markup, only meaningful when not
	// embedded; an iframe's own document is not the storefront page.
	DocumentHTML string
}

// DOMInspector extracts store identity from hosting-page markup. Implemented
// by the extract package; injected here so resolution is testable without
// HTML fixtures.
type DOMInspector interface {
	StoreDomain(html string) (domain, fullURL string, ok bool)
}

// Resolver produces StoreContexts from the synchronous strategies: injected
// config, URL query parameters and DOM inspection. The asynchronous
// parent-request strategy lives with the messenger; its results flow back
// through Reconcile.
type Resolver struct {
	provider  InjectedConfigProvider
	inspector DOMInspector
	logger    logging.Logger
}

// NewResolver wires a resolver. provider and inspector may be nil, which
// disables the corresponding strategy.
func NewResolver(provider InjectedConfigProvider, inspector DOMInspector, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewStdoutLogger("storectx")
	}
	return &Resolver{provider: provider, inspector: inspector, logger: logger}
}

// Resolve runs the synchronous best-effort pass. The returned context's
// Method records whichever strategy succeeded, defaulting to unknown.
func (r *Resolver) Resolve(env PageEnv) model.StoreContext {
	if r.provider != nil {
		if cfg := r.provider.Read(); cfg != nil && (cfg.Domain != "" || cfg.ShopDomain != "") {
			r.logger.Debug("store context from injected config",
				logging.Field{Key: "domain", Value: cfg.Domain})
			return model.StoreContext{
				Domain:     cfg.Domain,
				ShopDomain: cfg.ShopDomain,
				FullURL:    cfg.FullURL,
				Origin:     cfg.Origin,
				Method:     model.MethodDOM,
			}
		}
	}

	if ctx, ok := fromPageURL(env.PageURL); ok {
		r.logger.Debug("store context from url params",
			logging.Field{Key: "domain", Value: ctx.Domain})
		return ctx
	}

	// DOM inspection is only valid when not nested: inside an iframe the
	// local document is the widget's own blank page, not the storefront.
	if !env.Embedded && r.inspector != nil && env.DocumentHTML != "" {
		if domain, fullURL, ok := r.inspector.StoreDomain(env.DocumentHTML); ok {
			return model.StoreContext{
				Domain:  domain,
				FullURL: fullURL,
				Method:  model.MethodDOM,
			}
		}
	}

	return model.StoreContext{Method: model.MethodUnknown}
}

// fromPageURL reads shop/domain query parameters off the widget's own URL.
func fromPageURL(raw string) (model.StoreContext, bool) {
	if raw == "" {
		return model.StoreContext{}, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return model.StoreContext{}, false
	}
	q := u.Query()
	shop := q.Get("shop")
	domain := q.Get("domain")
	if shop == "" && domain == "" {
		return model.StoreContext{}, false
	}
	if domain == "" {
		domain = shop
	}
	return model.StoreContext{
		Domain:     domain,
		ShopDomain: shop,
		FullURL:    q.Get("page_url"),
		Method:     model.MethodURL,
	}, true
}

// Reconcile merges a freshly learned context into the current one. It is pure
// and idempotent so message handlers racing on a postMessage flood can call it
// freely: the incoming context wins only while the current method is still
// overwritable (unknown or postmessage), and a context can never regress to a
// less specific method.
func Reconcile(current, incoming model.StoreContext) model.StoreContext {
	if methodRank[current.Method] > overwritableRank {
		return current
	}
	if incoming.Method == model.MethodUnknown && current.Method != model.MethodUnknown {
		return current
	}
	return incoming
}

// NormalizeShopDomain turns a shop domain into the canonical identifier used
// as a cache/query key: lowercase, punycoded, platform suffix stripped. Pure
// string manipulation, no network dependency.
func NormalizeShopDomain(domain string) string {
	d := strings.TrimSpace(strings.ToLower(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if ascii, err := idna.Lookup.ToASCII(d); err == nil && ascii != "" {
		d = ascii
	}
	return strings.TrimSuffix(d, platformSuffix)
}
