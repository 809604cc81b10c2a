package widget

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fitmirror/fitmirror/internal/channel"
	"github.com/fitmirror/fitmirror/internal/extract"
	"github.com/fitmirror/fitmirror/internal/genclient"
	"github.com/fitmirror/fitmirror/internal/lifecycle"
	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/model"
	"github.com/fitmirror/fitmirror/internal/pageclient"
	"github.com/fitmirror/fitmirror/internal/persist"
	"github.com/fitmirror/fitmirror/internal/reconciler"
	"github.com/fitmirror/fitmirror/internal/selection"
	"github.com/fitmirror/fitmirror/internal/storectx"
)

// Config wires a widget instance.
type Config struct {
	// Channel connects to the host page. Nil means standalone mode: the
	// widget window is the top-level window and reads the page directly.
	Channel channel.Channel

	// PageURL is the widget's own URL including query parameters.
	PageURL string

	// Provider reads page-injected storefront config. Optional.
	Provider storectx.InjectedConfigProvider

	// Page fetches storefront pages and image binaries.
	Page pageclient.PageClient

	// API is the generation backend client.
	API lifecycle.TryOnAPI

	// Store is the durable key-value store backing the session.
	Store persist.Store

	// ProductsURL is the backend product listing endpoint.
	ProductsURL string

	// BackendDomain joins the origin allow-list next to storefront-like
	// domains and localhost.
	BackendDomain string

	// StoreInfoTimeout bounds the parent store-info round trip.
	StoreInfoTimeout time.Duration

	// Version tags generation requests. Optional.
	Version string

	Logger logging.Logger
}

// DefaultStoreInfoTimeout is used when Config.StoreInfoTimeout is zero.
const DefaultStoreInfoTimeout = 3 * time.Second

// Widget is the assembled try-on core: messenger, resolver, reconciler,
// selection state and generation machine wired per the mount sequence.
type Widget struct {
	cfg    Config
	logger logging.Logger

	embedded  bool
	session   *persist.Session
	marker    *persist.Marker
	selection *selection.State
	images    *reconciler.Reconciler
	resolver  *storectx.Resolver
	messenger *channel.Messenger
	machine   *lifecycle.Machine

	mu       sync.Mutex
	storeCtx model.StoreContext
	history  []model.HistoryRecord

	// Host answers carry no tab, so inbound PRODUCT_IMAGES and CART_ITEMS
	// land in the tab whose refresh asked for them.
	imagesTab model.Tab
	cartTab   model.Tab
}

// New assembles a widget. Mount must be called before use.
func New(cfg Config) (*Widget, error) {
	if cfg.Store == nil {
		return nil, errors.New("widget: a persistence store is required")
	}
	if cfg.API == nil {
		return nil, errors.New("widget: a generation api is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("widget")
	}
	if cfg.StoreInfoTimeout <= 0 {
		cfg.StoreInfoTimeout = DefaultStoreInfoTimeout
	}

	safe := persist.NewSafeStore(cfg.Store, logger)
	session := persist.NewSession(safe)
	marker := persist.NewMarker(safe)
	sel := selection.New(session, logger)
	embedded := cfg.Channel != nil

	w := &Widget{
		cfg:       cfg,
		logger:    logger,
		embedded:  embedded,
		session:   session,
		marker:    marker,
		selection: sel,
		storeCtx:  model.StoreContext{Method: model.MethodUnknown},
		imagesTab: model.TabSingle,
		cartTab:   model.TabMultiple,
	}

	w.images = reconciler.New(reconciler.Config{
		Embedded:    embedded,
		PageURL:     cfg.PageURL,
		Provider:    cfg.Provider,
		Page:        cfg.Page,
		ProductsURL: cfg.ProductsURL,
		Logger:      logger,
	})

	w.resolver = storectx.NewResolver(cfg.Provider, extract.Inspector{}, logger)

	machine, err := lifecycle.NewMachine(lifecycle.Config{
		Selection: sel,
		Session:   session,
		Marker:    marker,
		API:       storeTagger{api: cfg.API, store: w.NormalizedStore},
		Page:      cfg.Page,
		Version:   cfg.Version,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	w.machine = machine

	if embedded {
		w.messenger = channel.NewMessenger(cfg.Channel, channel.Config{
			Embedded: true,
			Trusted:  w.IsTrustedOrigin,
			Sink:     session,
			Logger:   logger,
		})
		w.messenger.OnMessage(w.routeMessage)
	}

	return w, nil
}

// Mount runs the startup sequence: establish store context, ask the host for
// images and store info when embedded, restore the persisted session and
// check for an interrupted generation.
func (w *Widget) Mount(ctx context.Context) {
	resolved := w.resolver.Resolve(storectx.PageEnv{
		PageURL:  w.cfg.PageURL,
		Embedded: w.embedded,
	})
	w.applyStoreContext(resolved)

	if w.embedded {
		w.messenger.RequestImages()
		if !w.StoreContext().Known() {
			if info, err := w.messenger.RequestStoreInfo(ctx, w.cfg.StoreInfoTimeout); err == nil {
				w.applyStoreContext(info)
			} else if err != channel.ErrTimeout {
				w.logger.Warn("store info request failed",
					logging.Field{Key: "error", Value: err.Error()})
			}
		}
	} else {
		if _, err := w.images.ResolveStandalone(ctx, model.TabSingle); err != nil {
			w.logger.Warn("standalone image resolution failed",
				logging.Field{Key: "error", Value: err.Error()})
		}
		w.backfillAndResume(ctx, model.TabSingle)
	}

	w.selection.Restore()
	w.machine.ResumeIfPending(ctx)
}

// routeMessage filters inbound messages by type; the messenger itself fans
// out everything to every subscriber.
func (w *Widget) routeMessage(msgType string, payload json.RawMessage, origin string) {
	switch msgType {
	case model.MsgProductImages:
		var p model.ProductImagesPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			w.logger.Warn("malformed PRODUCT_IMAGES payload",
				logging.Field{Key: "error", Value: err.Error()})
			return
		}
		tab := w.productImagesTab()
		w.images.ApplyParentImages(tab, p)
		w.backfillAndResume(context.Background(), tab)

	case model.MsgStoreInfo:
		var p model.StoreInfoPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			w.logger.Warn("malformed STORE_INFO payload",
				logging.Field{Key: "error", Value: err.Error()})
			return
		}
		w.applyStoreContext(model.StoreContext{
			Domain:     p.Domain,
			ShopDomain: p.ShopDomain,
			FullURL:    p.FullURL,
			Origin:     p.Origin,
			Method:     model.MethodPostMessage,
		})

	case model.MsgCartItems:
		var p model.CartItemsPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			w.logger.Warn("malformed CART_ITEMS payload",
				logging.Field{Key: "error", Value: err.Error()})
			return
		}
		tab := w.cartItemsTab()
		// Cart contents are the last resort: they never displace a set an
		// earlier source already supplied.
		if !w.images.Set(tab).Empty() {
			return
		}
		w.images.ApplyCartItems(tab, p.Items)
		w.backfillAndResume(context.Background(), tab)
	}
}

func (w *Widget) productImagesTab() model.Tab {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.imagesTab
}

func (w *Widget) cartItemsTab() model.Tab {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cartTab
}

// backfillAndResume runs the reactive fixups that depend on a tab set
// arriving: the restored garment key and the resume-after-reload check.
func (w *Widget) backfillAndResume(ctx context.Context, tab model.Tab) {
	if set := w.images.Set(tab); set != nil {
		w.selection.BackfillGarmentKey(set)
	}
	w.machine.ResumeIfPending(ctx)
}

func (w *Widget) applyStoreContext(incoming model.StoreContext) {
	w.mu.Lock()
	w.storeCtx = storectx.Reconcile(w.storeCtx, incoming)
	w.mu.Unlock()
}

// StoreContext returns the current storefront context.
func (w *Widget) StoreContext() model.StoreContext {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.storeCtx
}

// NormalizedStore is the canonical store identifier for backend calls.
func (w *Widget) NormalizedStore() string {
	ctx := w.StoreContext()
	domain := ctx.ShopDomain
	if domain == "" {
		domain = ctx.Domain
	}
	return storectx.NormalizeShopDomain(domain)
}

// IsTrustedOrigin is the allow-list for privileged inbound messages:
// storefront-like domains, the backend's own deployment domain and localhost.
func (w *Widget) IsTrustedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	switch {
	case strings.HasSuffix(host, ".myshopify.com"):
		return true
	case w.cfg.BackendDomain != "" && host == w.cfg.BackendDomain:
		return true
	case host == "localhost" || host == "127.0.0.1":
		return true
	}
	return false
}

// Images exposes the reconciler for tab set reads and catalog filtering.
func (w *Widget) Images() *reconciler.Reconciler { return w.images }

// Selection exposes the selection state.
func (w *Widget) Selection() *selection.State { return w.selection }

// Generation exposes the lifecycle machine.
func (w *Widget) Generation() *lifecycle.Machine { return w.machine }

// Messenger exposes the cross-frame messenger; nil in standalone mode.
func (w *Widget) Messenger() *channel.Messenger { return w.messenger }

// Session exposes the persisted session facade.
func (w *Widget) Session() *persist.Session { return w.session }

// SelectCategory re-derives a tab's image list from the catalog filtered by
// category; used by the multiple/look tabs.
func (w *Widget) SelectCategory(tab model.Tab, catalog model.Catalog, category string) {
	w.images.ApplyCatalog(tab, catalog, category)
	w.backfillAndResume(context.Background(), tab)
}

// Refresh re-runs a tab's source priority chain from scratch, replacing its
// set wholesale. No catalog: backend listing, then a parent cart request as
// last resort.
func (w *Widget) Refresh(ctx context.Context, tab model.Tab) {
	w.images.Clear(tab)

	if w.embedded {
		w.mu.Lock()
		w.imagesTab = tab
		w.cartTab = tab
		w.mu.Unlock()
		w.messenger.RequestImages()
		// The cart answer only installs while the tab is still empty, so
		// asking up front keeps it a last resort.
		w.messenger.RequestCartItems()
		return
	}

	src, err := w.images.ResolveStandalone(ctx, tab)
	if err != nil {
		w.logger.Warn("refresh resolution failed",
			logging.Field{Key: "error", Value: err.Error()})
	}
	if src != reconciler.SourceNone {
		w.backfillAndResume(ctx, tab)
		return
	}

	n, err := w.images.FetchBackendProducts(ctx, tab)
	if err != nil {
		w.logger.Warn("backend products fallback failed",
			logging.Field{Key: "error", Value: err.Error()})
	}
	if n > 0 {
		w.backfillAndResume(ctx, tab)
	}
}

// SetHistory replaces the generation-history backing list; the derived sets
// recompute from it wholesale.
func (w *Widget) SetHistory(records []model.HistoryRecord) {
	w.mu.Lock()
	w.history = append([]model.HistoryRecord(nil), records...)
	w.mu.Unlock()
}

func (w *Widget) historySnapshot() []model.HistoryRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history
}

// GeneratedPersonKeys derives the person-key membership set from history.
func (w *Widget) GeneratedPersonKeys() map[string]struct{} {
	return selection.GeneratedPersonKeys(w.historySnapshot())
}

// GeneratedClothingKeys derives the clothing-key membership set from history.
func (w *Widget) GeneratedClothingKeys() map[string]struct{} {
	return selection.GeneratedClothingKeys(w.historySnapshot())
}

// GeneratedKeyCombinations derives the person-clothing pair set from history.
func (w *Widget) GeneratedKeyCombinations() map[string]struct{} {
	return selection.GeneratedKeyCombinations(w.historySnapshot())
}

// Reset returns the widget to its initial state: selection, generation job
// and every persisted session key.
func (w *Widget) Reset() {
	w.machine.Reset()
	w.selection.Reset()
	w.session.ClearSession()
}

// storeTagger stamps the current normalized store onto outgoing generation
// requests, so the machine stays decoupled from context reconciliation.
type storeTagger struct {
	api   lifecycle.TryOnAPI
	store func() string
}

func (t storeTagger) TryOn(ctx context.Context, req genclient.TryOnRequest) (*genclient.TryOnResult, error) {
	if req.Store == "" {
		req.Store = t.store()
	}
	return t.api.TryOn(ctx, req)
}
