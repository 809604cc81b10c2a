package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/fitmirror/fitmirror/docs/swagger" // registered swagger spec

	"github.com/fitmirror/fitmirror/internal/channel"
	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/model"
)

// Server is the host bridge: the host-page side of the cross-frame protocol
// exposed over HTTP + WebSocket. It answers widget requests (images, store
// info, cart) and relays host-side events (login success, cart results) to
// every connected widget.
type Server struct {
	cfg      Config
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger

	mu            sync.Mutex
	images        model.ProductImagesPayload
	cart          []model.CartItem
	catalog       model.Catalog
	widgetVisible bool
	widgets       map[*channel.WSChannel]struct{}
}

// NewServer creates a host bridge with the given configuration.
func NewServer(cfg Config, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewStdoutLogger("bridge")
	}

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The bridge accepts any widget origin; trust for privileged
				// messages is enforced widget-side per origin.
				return true
			},
		},
		widgetVisible: true,
		widgets:       make(map[*channel.WSChannel]struct{}),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	r.Get("/widget/ws", s.handleWidgetWS)

	r.Get("/products", s.handleListProducts)
	r.Post("/host/images", s.handleSetImages)
	r.Post("/host/products", s.handleSetProducts)
	r.Post("/host/login-success", s.handleLoginSuccess)
	r.Get("/host/state", s.handleHostState)

	r.Get("/swagger/*", httpSwagger.WrapHandler)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("http_request",
		logging.Field{Key: "method", Value: r.Method},
		logging.Field{Key: "path", Value: r.URL.Path})
	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// Close disconnects every widget socket.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.widgets {
		_ = ch.Close()
	}
	s.widgets = make(map[*channel.WSChannel]struct{})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- WebSocket relay ---

// handleWidgetWS godoc
// @Summary Widget message channel
// @Description Upgrades to a WebSocket carrying JSON envelopes between an embedded widget and this host bridge.
// @Tags widget
// @Router /widget/ws [get]
func (s *Server) handleWidgetWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}

	ch := channel.NewWSChannel(conn, s.cfg.StoreOrigin, r.Header.Get("Origin"), s.logger)
	ch.Subscribe(func(env model.Envelope, origin string) {
		s.handleWidgetMessage(ch, env)
	})

	s.mu.Lock()
	s.widgets[ch] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("widget connected", logging.Field{Key: "origin", Value: r.Header.Get("Origin")})

	go func() {
		<-ch.Done()
		s.mu.Lock()
		delete(s.widgets, ch)
		s.mu.Unlock()
		s.logger.Info("widget disconnected")
	}()
}

// handleWidgetMessage answers one widget request. Unknown types are ignored;
// the widget applies the same rule to the bridge's messages.
func (s *Server) handleWidgetMessage(ch *channel.WSChannel, env model.Envelope) {
	switch env.Type {
	case model.MsgRequestImages:
		s.mu.Lock()
		payload := s.images
		s.mu.Unlock()
		s.send(ch, model.MsgProductImages, payload, "")

	case model.MsgRequestStoreInfo:
		s.send(ch, model.MsgStoreInfo, model.StoreInfoPayload{
			Domain:     s.cfg.StoreDomain,
			ShopDomain: s.cfg.StoreDomain,
			FullURL:    s.cfg.PageURL,
			Origin:     s.cfg.StoreOrigin,
		}, env.RequestID)

	case model.MsgRequestCartItems, model.MsgRequestCartState:
		s.mu.Lock()
		items := append([]model.CartItem(nil), s.cart...)
		s.mu.Unlock()
		s.send(ch, model.MsgCartItems, model.CartItemsPayload{Items: items}, env.RequestID)

	case model.MsgAddToCart:
		var p model.AddToCartPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			s.send(ch, model.MsgActionResult, model.ActionResultPayload{
				Action: model.MsgAddToCart, Error: "invalid payload"}, env.RequestID)
			return
		}
		s.mu.Lock()
		s.cart = append(s.cart, model.CartItem{URL: p.Product, VariantID: p.VariantID})
		s.mu.Unlock()
		s.send(ch, model.MsgActionResult, model.ActionResultPayload{
			Action: model.MsgAddToCart, Success: true}, env.RequestID)

	case model.MsgBuyNow:
		s.send(ch, model.MsgActionResult, model.ActionResultPayload{
			Action: model.MsgBuyNow, Success: true}, env.RequestID)

	case model.MsgNotifyMe:
		s.send(ch, model.MsgActionResult, model.ActionResultPayload{
			Action: model.MsgNotifyMe, Success: true}, env.RequestID)

	case model.MsgCloseWidget:
		s.mu.Lock()
		s.widgetVisible = false
		s.mu.Unlock()

	case model.MsgOpenWidget:
		s.mu.Lock()
		s.widgetVisible = true
		s.mu.Unlock()
	}
}

func (s *Server) send(ch *channel.WSChannel, msgType string, payload any, requestID string) {
	env, err := model.MarshalPayload(msgType, payload)
	if err != nil {
		s.logger.Error("encoding envelope", logging.Field{Key: "type", Value: msgType},
			logging.Field{Key: "error", Value: err.Error()})
		return
	}
	env.RequestID = requestID
	if err := ch.Send(env); err != nil {
		s.logger.Warn("sending to widget", logging.Field{Key: "type", Value: msgType},
			logging.Field{Key: "error", Value: err.Error()})
	}
}

func (s *Server) broadcast(msgType string, payload any) {
	s.mu.Lock()
	widgets := make([]*channel.WSChannel, 0, len(s.widgets))
	for ch := range s.widgets {
		widgets = append(widgets, ch)
	}
	s.mu.Unlock()
	for _, ch := range widgets {
		s.send(ch, msgType, payload, "")
	}
}

// --- HTTP handlers ---

// handleListProducts godoc
// @Summary List store products
// @Description Returns the full product catalog, the widget's fallback image source when no category catalog is available.
// @Tags products
// @Produce json
// @Success 200 {object} model.Catalog
// @Router /products [get]
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	catalog := s.catalog
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, catalog)
}

// handleSetImages godoc
// @Summary Set host page images
// @Description Replaces the product images the bridge answers REQUEST_IMAGES with, then pushes them to connected widgets.
// @Tags host
// @Accept json
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Router /host/images [post]
func (s *Server) handleSetImages(w http.ResponseWriter, r *http.Request) {
	var body SetImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	payload := model.ProductImagesPayload{
		Images:            body.Images,
		RecommendedImages: body.RecommendedImages,
	}
	s.mu.Lock()
	s.images = payload
	s.mu.Unlock()

	s.broadcast(model.MsgProductImages, payload)
	w.WriteHeader(http.StatusNoContent)
}

// handleSetProducts godoc
// @Summary Set product catalog
// @Tags host
// @Accept json
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Router /host/products [post]
func (s *Server) handleSetProducts(w http.ResponseWriter, r *http.Request) {
	var catalog model.Catalog
	if err := json.NewDecoder(r.Body).Decode(&catalog); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// handleLoginSuccess godoc
// @Summary Simulate login completion
// @Description Broadcasts CUSTOMER_LOGIN_SUCCESS to connected widgets, as a storefront auth popup would.
// @Tags host
// @Accept json
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Router /host/login-success [post]
func (s *Server) handleLoginSuccess(w http.ResponseWriter, r *http.Request) {
	var body LoginSuccessRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.broadcast(model.MsgCustomerLoginSuccess, model.CustomerLoginPayload{Customer: body.Customer})
	w.WriteHeader(http.StatusNoContent)
}

// handleHostState godoc
// @Summary Host page state
// @Tags host
// @Produce json
// @Success 200 {object} HostStateResponse
// @Router /host/state [get]
func (s *Server) handleHostState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := HostStateResponse{
		WidgetVisible: s.widgetVisible,
		CartItems:     append([]model.CartItem(nil), s.cart...),
		Widgets:       len(s.widgets),
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}
