package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/model"
	"github.com/google/uuid"
)

var (
	ErrTimeout     = errors.New("messenger: store info request timed out")
	ErrNotEmbedded = errors.New("messenger: not embedded in a host page")
)

// closeDebounce drops a close request that follows a previous one within this
// window, defending against double-dispatch from overlapping UI handlers.
const closeDebounce = 100 * time.Millisecond

// loginReloadDelay is how long after a trusted login-success message the
// reload fires, giving persistence time to settle.
const loginReloadDelay = 500 * time.Millisecond

// TrustPolicy decides whether an inbound origin may deliver privileged
// messages such as CUSTOMER_LOGIN_SUCCESS.
type TrustPolicy func(origin string) bool

// CustomerSink persists the authenticated customer record accepted from a
// trusted login-success message.
type CustomerSink interface {
	SaveCustomer(c model.Customer) error
}

// MessageHandler receives every inbound message: type, raw payload and the
// originating origin. The messenger never filters by type; routing is the
// subscriber's job, and the raw origin is passed through so each consumer can
// apply its own trust policy.
type MessageHandler func(msgType string, payload json.RawMessage, origin string)

// Messenger is the widget side of the cross-frame protocol: typed requests to
// the host and validated dispatch of whatever the host sends back.
type Messenger struct {
	ch       Channel
	embedded bool
	trusted  TrustPolicy
	sink     CustomerSink
	reload   func()
	logger   logging.Logger

	mu          sync.Mutex
	pending     map[string]chan model.StoreInfoPayload
	lastCloseAt time.Time

	handlersMu sync.Mutex
	nextID     int
	handlers   map[int]MessageHandler

	unsubscribe func()
}

// Config wires a Messenger.
type Config struct {
	// Embedded reports whether the widget window is nested inside a host
	// page. When false, requests to the parent are no-ops.
	Embedded bool

	// Trusted guards privileged inbound messages. Nil rejects everything.
	Trusted TrustPolicy

	// Sink receives the customer record of an accepted login. Optional.
	Sink CustomerSink

	// Reload reinitializes the widget after a trusted login so dependent
	// state restarts from the persisted record. Optional.
	Reload func()

	Logger logging.Logger
}

// NewMessenger subscribes to ch and starts dispatching. Callers must Close
// it to release the subscription.
func NewMessenger(ch Channel, cfg Config) *Messenger {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("messenger")
	}
	m := &Messenger{
		ch:       ch,
		embedded: cfg.Embedded,
		trusted:  cfg.Trusted,
		sink:     cfg.Sink,
		reload:   cfg.Reload,
		logger:   logger,
		pending:  make(map[string]chan model.StoreInfoPayload),
		handlers: make(map[int]MessageHandler),
	}
	m.unsubscribe = ch.Subscribe(m.dispatch)
	return m
}

// Embedded reports whether the widget runs nested inside a host page. Pure,
// no side effects.
func (m *Messenger) Embedded() bool { return m.embedded }

// RequestImages asks the host page for its product images. No-op when not
// embedded; the answer arrives as a PRODUCT_IMAGES message.
func (m *Messenger) RequestImages() {
	if !m.embedded {
		return
	}
	if err := m.ch.Send(model.Envelope{Type: model.MsgRequestImages}); err != nil {
		m.logger.Warn("request images failed", logging.Field{Key: "error", Value: err.Error()})
	}
}

// RequestCartItems asks the host for cart contents, the reconciler's
// last-resort image source.
func (m *Messenger) RequestCartItems() {
	if !m.embedded {
		return
	}
	if err := m.ch.Send(model.Envelope{Type: model.MsgRequestCartItems}); err != nil {
		m.logger.Warn("request cart items failed", logging.Field{Key: "error", Value: err.Error()})
	}
}

// RequestStoreInfo posts REQUEST_STORE_INFO and waits for the matching
// STORE_INFO response. Exactly one listener registration backs each call and
// is torn down on resolve, cancellation or timeout. Returns ErrTimeout when
// the host never answers; callers should fall back to an unknown context
// rather than surfacing the error.
func (m *Messenger) RequestStoreInfo(ctx context.Context, timeout time.Duration) (model.StoreContext, error) {
	if !m.embedded {
		return model.StoreContext{Method: model.MethodUnknown}, ErrNotEmbedded
	}

	id := uuid.New().String()
	ch := make(chan model.StoreInfoPayload, 1)
	m.mu.Lock()
	m.pending[id] = ch
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}()

	if err := m.ch.Send(model.Envelope{Type: model.MsgRequestStoreInfo, RequestID: id}); err != nil {
		return model.StoreContext{Method: model.MethodUnknown}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case info := <-ch:
		return model.StoreContext{
			Domain:     info.Domain,
			ShopDomain: info.ShopDomain,
			FullURL:    info.FullURL,
			Origin:     info.Origin,
			Method:     model.MethodParentRequest,
		}, nil
	case <-timer.C:
		return model.StoreContext{Method: model.MethodUnknown}, ErrTimeout
	case <-ctx.Done():
		return model.StoreContext{Method: model.MethodUnknown}, ctx.Err()
	}
}

// OnMessage subscribes to all inbound messages. The handler must filter by
// type itself. Returns an unsubscribe function.
func (m *Messenger) OnMessage(h MessageHandler) func() {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	id := m.nextID
	m.nextID++
	m.handlers[id] = h
	return func() {
		m.handlersMu.Lock()
		defer m.handlersMu.Unlock()
		delete(m.handlers, id)
	}
}

// NotifyClose signals the host to hide the widget frame. Close requests
// within the debounce window of the previous one are dropped.
func (m *Messenger) NotifyClose() {
	m.mu.Lock()
	now := time.Now()
	if !m.lastCloseAt.IsZero() && now.Sub(m.lastCloseAt) < closeDebounce {
		m.mu.Unlock()
		m.logger.Debug("close notification debounced")
		return
	}
	m.lastCloseAt = now
	m.mu.Unlock()

	if err := m.ch.Send(model.Envelope{Type: model.MsgCloseWidget}); err != nil {
		m.logger.Warn("close notification failed", logging.Field{Key: "error", Value: err.Error()})
	}
}

// NotifyOpen signals the host to show the widget frame. Fire and forget.
func (m *Messenger) NotifyOpen() {
	if err := m.ch.Send(model.Envelope{Type: model.MsgOpenWidget}); err != nil {
		m.logger.Warn("open notification failed", logging.Field{Key: "error", Value: err.Error()})
	}
}

// AddToCart asks the host page to add a product to the cart; the outcome
// arrives later as an ACTION_RESULT message.
func (m *Messenger) AddToCart(p model.AddToCartPayload) error {
	return m.sendAction(model.MsgAddToCart, p)
}

// BuyNow asks the host page to start a checkout.
func (m *Messenger) BuyNow(p model.BuyNowPayload) error {
	return m.sendAction(model.MsgBuyNow, p)
}

// NotifyMe asks the host page to register a back-in-stock notification.
func (m *Messenger) NotifyMe(p model.NotifyMePayload) error {
	return m.sendAction(model.MsgNotifyMe, p)
}

func (m *Messenger) sendAction(msgType string, payload any) error {
	if !m.embedded {
		return ErrNotEmbedded
	}
	env, err := model.MarshalPayload(msgType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	return m.ch.Send(env)
}

// Close tears down the channel subscription.
func (m *Messenger) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// dispatch routes one inbound envelope: resolves pending store-info requests,
// guards login-success messages, then fans out to OnMessage subscribers.
// Malformed payloads are logged and dropped, never propagated.
func (m *Messenger) dispatch(env model.Envelope, origin string) {
	switch env.Type {
	case model.MsgStoreInfo:
		m.resolveStoreInfo(env)
	case model.MsgCustomerLoginSuccess:
		m.handleLoginSuccess(env, origin)
	}

	m.handlersMu.Lock()
	handlers := make([]MessageHandler, 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.handlersMu.Unlock()
	for _, h := range handlers {
		h(env.Type, env.Payload, origin)
	}
}

func (m *Messenger) resolveStoreInfo(env model.Envelope) {
	var info model.StoreInfoPayload
	if err := json.Unmarshal(env.Payload, &info); err != nil {
		m.logger.Warn("malformed STORE_INFO payload",
			logging.Field{Key: "error", Value: err.Error()})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if env.RequestID != "" {
		if ch, ok := m.pending[env.RequestID]; ok {
			select {
			case ch <- info:
			default:
			}
			delete(m.pending, env.RequestID)
		}
		return
	}
	// Unsolicited STORE_INFO resolves every waiter; hosts that predate
	// request ids answer without one.
	for id, ch := range m.pending {
		select {
		case ch <- info:
		default:
		}
		delete(m.pending, id)
	}
}

// handleLoginSuccess accepts authentication completions only from trusted
// origins. On acceptance the customer record is persisted and a reload is
// scheduled after a short fixed delay so dependent state reinitializes from
// the persisted record. Untrusted origins are dropped and logged: a security
// boundary, not a user-facing error.
func (m *Messenger) handleLoginSuccess(env model.Envelope, origin string) {
	if m.trusted == nil || !m.trusted(origin) {
		m.logger.Warn("login success from untrusted origin dropped",
			logging.Field{Key: "origin", Value: origin})
		return
	}

	var payload model.CustomerLoginPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		m.logger.Warn("malformed CUSTOMER_LOGIN_SUCCESS payload",
			logging.Field{Key: "error", Value: err.Error()})
		return
	}

	if m.sink != nil {
		if err := m.sink.SaveCustomer(payload.Customer); err != nil {
			m.logger.Error("persisting customer failed",
				logging.Field{Key: "error", Value: err.Error()})
			return
		}
	}

	m.logger.Info("customer login accepted",
		logging.Field{Key: "origin", Value: origin},
		logging.Field{Key: "authenticated", Value: payload.Customer.Authenticated})

	if m.reload != nil {
		time.AfterFunc(loginReloadDelay, m.reload)
	}
}
