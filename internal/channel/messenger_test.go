package channel_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/fitmirror/fitmirror/internal/channel"
	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/model"
)

// recordingSink captures persisted customer records.
type recordingSink struct {
	mu        sync.Mutex
	customers []model.Customer
}

func (r *recordingSink) SaveCustomer(c model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers = append(r.customers, c)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.customers)
}

func newTestMessenger(t *testing.T, cfg channel.Config) (*channel.Messenger, *channel.PairChannel) {
	t.Helper()
	widgetSide, hostSide := channel.NewPair("https://widget.example", "https://host-store.myshopify.com")
	if cfg.Logger == nil {
		cfg.Logger = logging.NewTestLogger(false)
	}
	m := channel.NewMessenger(widgetSide, cfg)
	t.Cleanup(m.Close)
	return m, hostSide
}

func TestRequestStoreInfoRoundTrip(t *testing.T) {
	m, host := newTestMessenger(t, channel.Config{Embedded: true})

	// Host answers REQUEST_STORE_INFO with a correlated STORE_INFO.
	host.Subscribe(func(env model.Envelope, origin string) {
		if env.Type != model.MsgRequestStoreInfo {
			return
		}
		payload, _ := json.Marshal(model.StoreInfoPayload{
			Domain:     "host-store.myshopify.com",
			ShopDomain: "host-store.myshopify.com",
			Origin:     "https://host-store.myshopify.com",
		})
		go func() {
			_ = host.Send(model.Envelope{Type: model.MsgStoreInfo, Payload: payload, RequestID: env.RequestID})
		}()
	})

	ctx, err := m.RequestStoreInfo(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("RequestStoreInfo returned error: %v", err)
	}
	if ctx.Method != model.MethodParentRequest {
		t.Errorf("method = %s, want parent-request", ctx.Method)
	}
	if ctx.ShopDomain != "host-store.myshopify.com" {
		t.Errorf("shop domain = %q", ctx.ShopDomain)
	}
}

func TestRequestStoreInfoTimeout(t *testing.T) {
	m, _ := newTestMessenger(t, channel.Config{Embedded: true})

	ctx, err := m.RequestStoreInfo(context.Background(), 50*time.Millisecond)
	if err != channel.ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if ctx.Method != model.MethodUnknown {
		t.Errorf("timeout must resolve to unknown context, got %s", ctx.Method)
	}
}

func TestRequestStoreInfoNotEmbedded(t *testing.T) {
	m, _ := newTestMessenger(t, channel.Config{Embedded: false})

	if _, err := m.RequestStoreInfo(context.Background(), time.Second); err != channel.ErrNotEmbedded {
		t.Fatalf("expected ErrNotEmbedded, got %v", err)
	}
}

func TestNotifyCloseDebounce(t *testing.T) {
	m, host := newTestMessenger(t, channel.Config{Embedded: true})

	var mu sync.Mutex
	closes := 0
	host.Subscribe(func(env model.Envelope, origin string) {
		if env.Type == model.MsgCloseWidget {
			mu.Lock()
			closes++
			mu.Unlock()
		}
	})

	m.NotifyClose()
	time.Sleep(50 * time.Millisecond)
	m.NotifyClose() // within the 100ms window: dropped

	mu.Lock()
	got := closes
	mu.Unlock()
	if got != 1 {
		t.Fatalf("expected exactly one CLOSE_WIDGET, got %d", got)
	}

	time.Sleep(110 * time.Millisecond)
	m.NotifyClose() // window elapsed: delivered

	mu.Lock()
	got = closes
	mu.Unlock()
	if got != 2 {
		t.Fatalf("expected second CLOSE_WIDGET after debounce window, got %d", got)
	}
}

func TestLoginSuccessOriginTrust(t *testing.T) {
	sink := &recordingSink{}
	trusted := func(origin string) bool { return origin == "https://host-store.myshopify.com" }

	widgetSide, hostSide := channel.NewPair("https://widget.example", "https://host-store.myshopify.com")
	m := channel.NewMessenger(widgetSide, channel.Config{
		Embedded: true,
		Trusted:  trusted,
		Sink:     sink,
		Logger:   logging.NewTestLogger(false),
	})
	defer m.Close()

	payload, _ := json.Marshal(model.CustomerLoginPayload{
		Customer: model.Customer{Email: "shopper@example.com", Authenticated: true},
	})

	// Trusted origin: persisted.
	_ = hostSide.Send(model.Envelope{Type: model.MsgCustomerLoginSuccess, Payload: payload})
	if sink.count() != 1 {
		t.Fatalf("expected trusted login to persist customer, got %d records", sink.count())
	}

	// Untrusted origin: dropped entirely.
	evilSide, widgetSide2 := channel.NewPair("https://evil.example", "https://widget.example")
	m2 := channel.NewMessenger(widgetSide2, channel.Config{
		Embedded: true,
		Trusted:  trusted,
		Sink:     sink,
		Logger:   logging.NewTestLogger(false),
	})
	defer m2.Close()

	_ = evilSide.Send(model.Envelope{Type: model.MsgCustomerLoginSuccess, Payload: payload})
	if sink.count() != 1 {
		t.Fatalf("expected untrusted login to be dropped, got %d records", sink.count())
	}
}

func TestMalformedPayloadDropped(t *testing.T) {
	m, host := newTestMessenger(t, channel.Config{Embedded: true})

	received := 0
	m.OnMessage(func(msgType string, payload json.RawMessage, origin string) {
		received++
	})

	// A STORE_INFO with garbage payload must not panic and must still fan
	// out to raw subscribers.
	_ = host.Send(model.Envelope{Type: model.MsgStoreInfo, Payload: json.RawMessage(`{"domain":`)})
	if received != 1 {
		t.Fatalf("expected raw fan-out despite malformed payload, got %d", received)
	}
}

func TestOnMessagePassesOriginThrough(t *testing.T) {
	m, host := newTestMessenger(t, channel.Config{Embedded: true})

	var gotType, gotOrigin string
	m.OnMessage(func(msgType string, payload json.RawMessage, origin string) {
		gotType = msgType
		gotOrigin = origin
	})

	_ = host.Send(model.Envelope{Type: model.MsgOpenWidget})
	if gotType != model.MsgOpenWidget {
		t.Errorf("type = %q", gotType)
	}
	if gotOrigin != "https://host-store.myshopify.com" {
		t.Errorf("origin = %q, want the sender's origin", gotOrigin)
	}
}
