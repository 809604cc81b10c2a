package channel

import (
	"encoding/json"
	"sync"

	"github.com/fitmirror/fitmirror/internal/logging"
	"github.com/fitmirror/fitmirror/internal/model"
	"github.com/gorilla/websocket"
)

// WSChannel carries JSON envelopes over a websocket connection. It is the
// real widget<->host hop: the host bridge upgrades the widget's socket and
// relays page messages onto it.
type WSChannel struct {
	conn       *websocket.Conn
	selfOrigin string
	peerOrigin string
	logger     logging.Logger
	subs       subscriberSet

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
}

// NewWSChannel wraps an established websocket connection. peerOrigin is the
// origin negotiated during the HTTP upgrade (the Origin request header on the
// server side); every received envelope is attributed to it. The read loop
// starts immediately.
func NewWSChannel(conn *websocket.Conn, selfOrigin, peerOrigin string, logger logging.Logger) *WSChannel {
	if logger == nil {
		logger = logging.NewStdoutLogger("ws-channel")
	}
	c := &WSChannel{
		conn:       conn,
		selfOrigin: selfOrigin,
		peerOrigin: peerOrigin,
		logger:     logger,
		done:       make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *WSChannel) readLoop() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			// A malformed message must never crash the widget: log and drop.
			c.logger.Warn("dropping malformed envelope",
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		if env.Type == "" {
			c.logger.Warn("dropping envelope without type")
			continue
		}
		c.subs.dispatch(env, c.peerOrigin)
	}
}

func (c *WSChannel) Send(env model.Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *WSChannel) Subscribe(h Handler) func() {
	return c.subs.add(h)
}

func (c *WSChannel) Origin() string { return c.selfOrigin }

func (c *WSChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the underlying connection has gone away.
func (c *WSChannel) Done() <-chan struct{} { return c.done }
