// Package connection owns the websocket to the server: one transport
// at a time, best-effort sends, fan-out of decoded frames, and a fixed
// delay reconnect after any close the client did not ask for.
package connection

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"

	"github.com/gnsocial/peerchat/internal/protocol"
	"github.com/gnsocial/peerchat/internal/stats"
)

type Settings struct {
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func DefaultSettings() *Settings {
	return &Settings{
		ReconnectDelay:   2 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Handler receives every successfully decoded inbound frame.
type Handler func(*protocol.ServerMessage)

// StateHandler is notified when the transport opens (true) or
// closes (false).
type StateHandler func(connected bool)

type subscriber struct {
	id int
	fn Handler
}

type stateSubscriber struct {
	id int
	fn StateHandler
}

type Conn struct {
	url      string
	settings *Settings
	log      *log.Logger
	stats    stats.StatsProvider
	dialer   *websocket.Dialer

	// writeMu serializes writes; gorilla allows at most one
	// writing goroutine per connection.
	writeMu sync.Mutex

	mu             sync.Mutex
	ws             *websocket.Conn
	gen            string
	dialing        bool
	reconnectTimer *time.Timer
	down           bool

	handlers      []subscriber
	stateHandlers []stateSubscriber
	nextId        int
}

func New(url string, settings *Settings, logger *log.Logger, sp stats.StatsProvider) *Conn {
	if settings == nil {
		settings = DefaultSettings()
	}
	return &Conn{
		url:      url,
		settings: settings,
		log:      logger,
		stats:    sp,
		dialer: &websocket.Dialer{
			HandshakeTimeout: settings.HandshakeTimeout,
		},
	}
}

// Connect starts a connection attempt. It is idempotent: a no-op while
// an attempt is in progress, while the transport is open, or after
// Teardown.
func (c *Conn) Connect() {
	c.mu.Lock()
	if c.down || c.dialing || c.ws != nil {
		c.mu.Unlock()
		return
	}
	// An explicit connect supersedes a pending reconnect.
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.dialing = true
	gen := shortid.MustGenerate()
	c.gen = gen
	c.mu.Unlock()

	go c.dial(gen)
}

func (c *Conn) dial(gen string) {
	ws, _, err := c.dialer.Dial(c.url, nil)

	c.mu.Lock()
	if c.down || c.gen != gen {
		// A newer connect cycle or a teardown superseded this dial.
		c.mu.Unlock()
		if ws != nil {
			ws.Close()
		}
		return
	}
	c.dialing = false

	if err != nil {
		c.mu.Unlock()
		c.log.Printf("dial %s: %v", c.url, err)
		c.scheduleReconnect()
		return
	}

	c.ws = ws
	c.mu.Unlock()

	c.stats.Incr(stats.MetricConnects)
	c.log.Printf("connected to %s", c.url)
	c.notifyState(true)

	go c.readPump(gen, ws)
}

func (c *Conn) readPump(gen string, ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		c.stats.Incr(stats.MetricFramesReceived)

		msg, err := protocol.Decode(raw)
		if err != nil {
			// One bad frame must not take down the connection or
			// reach the fan-out.
			c.stats.Incr(stats.MetricDecodeFailures)
			c.log.Println("dropping frame:", err)
			continue
		}

		c.dispatch(msg)
	}

	c.mu.Lock()
	if c.down || c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.mu.Unlock()

	c.log.Println("connection closed")
	c.notifyState(false)
	c.scheduleReconnect()
}

func (c *Conn) dispatch(msg *protocol.ServerMessage) {
	c.mu.Lock()
	subs := make([]subscriber, len(c.handlers))
	copy(subs, c.handlers)
	c.mu.Unlock()

	for _, s := range subs {
		c.call(s.fn, msg)
	}
}

func (c *Conn) call(fn Handler, msg *protocol.ServerMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.stats.Incr(stats.MetricHandlerPanics)
			c.log.Println("handler panic:", r)
		}
	}()
	fn(msg)
}

// scheduleReconnect arms the reconnect timer after an abnormal close.
// At most one timer is outstanding at a time.
func (c *Conn) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.down || c.reconnectTimer != nil {
		return
	}

	c.reconnectTimer = time.AfterFunc(c.settings.ReconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		down := c.down
		c.mu.Unlock()
		if down {
			return
		}
		c.stats.Incr(stats.MetricReconnects)
		c.Connect()
	})
}

// Send encodes cmd and writes it if the transport is open. It returns
// false otherwise; there is no buffering and no retry, so commands
// issued while disconnected are lost.
func (c *Conn) Send(cmd protocol.Command) bool {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		c.stats.Incr(stats.MetricDroppedSends)
		return false
	}

	frame, err := protocol.EncodeCommand(cmd)
	if err != nil {
		c.log.Println("encode command:", err)
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.log.Printf("write %s: %v", cmd.Type(), err)
		// Force the read pump down its abnormal-close path rather
		// than handling write errors separately.
		ws.Close()
		return false
	}

	return true
}

// Subscribe registers h for every decoded inbound frame. Handlers run
// in registration order on the read goroutine; the returned function
// unsubscribes.
func (c *Conn) Subscribe(h Handler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextId
	c.nextId++
	c.handlers = append(c.handlers, subscriber{id: id, fn: h})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.handlers {
			if s.id == id {
				c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
				return
			}
		}
	}
}

// SubscribeState registers h for transport open/close transitions.
func (c *Conn) SubscribeState(h StateHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextId
	c.nextId++
	c.stateHandlers = append(c.stateHandlers, stateSubscriber{id: id, fn: h})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.stateHandlers {
			if s.id == id {
				c.stateHandlers = append(c.stateHandlers[:i], c.stateHandlers[i+1:]...)
				return
			}
		}
	}
}

func (c *Conn) notifyState(connected bool) {
	c.mu.Lock()
	subs := make([]stateSubscriber, len(c.stateHandlers))
	copy(subs, c.stateHandlers)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(connected)
	}
}

// Connected reports whether the transport is currently open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// Teardown closes the transport and cancels any pending reconnect.
// After Teardown the Conn is inert; no reconnect fires and Connect is
// a no-op.
func (c *Conn) Teardown() {
	c.mu.Lock()
	if c.down {
		c.mu.Unlock()
		return
	}
	c.down = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
		c.notifyState(false)
	}
	c.log.Println("connection torn down")
}
