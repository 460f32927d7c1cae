// Package signal implements the persistent room signaling channel over a
// websocket, with reconnect-and-backoff on transport faults.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/openstage/roomclient/internal/core"
)

var (
	ErrAlreadyConnected   = errors.New("channel already connected")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// Config tunes the reconnect policy. Zero values fall back to the defaults
// the room server expects.
type Config struct {
	BaseInterval     time.Duration
	MaxInterval      time.Duration
	Decay            float64
	MaxAttempts      int // 0 means unlimited
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseInterval <= 0 {
		c.BaseInterval = time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.Decay <= 0 {
		c.Decay = 1.5
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// Channel is a core.SignalChannel over gorilla/websocket.
type Channel struct {
	cfg Config

	mu           sync.Mutex
	conn         *websocket.Conn
	connected    bool
	closed       bool
	reconnecting bool
	payload      core.ConnectPayload

	ctx    context.Context
	cancel context.CancelFunc

	onMessage      func(core.Frame)
	onReconnecting func(bool)
	onFatal        func(error)
}

func NewChannel(cfg Config) *Channel {
	return &Channel{cfg: cfg.withDefaults()}
}

func (c *Channel) OnMessage(fn func(core.Frame)) { c.onMessage = fn }
func (c *Channel) OnReconnecting(fn func(bool))  { c.onReconnecting = fn }
func (c *Channel) OnFatal(fn func(error))        { c.onFatal = fn }

// Connect dials the room server and sends the connect payload as the
// opening frame. A failed first dial is returned to the caller; reconnects
// only ever follow a previously successful open.
func (c *Channel) Connect(ctx context.Context, payload core.ConnectPayload) error {
	c.mu.Lock()
	if c.connected || c.closed {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.payload = payload
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	conn, err := c.dial(payload.URL)
	if err != nil {
		return err
	}
	if err := c.handshake(conn); err != nil {
		_ = conn.Close()
		return err
	}

	c.install(conn)
	log.Info().Str("module", "signal").Str("room", string(payload.RoomID)).Msg("channel open")
	go c.readLoop(conn)
	return nil
}

func (c *Channel) dial(url string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(c.ctx, url, nil)
	return conn, err
}

func (c *Channel) handshake(conn *websocket.Conn) error {
	data, err := json.Marshal(c.payload)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Channel) install(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
}

// Send writes one frame. While the channel is down the frame is dropped;
// callers resend authoritative actions after reconnect if they care.
func (c *Channel) Send(f core.Frame) {
	c.mu.Lock()
	conn, ok := c.conn, c.connected
	c.mu.Unlock()
	if !ok {
		log.Debug().Str("module", "signal").Msg("send dropped, channel down")
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("write error")
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.onReadError(err)
			return
		}
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}

func (c *Channel) onReadError(err error) {
	c.mu.Lock()
	closed := c.closed
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	if closed {
		return
	}
	log.Warn().Err(err).Str("module", "signal").Msg("transport dropped, reconnecting")
	go c.reconnectLoop()
}

// reconnectLoop redials with exponential backoff until success, cap, or
// explicit close. The reconnecting indicator toggles once entering the
// outage and once leaving it, regardless of how many attempts it takes.
func (c *Channel) reconnectLoop() {
	c.setReconnecting(true)

	for attempts := 0; ; attempts++ {
		if c.cfg.MaxAttempts > 0 && attempts >= c.cfg.MaxAttempts {
			log.Error().Str("module", "signal").Int("attempts", attempts).Msg("giving up")
			// Leave the outage indicator balanced before reporting the
			// fatal fault; observers see one enter and one leave.
			c.setReconnecting(false)
			if c.onFatal != nil {
				c.onFatal(ErrReconnectExhausted)
			}
			return
		}

		interval := time.Duration(float64(c.cfg.BaseInterval) * math.Pow(c.cfg.Decay, float64(attempts)))
		if interval > c.cfg.MaxInterval {
			interval = c.cfg.MaxInterval
		}

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(interval):
		}

		if c.isClosed() {
			return
		}

		conn, err := c.dial(c.payload.URL)
		if err != nil {
			log.Debug().Err(err).Str("module", "signal").Int("attempt", attempts+1).Msg("redial failed")
			continue
		}
		if err := c.handshake(conn); err != nil {
			_ = conn.Close()
			continue
		}

		c.install(conn)
		c.setReconnecting(false)
		log.Info().Str("module", "signal").Int("attempts", attempts+1).Msg("channel reopened")
		go c.readLoop(conn)
		return
	}
}

func (c *Channel) setReconnecting(v bool) {
	c.mu.Lock()
	changed := c.reconnecting != v
	c.reconnecting = v
	c.mu.Unlock()
	if changed && c.onReconnecting != nil {
		c.onReconnecting(v)
	}
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close shuts the channel down for good. No reconnect follows.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	log.Info().Str("module", "signal").Msg("channel closed")
}
