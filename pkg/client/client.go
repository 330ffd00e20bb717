// Package client implements the producer side of a caption channel: a
// WebSocket connection to a Voxlate server that pushes PCM audio frames
// upstream and dispatches caption messages downstream.
//
// A [Channel] owns its connection for the whole lifetime of the capture
// stream. When the link drops it reconnects with bounded exponential backoff;
// frames submitted while the link is down are buffered up to the send buffer
// size and otherwise dropped, matching the pipeline's no-delivery-guarantee
// contract.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/voxlate/voxlate/pkg/audio"
)

// Default reconnection parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second

	// sendBuffer is the number of frames that may wait for the write loop.
	// At the default two-second frame length this is over a minute of audio.
	sendBuffer = 32
)

// ErrChannelClosed is returned by Send and PushSamples after Close.
var ErrChannelClosed = errors.New("client: channel is closed")

// Message is one downstream message from the server. Type discriminates the
// payload: "connection_success", "translation_result" or "processing_error".
type Message struct {
	Type             string `json:"type"`
	SessionID        string `json:"sessionId,omitempty"`
	TargetLanguage   string `json:"targetLanguage,omitempty"`
	Original         string `json:"original,omitempty"`
	Translated       string `json:"translated,omitempty"`
	DetectedLanguage string `json:"detectedLanguage,omitempty"`
	Message          string `json:"message,omitempty"`
}

// Option is a functional option for configuring a Channel.
type Option func(*Channel)

// WithTargetLanguage requests captions translated into the given ISO
// 639-1 code. When unset the server applies its configured default.
func WithTargetLanguage(lang string) Option {
	return func(c *Channel) { c.target = lang }
}

// WithHandler sets the downstream dispatch function. It is called from the
// read goroutine, one message at a time, in receive order. May be nil.
func WithHandler(fn func(Message)) Option {
	return func(c *Channel) { c.handler = fn }
}

// WithFrameDuration sets the length of the frames PushSamples emits.
// Defaults to [audio.DefaultFrameDuration].
func WithFrameDuration(d time.Duration) Option {
	return func(c *Channel) { c.frameDuration = d }
}

// WithMaxRetries bounds reconnection attempts per outage. Defaults to 10.
func WithMaxRetries(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the initial backoff between reconnection attempts. It
// doubles per attempt up to the maximum. Defaults to 1s.
func WithBackoff(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithMaxBackoff caps the reconnection backoff. Defaults to 30s.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.maxBackoff = d
		}
	}
}

// Channel is a live caption channel. All exported methods are safe for
// concurrent use except PushSamples, which is owned by the single capture
// callback.
type Channel struct {
	url           string
	target        string
	handler       func(Message)
	frameDuration time.Duration
	maxRetries    int
	backoff       time.Duration
	maxBackoff    time.Duration

	acc    *audio.Accumulator
	frames chan []byte

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Dial connects to a Voxlate server at rawURL (ws:// or wss://, path /ws)
// and starts the channel's read and write loops. The initial dial is not
// retried; reconnection applies only to an established channel that drops.
func Dial(ctx context.Context, rawURL string, opts ...Option) (*Channel, error) {
	c := &Channel{
		url:           rawURL,
		frameDuration: audio.DefaultFrameDuration,
		maxRetries:    defaultMaxRetries,
		backoff:       defaultBackoff,
		maxBackoff:    defaultMaxBackoff,
		frames:        make(chan []byte, sendBuffer),
		done:          make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse url: %w", err)
	}
	if c.target != "" {
		q := u.Query()
		q.Set("target", c.target)
		u.RawQuery = q.Encode()
	}
	c.url = u.String()
	c.acc = audio.NewAccumulator(c.frameDuration)

	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(conn)
	return c, nil
}

// SessionID returns the session id the server assigned in its last
// connection_success message. Empty until the handshake arrives; it changes
// after a reconnect, since the server creates a fresh session per connection.
func (c *Channel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Send queues one complete frame for upstream delivery. It blocks only when
// the send buffer is full and never waits for delivery confirmation.
func (c *Channel) Send(frame audio.Frame) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.frames <- frame.Data:
		return nil
	case <-c.done:
		return ErrChannelClosed
	}
}

// PushSamples feeds raw capture samples through the channel's accumulator
// and sends every completed frame. Intended to be called directly from the
// audio capture callback; not safe for concurrent use.
func (c *Channel) PushSamples(samples []float32) error {
	for _, frame := range c.acc.Push(samples) {
		if err := c.Send(frame); err != nil {
			return err
		}
	}
	return nil
}

// Close tears the channel down: pending frames are dropped, the connection
// is closed and both loops exit. Safe to call multiple times.
func (c *Channel) Close() error {
	c.stopOnce.Do(func() {
		close(c.done)
	})

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "channel closed")
	}
	c.wg.Wait()
	return nil
}

// run owns the connection across reconnects. It serves the current
// connection until a terminal read failure, then redials with backoff.
func (c *Channel) run(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		err := c.serve(conn)

		select {
		case <-c.done:
			return
		default:
		}
		slog.Warn("caption channel dropped", "error", err)

		var redialErr error
		conn, redialErr = c.redial()
		if redialErr != nil {
			if !errors.Is(redialErr, ErrChannelClosed) {
				slog.Error("caption channel reconnect gave up", "error", redialErr)
			}
			c.stopOnce.Do(func() { close(c.done) })
			return
		}

		// Close may have landed while the dial was completing.
		select {
		case <-c.done:
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		default:
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
	}
}

// serve runs the write loop for conn and reads downstream messages until the
// connection fails. The returned error is the terminal read error.
func (c *Channel) serve(conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		c.writeLoop(ctx, conn)
	}()

	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			cancel()
			<-writeDone
			return err
		}

		if msg.Type == "connection_success" {
			c.mu.Lock()
			c.sessionID = msg.SessionID
			c.mu.Unlock()
		}
		if c.handler != nil {
			c.handler(msg)
		}
	}
}

// writeLoop forwards queued frames to conn. A write failure returns; the
// failed frame is dropped and the read loop surfaces the broken connection.
func (c *Channel) writeLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case frame := <-c.frames:
			if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}

// redial attempts to re-establish the connection with exponential backoff,
// giving up after maxRetries attempts or when the channel is closed. Close
// aborts an attempt mid-handshake: the dial context is cancelled as soon as
// c.done closes, so Close never waits out a full dial timeout.
func (c *Channel) redial() (*websocket.Conn, error) {
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-parent.Done():
		}
	}()

	backoff := c.backoff

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		slog.Info("attempting caption channel reconnect",
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"backoff", backoff,
		)

		ctx, dialCancel := context.WithTimeout(parent, c.maxBackoff)
		conn, _, err := websocket.Dial(ctx, c.url, nil)
		dialCancel()
		if err == nil {
			slog.Info("caption channel reconnected", "attempt", attempt)
			return conn, nil
		}
		select {
		case <-c.done:
			return nil, ErrChannelClosed
		default:
		}
		slog.Warn("caption channel reconnect attempt failed",
			"attempt", attempt,
			"error", err,
		)

		select {
		case <-c.done:
			return nil, ErrChannelClosed
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}

	return nil, fmt.Errorf("client: gave up after %d reconnect attempts", c.maxRetries)
}
