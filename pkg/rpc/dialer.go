package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lotus-sign/filsign/pkg/log"
)

// Dialer sends requests to a node and returns its responses.
type Dialer interface {
	// Call sends req and waits for the matching response. The context
	// bounds the wait.
	Call(ctx context.Context, req *Request) (*Response, error)
}

// HTTPDialer sends each request as an HTTP POST.
type HTTPDialer struct {
	url    string
	header http.Header
	client *http.Client
}

var _ Dialer = (*HTTPDialer)(nil)

// NewHTTPDialer returns a dialer posting to url with the given extra headers.
// A nil client means http.DefaultClient.
func NewHTTPDialer(url string, header http.Header, client *http.Client) *HTTPDialer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDialer{url: url, header: header.Clone(), client: client}
}

// Call implements Dialer.
func (d *HTTPDialer) Call(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMarshalingRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendingRequest, err)
	}
	for k, vs := range d.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpRes, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendingRequest, err)
	}
	defer httpRes.Body.Close()

	data, err := io.ReadAll(httpRes.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadingMessage, err)
	}

	var res Response
	if err := json.Unmarshal(data, &res); err != nil {
		// Lotus answers auth failures with a bare status and no JSON body.
		if httpRes.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, httpRes.Status)
		}
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	return &res, nil
}

// dialCtx holds the connection context and resources
type dialCtx struct {
	ctx  context.Context
	conn *websocket.Conn
	lg   log.Logger
}

// WebsocketDialerConfig contains configuration options for the WebSocket dialer
type WebsocketDialerConfig struct {
	// HandshakeTimeout is the duration to wait for the WebSocket handshake to complete
	HandshakeTimeout time.Duration

	// PingInterval is how often a ping control frame is sent to keep the connection alive
	PingInterval time.Duration

	// PongTimeout is how long to wait for any frame after a ping before the
	// connection is considered dead
	PongTimeout time.Duration
}

// DefaultWebsocketDialerConfig provides sensible defaults for WebSocket connections
var DefaultWebsocketDialerConfig = WebsocketDialerConfig{
	HandshakeTimeout: 5 * time.Second,
	PingInterval:     10 * time.Second,
	PongTimeout:      30 * time.Second,
}

// WebsocketDialer implements Dialer over a single WebSocket connection.
// Concurrent calls are matched to responses by request id.
type WebsocketDialer struct {
	cfg           WebsocketDialerConfig
	dialCtx       *dialCtx
	responseSinks map[uint64]chan *Response
	mu            sync.RWMutex // protects dialCtx and responseSinks
	writeMu       sync.Mutex   // serializes WebSocket writes
}

var _ Dialer = (*WebsocketDialer)(nil)

// NewWebsocketDialer creates a new WebSocket dialer with the given configuration
func NewWebsocketDialer(cfg WebsocketDialerConfig) *WebsocketDialer {
	return &WebsocketDialer{
		cfg:           cfg,
		responseSinks: make(map[uint64]chan *Response),
	}
}

// Dial connects to url and returns once the handshake is done. Background
// goroutines read responses and send pings until ctx is cancelled or the
// connection fails; handleClosure is then called once with the first error
// seen, or nil for a clean shutdown.
func (d *WebsocketDialer) Dial(parentCtx context.Context, url string, header http.Header, handleClosure func(err error)) error {
	if d.IsConnected() {
		return ErrAlreadyConnected
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  d.cfg.HandshakeTimeout,
		EnableCompression: true,
	}

	conn, _, err := dialer.DialContext(parentCtx, url, header)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDialingWebsocket, err)
	}

	childCtx, cancel := context.WithCancel(parentCtx)
	wg := sync.WaitGroup{}
	wg.Add(3)

	var closureErr error
	var closureErrMu sync.Mutex
	childHandleClosure := func(err error) {
		closureErrMu.Lock()
		defer closureErrMu.Unlock()

		if err != nil && closureErr == nil {
			closureErr = err
		}

		cancel()
		wg.Done()
	}

	d.mu.Lock()
	d.dialCtx = &dialCtx{
		ctx:  childCtx,
		conn: conn,
		lg:   log.FromContext(parentCtx).WithName("ws-dialer"),
	}
	d.mu.Unlock()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(d.cfg.PongTimeout))
	})

	go d.closeOnContextDone(childCtx, childHandleClosure)
	go d.readMessages(childCtx, childHandleClosure)
	go d.pingPeriodically(childCtx, childHandleClosure)

	go func() {
		wg.Wait()

		closureErrMu.Lock()
		defer closureErrMu.Unlock()

		if handleClosure != nil {
			handleClosure(closureErr)
		}
	}()

	return nil
}

// IsConnected returns true if the dialer has an active connection
func (d *WebsocketDialer) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.dialCtx != nil && d.dialCtx.ctx.Err() == nil
}

func (d *WebsocketDialer) closeOnContextDone(ctx context.Context, handleClosure func(err error)) {
	<-ctx.Done()

	d.mu.RLock()
	conn := d.dialCtx.conn
	d.mu.RUnlock()

	d.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	d.writeMu.Unlock()
	err := conn.Close()

	// Pending calls see a closed sink and return ErrNoResponse.
	d.mu.Lock()
	for _, sink := range d.responseSinks {
		close(sink)
	}
	d.responseSinks = make(map[uint64]chan *Response)
	d.mu.Unlock()

	handleClosure(err)
}

func (d *WebsocketDialer) readMessages(ctx context.Context, handleClosure func(err error)) {
	d.mu.RLock()
	conn := d.dialCtx.conn
	lg := d.dialCtx.lg
	d.mu.RUnlock()

	for {
		_, messageBytes, err := conn.ReadMessage()
		if ctx.Err() != nil {
			handleClosure(nil)
			lg.Debug("websocket read loop exiting due to context done")
			return
		} else if _, ok := err.(net.Error); ok {
			handleClosure(fmt.Errorf("%w: %w", ErrConnectionTimeout, err))
			lg.Error("websocket connection timeout", "error", err)
			return
		} else if err != nil {
			handleClosure(fmt.Errorf("%w: %w", ErrReadingMessage, err))
			lg.Error("websocket read error", "error", err)
			return
		}

		var msg Response
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			lg.Warn("malformed message", "message", string(messageBytes), "error", err)
			continue
		}

		d.mu.Lock()
		responseSink, exists := d.responseSinks[msg.ID]
		delete(d.responseSinks, msg.ID)
		d.mu.Unlock()

		if !exists {
			lg.Warn("dropping response without pending request", "id", msg.ID)
			continue
		}

		// Sinks are buffered with room for exactly one response.
		responseSink <- &msg
	}
}

// Call sends req and waits for the response with the same id. Ids must be
// unique among in-flight calls. Safe for concurrent use.
func (d *WebsocketDialer) Call(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	d.mu.Lock()
	if d.dialCtx == nil || d.dialCtx.ctx.Err() != nil {
		d.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn := d.dialCtx.conn
	connCtx := d.dialCtx.ctx
	responseSink := make(chan *Response, 1)
	d.responseSinks[req.ID] = responseSink
	d.mu.Unlock()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		d.dropSink(req.ID)
		return nil, fmt.Errorf("%w: %w", ErrMarshalingRequest, err)
	}

	d.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, reqJSON)
	d.writeMu.Unlock()

	if err != nil {
		d.dropSink(req.ID)
		return nil, fmt.Errorf("%w: %w", ErrSendingRequest, err)
	}

	var res *Response
	select {
	case <-ctx.Done():
	case <-connCtx.Done():
	case res = <-responseSink:
	}

	d.dropSink(req.ID)

	if res == nil {
		return nil, fmt.Errorf("%w for request %d", ErrNoResponse, req.ID)
	}
	return res, nil
}

func (d *WebsocketDialer) dropSink(id uint64) {
	d.mu.Lock()
	delete(d.responseSinks, id)
	d.mu.Unlock()
}

func (d *WebsocketDialer) pingPeriodically(ctx context.Context, handleClosure func(err error)) {
	d.mu.RLock()
	conn := d.dialCtx.conn
	lg := d.dialCtx.lg
	d.mu.RUnlock()

	ticker := time.NewTicker(d.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			handleClosure(nil)
			lg.Debug("ping loop exiting due to context done")
			return
		case <-ticker.C:
			d.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(d.cfg.HandshakeTimeout))
			d.writeMu.Unlock()
			if err != nil {
				handleClosure(fmt.Errorf("%w: %w", ErrSendingPing, err))
				lg.Error("error sending ping", "error", err)
				return
			}
		}
	}
}
