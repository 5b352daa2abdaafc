package rpc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lotus-sign/filsign/pkg/log"
)

// Config selects the node endpoint.
type Config struct {
	URL     string        `env:"FILSIGN_LOTUS_HOST" env-default:"https://api.node.glif.io/rpc/v0" yaml:"host" toml:"host" validate:"required,url"`
	Token   string        `env:"FILSIGN_LOTUS_TOKEN" yaml:"token" toml:"token"`
	Timeout time.Duration `env:"FILSIGN_LOTUS_TIMEOUT" env-default:"30s" yaml:"timeout" toml:"timeout"`
}

// Header returns the HTTP headers sent with every request.
func (c Config) Header() http.Header {
	h := http.Header{}
	if c.Token != "" {
		h.Set("Authorization", "Bearer "+c.Token)
	}
	return h
}

// CallObserver is notified after every call, for metrics.
type CallObserver func(method string, took time.Duration, err error)

// Client calls Lotus API methods through a Dialer.
type Client struct {
	dialer   Dialer
	nextID   atomic.Uint64
	session  string
	timeout  time.Duration
	observer CallObserver
	close    func() error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCallObserver registers f to be called after every call.
func WithCallObserver(f CallObserver) ClientOption {
	return func(c *Client) { c.observer = f }
}

// WithTimeout bounds every call that has no earlier context deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient returns a client sending requests through dialer.
func NewClient(dialer Dialer, opts ...ClientOption) *Client {
	c := &Client{
		dialer:  dialer,
		session: uuid.NewString(),
		close:   func() error { return nil },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to cfg.URL. http and https URLs use HTTPDialer, ws and wss
// URLs open a WebSocket connection that lives until Close or ctx is done.
func Dial(ctx context.Context, cfg Config, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedScheme, err)
	}

	opts = append([]ClientOption{WithTimeout(cfg.Timeout)}, opts...)

	switch u.Scheme {
	case "http", "https":
		return NewClient(NewHTTPDialer(cfg.URL, cfg.Header(), nil), opts...), nil
	case "ws", "wss":
		lg := log.FromContext(ctx)
		connCtx, cancel := context.WithCancel(ctx)
		dialer := NewWebsocketDialer(DefaultWebsocketDialerConfig)
		done := make(chan struct{})
		err := dialer.Dial(connCtx, cfg.URL, cfg.Header(), func(err error) {
			if err != nil {
				lg.Warn("node connection closed", "error", err)
			}
			close(done)
		})
		if err != nil {
			cancel()
			return nil, err
		}

		c := NewClient(dialer, opts...)
		c.close = func() error {
			cancel()
			<-done
			return nil
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// Close releases the connection, if any.
func (c *Client) Close() error {
	return c.close()
}

// Call invokes the Lotus method (without namespace) and decodes the result
// into result, which may be nil to discard it. The client timeout applies
// unless ctx already has a deadline.
func (c *Client) Call(ctx context.Context, method string, result any, params ...any) error {
	return c.call(ctx, c.timeout, method, result, params...)
}

// CallUnbounded is Call without the client timeout, for methods that block
// on chain progress. Only ctx bounds it.
func (c *Client) CallUnbounded(ctx context.Context, method string, result any, params ...any) error {
	return c.call(ctx, 0, method, result, params...)
}

func (c *Client) call(ctx context.Context, timeout time.Duration, method string, result any, params ...any) error {
	if timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}

	req := NewRequest(c.nextID.Add(1), method, params...)
	lg := log.FromContext(ctx).WithKV("session", c.session).WithKV("id", req.ID).WithKV("method", method)

	started := time.Now()
	res, err := c.dialer.Call(ctx, &req)
	if err == nil {
		err = res.Decode(result)
	}
	took := time.Since(started)

	if c.observer != nil {
		c.observer(method, took, err)
	}
	if err != nil {
		lg.Debug("rpc call failed", "took", took, "error", err)
		return fmt.Errorf("%s: %w", method, err)
	}
	lg.Debug("rpc call", "took", took)
	return nil
}
