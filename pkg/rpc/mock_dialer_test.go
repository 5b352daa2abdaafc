package rpc_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lotus-sign/filsign/pkg/rpc"
)

// MockCallHandler answers one Lotus method. Returning a *rpc.Error sends it
// as the response error.
type MockCallHandler func(params []json.RawMessage) (any, error)

var _ rpc.Dialer = (*MockDialer)(nil)

// MockDialer routes calls to registered handlers without a network and
// records every request it sees.
type MockDialer struct {
	mu       sync.Mutex
	handlers map[string]MockCallHandler
	requests []rpc.Request
}

func NewMockDialer() *MockDialer {
	return &MockDialer{handlers: make(map[string]MockCallHandler)}
}

// RegisterHandler registers a handler for a method name without namespace.
func (d *MockDialer) RegisterHandler(method string, handler MockCallHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[rpc.MethodNamespace+method] = handler
}

// Requests returns the requests seen so far.
func (d *MockDialer) Requests() []rpc.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]rpc.Request(nil), d.requests...)
}

func (d *MockDialer) Call(ctx context.Context, req *rpc.Request) (*rpc.Response, error) {
	if req == nil {
		return nil, rpc.ErrNilRequest
	}

	// Round-trip through JSON so handlers see what a node would.
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Params []json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.requests = append(d.requests, *req)
	handler, exists := d.handlers[req.Method]
	d.mu.Unlock()

	res := &rpc.Response{JSONRPC: "2.0", ID: req.ID}
	if !exists {
		res.Error = &rpc.Error{Code: -32601, Message: "method '" + req.Method + "' not found"}
		return res, nil
	}

	result, err := handler(wire.Params)
	if err != nil {
		var rpcErr *rpc.Error
		if e, ok := err.(*rpc.Error); ok {
			rpcErr = e
		} else {
			rpcErr = &rpc.Error{Code: 1, Message: err.Error()}
		}
		res.Error = rpcErr
		return res, nil
	}

	res.Result, err = json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return res, nil
}
