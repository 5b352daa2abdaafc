package rpc

import (
	"encoding/json"
	"fmt"
)

// MethodNamespace prefixes every Lotus API method name on the wire.
const MethodNamespace = "Filecoin."

const jsonRPCVersion = "2.0"

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// NewRequest builds a request for a Lotus API method. The namespace is added
// to method. Params always encode as an array.
func NewRequest(id uint64, method string, params ...any) Request {
	if params == nil {
		params = []any{}
	}
	return Request{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Method:  MethodNamespace + method,
		Params:  params,
	}
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is
// set for a well-formed reply.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Decode unmarshals the result into v, or returns the error the node sent.
func (r *Response) Decode(v any) error {
	if r.Error != nil {
		return r.Error
	}
	if len(r.Result) == 0 {
		return ErrEmptyResult
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, v); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalingResult, err)
	}
	return nil
}
