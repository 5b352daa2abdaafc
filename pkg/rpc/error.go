package rpc

import (
	"fmt"
)

// Dialer error messages
var (
	// Connection errors
	ErrAlreadyConnected  = fmt.Errorf("already connected")
	ErrNotConnected      = fmt.Errorf("not connected to node")
	ErrConnectionTimeout = fmt.Errorf("websocket connection timeout")
	ErrReadingMessage    = fmt.Errorf("error reading message")
	ErrUnsupportedScheme = fmt.Errorf("unsupported url scheme")

	// Request/Response errors
	ErrNilRequest         = fmt.Errorf("nil request")
	ErrMarshalingRequest  = fmt.Errorf("error marshaling request")
	ErrSendingRequest     = fmt.Errorf("error sending request")
	ErrNoResponse         = fmt.Errorf("no response received")
	ErrUnexpectedStatus   = fmt.Errorf("unexpected http status")
	ErrEmptyResult        = fmt.Errorf("empty result")
	ErrUnmarshalingResult = fmt.Errorf("error unmarshaling result")
	ErrSendingPing        = fmt.Errorf("error sending ping")

	// WebSocket-specific errors
	ErrDialingWebsocket = fmt.Errorf("error dialing websocket server")
)

// Error is an error object returned by the node in place of a result.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}
