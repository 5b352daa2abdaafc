// Package rpc is a client for the Lotus node JSON-RPC API.
//
// Requests follow JSON-RPC 2.0 with the "Filecoin." method namespace:
//
//	{"jsonrpc":"2.0","id":1,"method":"Filecoin.MpoolGetNonce","params":["f1..."]}
//
// Two transports implement Dialer. HTTPDialer posts each request to the
// node, WebsocketDialer keeps one connection open and matches responses to
// pending calls by id. Dial picks one from the URL scheme:
//
//	client, err := rpc.Dial(ctx, rpc.Config{URL: "wss://api.node.glif.io/rpc/v0"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	nonce, err := client.MpoolGetNonce(ctx, from)
//
// A failed call returns either a transport error (ErrSendingRequest,
// ErrNoResponse, ...) or an *Error carrying the code and message the node
// replied with.
package rpc
