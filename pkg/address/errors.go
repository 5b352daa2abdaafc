package address

import "fmt"

// ErrFormat is the root of every address decoding failure. Callers match
// against it with errors.Is; the specific errors below all wrap it.
var ErrFormat = fmt.Errorf("invalid address format")

var (
	ErrInvalidLength   = fmt.Errorf("%w: invalid length", ErrFormat)
	ErrUnknownNetwork  = fmt.Errorf("%w: unknown network prefix", ErrFormat)
	ErrUnknownProtocol = fmt.Errorf("%w: unknown protocol", ErrFormat)
	ErrInvalidEncoding = fmt.Errorf("%w: invalid base32 encoding", ErrFormat)
	ErrInvalidPayload  = fmt.Errorf("%w: invalid payload", ErrFormat)
	ErrInvalidChecksum = fmt.Errorf("%w: invalid checksum", ErrFormat)
)
