package message

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ErrEncodingLimit is returned when a value does not fit the supported widths.
var ErrEncodingLimit = fmt.Errorf("value exceeds encoding limits")

// CBOR major types used by the message encoding.
const (
	majUnsignedInt byte = 0
	majNegativeInt byte = 1
	majByteString  byte = 2
	majArray       byte = 4
)

// Additional-information markers selecting the argument width.
const (
	width1 byte = 24
	width2 byte = 25
	width4 byte = 26
	width8 byte = 27
)

// cborWriter writes the fixed subset of CBOR messages need: unsigned and
// negative integers, byte strings and array headers, all in their shortest form.
type cborWriter struct {
	w       io.Writer
	scratch [9]byte
}

func newCborWriter(w io.Writer) *cborWriter {
	return &cborWriter{w: w}
}

// writeHeader writes a major type with its argument in the shortest width.
func (cw *cborWriter) writeHeader(maj byte, n uint64) error {
	buf := cw.scratch[:]
	major := maj << 5
	switch {
	case n < uint64(width1):
		buf[0] = major | byte(n)
		buf = buf[:1]
	case n <= math.MaxUint8:
		buf[0] = major | width1
		buf[1] = byte(n)
		buf = buf[:2]
	case n <= math.MaxUint16:
		buf[0] = major | width2
		binary.BigEndian.PutUint16(buf[1:], uint16(n))
		buf = buf[:3]
	case n <= math.MaxUint32:
		buf[0] = major | width4
		binary.BigEndian.PutUint32(buf[1:], uint32(n))
		buf = buf[:5]
	default:
		buf[0] = major | width8
		binary.BigEndian.PutUint64(buf[1:], n)
		buf = buf[:9]
	}
	_, err := cw.w.Write(buf)
	return err
}

func (cw *cborWriter) writeUint(n uint64) error {
	return cw.writeHeader(majUnsignedInt, n)
}

// writeInt writes non-negative values as unsigned integers and negative
// values as the magnitude -1-v under the negative major type.
func (cw *cborWriter) writeInt(v int64) error {
	if v >= 0 {
		return cw.writeHeader(majUnsignedInt, uint64(v))
	}
	return cw.writeHeader(majNegativeInt, uint64(-(v + 1)))
}

// writeBytes writes a length-prefixed byte string.
func (cw *cborWriter) writeBytes(b []byte) error {
	if err := cw.writeByteStringHeader(uint64(len(b))); err != nil {
		return err
	}
	_, err := cw.w.Write(b)
	return err
}

// writeByteStringHeader rejects lengths of 2^32 or more rather than
// truncating them.
func (cw *cborWriter) writeByteStringHeader(n uint64) error {
	if n > math.MaxUint32 {
		return fmt.Errorf("%w: byte string of %d bytes", ErrEncodingLimit, n)
	}
	return cw.writeHeader(majByteString, n)
}

func (cw *cborWriter) writeArrayHeader(n int) error {
	return cw.writeHeader(majArray, uint64(n))
}
