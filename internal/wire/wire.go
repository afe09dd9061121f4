// Package wire implements the primitive encoding layer of the metacache
// stream format. Values are encoded MessagePack-compatibly: single-byte
// positive fixints for small integers, the smallest sufficient str/bin length
// prefix chosen purely by magnitude, and big-endian fixed-width u32 for error
// codes. Marker bytes come from the msgpack marker tables so the output is
// readable by any MessagePack decoder.
//
// All functions operate directly on io.Writer/io.Reader; io.ReadFull and
// Write are the only primitives used, so memory buffers, files and sockets
// behave identically. Short reads surface as the transport's error.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// ErrMalformedUTF8 is returned when a decoded string field is not valid UTF-8.
var ErrMalformedUTF8 = errors.New("wire: string field is not valid utf-8")

// TypeMismatchError reports an unexpected marker byte in the stream.
type TypeMismatchError struct {
	Marker byte
	Want   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("wire: unexpected marker 0x%02x, want %s", e.Marker, e.Want)
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteFixInt writes v as a single-byte positive fixint. v must be < 0x80.
func WriteFixInt(w io.Writer, v uint8) error {
	if v > msgpcode.PosFixedNumHigh {
		return fmt.Errorf("wire: value %d does not fit a positive fixint", v)
	}
	return writeByte(w, v)
}

// ReadFixInt reads a single-byte positive fixint.
func ReadFixInt(r io.Reader) (uint8, error) {
	c, err := readByte(r)
	if err != nil {
		return 0, err
	}
	if !msgpcode.IsFixedNum(c) || c > msgpcode.PosFixedNumHigh {
		return 0, &TypeMismatchError{Marker: c, Want: "positive fixint"}
	}
	return c, nil
}

// WriteUint32 writes v as a fixed five-byte sequence: the u32 marker followed
// by the big-endian value. The width is fixed regardless of magnitude so the
// field is always seekable.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [5]byte
	buf[0] = msgpcode.Uint32
	binary.BigEndian.PutUint32(buf[1:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadUint32 reads a fixed-width u32 value.
func ReadUint32(r io.Reader) (uint32, error) {
	c, err := readByte(r)
	if err != nil {
		return 0, err
	}
	if c != msgpcode.Uint32 {
		return 0, &TypeMismatchError{Marker: c, Want: "uint32"}
	}
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// writeStrLen emits the smallest string length prefix sufficient for n.
func writeStrLen(w io.Writer, n int) error {
	switch {
	case n < 32:
		return writeByte(w, msgpcode.FixedStrLow|byte(n))
	case n < 256:
		if err := writeByte(w, msgpcode.Str8); err != nil {
			return err
		}
		return writeByte(w, byte(n))
	case n <= 0xFFFF:
		var buf [3]byte
		buf[0] = msgpcode.Str16
		binary.BigEndian.PutUint16(buf[1:], uint16(n))
		_, err := w.Write(buf[:])
		return err
	default:
		var buf [5]byte
		buf[0] = msgpcode.Str32
		binary.BigEndian.PutUint32(buf[1:], uint32(n))
		_, err := w.Write(buf[:])
		return err
	}
}

// WriteString writes a length-prefixed UTF-8 string.
func WriteString(w io.Writer, s string) error {
	if err := writeStrLen(w, len(s)); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadStringLen reads a string length prefix of any of the four widths.
func ReadStringLen(r io.Reader) (int, error) {
	c, err := readByte(r)
	if err != nil {
		return 0, err
	}
	switch {
	case msgpcode.IsFixedString(c):
		return int(c & msgpcode.FixedStrMask), nil
	case c == msgpcode.Str8:
		n, err := readByte(r)
		return int(n), err
	case c == msgpcode.Str16:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint16(buf[:])), nil
	case c == msgpcode.Str32:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint32(buf[:])), nil
	}
	return 0, &TypeMismatchError{Marker: c, Want: "string"}
}

// ReadString reads a length-prefixed string and validates it as UTF-8.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadStringLen(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", ErrMalformedUTF8
	}
	return string(buf), nil
}

// writeBinLen emits the smallest binary length prefix sufficient for n.
func writeBinLen(w io.Writer, n int) error {
	switch {
	case n < 256:
		if err := writeByte(w, msgpcode.Bin8); err != nil {
			return err
		}
		return writeByte(w, byte(n))
	case n <= 0xFFFF:
		var buf [3]byte
		buf[0] = msgpcode.Bin16
		binary.BigEndian.PutUint16(buf[1:], uint16(n))
		_, err := w.Write(buf[:])
		return err
	default:
		var buf [5]byte
		buf[0] = msgpcode.Bin32
		binary.BigEndian.PutUint32(buf[1:], uint32(n))
		_, err := w.Write(buf[:])
		return err
	}
}

// WriteBin writes a length-prefixed byte slice.
func WriteBin(w io.Writer, b []byte) error {
	if err := writeBinLen(w, len(b)); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

// ReadBinLen reads a binary length prefix of any of the three widths.
func ReadBinLen(r io.Reader) (int, error) {
	c, err := readByte(r)
	if err != nil {
		return 0, err
	}
	switch c {
	case msgpcode.Bin8:
		n, err := readByte(r)
		return int(n), err
	case msgpcode.Bin16:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint16(buf[:])), nil
	case msgpcode.Bin32:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint32(buf[:])), nil
	}
	return 0, &TypeMismatchError{Marker: c, Want: "binary"}
}

// ReadBin reads a length-prefixed byte slice. A zero-length field yields nil.
func ReadBin(r io.Reader) ([]byte, error) {
	n, err := ReadBinLen(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
