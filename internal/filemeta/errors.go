package filemeta

import (
	"errors"
	"fmt"
	"io"

	"github.com/zzenonn/zmeta/internal/errcode"
)

// Sentinel errors of the metadata layer. All of them cross process
// boundaries as numeric codes (see ErrorCode/FromErrorCode); equality is by
// errors.Is against these values.
var (
	ErrFileNotFound        = errors.New("file not found")
	ErrFileVersionNotFound = errors.New("file version not found")
	ErrVolumeNotFound      = errors.New("volume not found")
	ErrFileCorrupt         = errors.New("file corrupt")
	// ErrDoneForNow is a cooperative yield signal, not a failure: the
	// operation should be retried later.
	ErrDoneForNow       = errors.New("done for now")
	ErrMethodNotAllowed = errors.New("method not allowed")
	// ErrUnexpected means the stream ended before a complete record was
	// read. Kept distinct from generic I/O so callers can detect truncation
	// without string matching.
	ErrUnexpected = errors.New("unexpected end of stream")
	// ErrUnsupportedVersion is a fatal stream-format error: the version byte
	// at the head of a metacache stream is unknown.
	ErrUnsupportedVersion = errors.New("unsupported metacache stream version")
	// ErrBadFraming means a record contained a marker byte that does not
	// belong to the stream format.
	ErrBadFraming = errors.New("invalid metacache record framing")
)

// Specific codes within the FileMeta subsystem. The table is written out in
// full: codes are part of the wire format and must never be renumbered.
const (
	codeFileNotFound        uint16 = 1
	codeFileVersionNotFound uint16 = 2
	codeVolumeNotFound      uint16 = 3
	codeFileCorrupt         uint16 = 4
	codeDoneForNow          uint16 = 5
	codeMethodNotAllowed    uint16 = 6
	codeUnexpected          uint16 = 7
	codeIO                  uint16 = 8
	codeUnsupportedVersion  uint16 = 9
	codeBadFraming          uint16 = 10
)

var codeTable = []struct {
	err  error
	code uint16
}{
	{ErrFileNotFound, codeFileNotFound},
	{ErrFileVersionNotFound, codeFileVersionNotFound},
	{ErrVolumeNotFound, codeVolumeNotFound},
	{ErrFileCorrupt, codeFileCorrupt},
	{ErrDoneForNow, codeDoneForNow},
	{ErrMethodNotAllowed, codeMethodNotAllowed},
	{ErrUnexpected, codeUnexpected},
	{ErrUnsupportedVersion, codeUnsupportedVersion},
	{ErrBadFraming, codeBadFraming},
}

// ErrorCode maps err to its wire code. Unknown errors are carried as the
// generic I/O code; their message still travels alongside the code. nil maps
// to zero.
func ErrorCode(err error) uint32 {
	if err == nil {
		return 0
	}
	for _, row := range codeTable {
		if errors.Is(err, row.err) {
			return errcode.New(errcode.TypeFileMeta, row.code).Uint32()
		}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return errcode.New(errcode.TypeFileMeta, codeUnexpected).Uint32()
	}
	return errcode.New(errcode.TypeFileMeta, codeIO).Uint32()
}

// FromErrorCode reconstructs an error from its wire code and message. A
// recognized code yields the matching sentinel; the I/O code and any
// unrecognized code fall back to a plain error carrying the transmitted
// message so no information is dropped. A zero code yields nil.
func FromErrorCode(code uint32, msg string) error {
	if code == 0 {
		return nil
	}
	c := errcode.FromUint32(code)
	if c.Subsystem() == errcode.TypeFileMeta {
		for _, row := range codeTable {
			if row.code == c.Specific() {
				return row.err
			}
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("remote error %s", c)
	}
	return errors.New(msg)
}

// IsUnexpectedEOF reports whether err indicates a stream that ended before a
// complete record was read.
func IsUnexpectedEOF(err error) bool {
	return errors.Is(err, ErrUnexpected) || errors.Is(err, io.ErrUnexpectedEOF)
}
