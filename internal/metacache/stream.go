package metacache

import (
	"errors"
	"fmt"
	"io"

	"github.com/zzenonn/zmeta/internal/filemeta"
	"github.com/zzenonn/zmeta/internal/wire"
)

// streamVersion is the wire format version written at the head of every
// stream. Readers reject any other value on first read.
const streamVersion = 1

// Record type tags. The tag alone determines how a record is interpreted;
// every record shares the same on-wire shape.
const (
	tagClose  uint8 = 0
	tagObject uint8 = 1
	tagError  uint8 = 2
)

// Writer frames an ordered sequence of entries onto an underlying stream.
// It owns exactly one stream and must not be shared across concurrent
// callers; serializing access is the caller's responsibility.
type Writer struct {
	w       io.Writer
	created bool
}

// NewWriter returns a writer over w. Nothing is written until the first
// record or an explicit Init.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Init emits the stream version byte. It is idempotent; every write path
// calls it lazily.
func (w *Writer) Init() error {
	if w.created {
		return nil
	}
	if err := wire.WriteFixInt(w.w, streamVersion); err != nil {
		return err
	}
	w.created = true
	return nil
}

func (w *Writer) writeRecord(tag uint8, name string, metadata []byte, errCode uint32, errMsg string) error {
	if err := wire.WriteFixInt(w.w, tag); err != nil {
		return err
	}
	if err := wire.WriteString(w.w, name); err != nil {
		return err
	}
	if err := wire.WriteBin(w.w, metadata); err != nil {
		return err
	}
	if err := wire.WriteUint32(w.w, errCode); err != nil {
		return err
	}
	return wire.WriteString(w.w, errMsg)
}

// Write appends the given entries as object records. Every name is validated
// before any bytes are written, so a sequence containing an empty name fails
// without partial output.
func (w *Writer) Write(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		if entries[i].Name == "" {
			return errors.New("metacache: Write: entry has no name")
		}
	}
	if err := w.Init(); err != nil {
		return err
	}
	for i := range entries {
		if err := w.writeObj(&entries[i]); err != nil {
			return err
		}
	}
	return nil
}

// WriteObj appends a single object record. Unlike Write it performs no name
// validation; callers streaming records one at a time are trusted to have
// validated upstream.
func (w *Writer) WriteObj(e *Entry) error {
	if err := w.Init(); err != nil {
		return err
	}
	return w.writeObj(e)
}

func (w *Writer) writeObj(e *Entry) error {
	var code uint32
	var msg string
	if e.Err != nil {
		code = filemeta.ErrorCode(e.Err)
		msg = e.Err.Error()
	}
	return w.writeRecord(tagObject, e.Name, e.Metadata, code, msg)
}

// Close appends the end-of-stream record. It does not close the underlying
// stream.
func (w *Writer) Close() error {
	if err := w.Init(); err != nil {
		return err
	}
	return w.writeRecord(tagClose, "", nil, 0, "")
}

// WriteErr appends a standalone error record that terminates the consumer's
// read with the given code and message.
func (w *Writer) WriteErr(code uint32, msg string) error {
	if err := w.Init(); err != nil {
		return err
	}
	return w.writeRecord(tagError, "", nil, code, msg)
}

// Reader consumes a stream produced by Writer. Like Writer it owns exactly
// one underlying stream and a single in-flight operation at a time.
type Reader struct {
	r    io.Reader
	init bool
	done bool
	err  error
}

// NewReader returns a reader over r. The version byte is validated lazily on
// first read.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) checkInit() error {
	if r.err != nil {
		return r.err
	}
	if r.init {
		return nil
	}
	ver, err := wire.ReadFixInt(r.r)
	if err != nil {
		r.err = mapStreamErr(err)
		return r.err
	}
	r.init = true
	if ver != streamVersion {
		r.err = fmt.Errorf("%w: %d", filemeta.ErrUnsupportedVersion, ver)
		return r.err
	}
	return nil
}

// mapStreamErr normalizes transport and framing failures into the stable
// error classes: truncation becomes ErrUnexpected, marker mismatches become
// ErrBadFraming, everything else passes through.
func mapStreamErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return filemeta.ErrUnexpected
	}
	var mismatch *wire.TypeMismatchError
	if errors.As(err, &mismatch) {
		return fmt.Errorf("%w: %v", filemeta.ErrBadFraming, err)
	}
	return err
}

// readRecord reads one raw record regardless of tag.
func (r *Reader) readRecord() (tag uint8, e Entry, err error) {
	tag, err = wire.ReadFixInt(r.r)
	if err != nil {
		return 0, e, mapStreamErr(err)
	}
	e.Name, err = wire.ReadString(r.r)
	if err != nil {
		return 0, e, mapStreamErr(err)
	}
	e.Metadata, err = wire.ReadBin(r.r)
	if err != nil {
		return 0, e, mapStreamErr(err)
	}
	code, err := wire.ReadUint32(r.r)
	if err != nil {
		return 0, e, mapStreamErr(err)
	}
	msg, err := wire.ReadString(r.r)
	if err != nil {
		return 0, e, mapStreamErr(err)
	}
	e.Err = filemeta.FromErrorCode(code, msg)
	return tag, e, nil
}

// Next returns the next entry. A close record yields io.EOF; an error record
// or an object record carrying an embedded error terminates the read with
// that error.
func (r *Reader) Next() (*Entry, error) {
	if err := r.checkInit(); err != nil {
		return nil, err
	}
	if r.done {
		return nil, io.EOF
	}
	tag, e, err := r.readRecord()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagClose:
		r.done = true
		return nil, io.EOF
	case tagError:
		if e.Err == nil {
			e.Err = filemeta.ErrUnexpected
		}
		return nil, e.Err
	case tagObject:
		if e.Err != nil {
			return nil, e.Err
		}
		return &e, nil
	}
	return nil, fmt.Errorf("%w: unknown record tag %d", filemeta.ErrBadFraming, tag)
}

// Skip advances past up to n records, stopping early without error when the
// stream closes first.
func (r *Reader) Skip(n int) error {
	if err := r.checkInit(); err != nil {
		return err
	}
	for n > 0 && !r.done {
		tag, e, err := r.readRecord()
		if err != nil {
			return err
		}
		if tag == tagClose {
			r.done = true
			return nil
		}
		if tag == tagError {
			if e.Err == nil {
				e.Err = filemeta.ErrUnexpected
			}
			return e.Err
		}
		n--
	}
	return nil
}

// ReadAll drains every remaining record, stopping at the close record and
// propagating any error record.
func (r *Reader) ReadAll() ([]Entry, error) {
	if err := r.checkInit(); err != nil {
		return nil, err
	}
	var out []Entry
	for !r.done {
		tag, e, err := r.readRecord()
		if err != nil {
			return out, err
		}
		switch tag {
		case tagClose:
			r.done = true
			return out, nil
		case tagError:
			if e.Err == nil {
				e.Err = filemeta.ErrUnexpected
			}
			return out, e.Err
		case tagObject:
			if e.Err != nil {
				return out, e.Err
			}
			out = append(out, e)
		default:
			return out, fmt.Errorf("%w: unknown record tag %d", filemeta.ErrBadFraming, tag)
		}
	}
	return out, nil
}
