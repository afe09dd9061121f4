// Package filemeta implements the per-object version list stored in a disk's
// metadata blob: the on-disk framing, the version header comparison rules the
// reconciliation engine depends on, and the quorum merge of divergent
// version histories.
package filemeta

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// VersionType classifies a recorded version.
type VersionType uint8

const (
	// VersionTypeInvalid marks an uninitialized header.
	VersionTypeInvalid VersionType = iota
	// VersionTypeObject is a regular object version.
	VersionTypeObject
	// VersionTypeDelete is a delete marker.
	VersionTypeDelete
	// VersionTypeLegacy is a version imported from the pre-versioning format.
	VersionTypeLegacy
)

// VersionHeader is the fixed-size summary of one object version. Headers are
// comparable values; two versions with equal headers describe the same
// physical version even when the disks wrote them independently.
type VersionHeader struct {
	VersionID string      `msgpack:"id"`
	ModTime   int64       `msgpack:"mt"` // unix nanoseconds
	Signature uint32      `msgpack:"sig"`
	Type      VersionType `msgpack:"ty"`
	Flags     uint8       `msgpack:"fl"`

	// ECN/ECM are the erasure-coding data/parity shard counts. They are
	// written after the version itself and may lag on some disks without
	// indicating a real conflict.
	ECN uint8 `msgpack:"ecn"`
	ECM uint8 `msgpack:"ecm"`
}

// HasEC reports whether erasure-coding shard counts have been recorded.
func (h VersionHeader) HasEC() bool {
	return h.ECN > 0 && h.ECM > 0
}

// EqualIgnoringEC compares two headers with the erasure-coding fields zeroed.
func (h VersionHeader) EqualIgnoringEC(o VersionHeader) bool {
	h.ECN, h.ECM = 0, 0
	o.ECN, o.ECM = 0, 0
	return h == o
}

// MatchesNotStrict reports whether the headers describe the same version
// write even if signature or flags have drifted.
func (h VersionHeader) MatchesNotStrict(o VersionHeader) bool {
	return h.VersionID == o.VersionID && h.Type == o.Type && h.ModTime == o.ModTime
}

// SortsBefore returns true when h precedes o in canonical version order:
// newer modification times first, then version ID, type and signature as
// deterministic tie-breakers. The order is total for distinct headers so the
// same physical state always resolves identically.
func (h VersionHeader) SortsBefore(o VersionHeader) bool {
	if h.ModTime != o.ModTime {
		return h.ModTime > o.ModTime
	}
	if h.VersionID != o.VersionID {
		return h.VersionID < o.VersionID
	}
	if h.Type != o.Type {
		return h.Type < o.Type
	}
	return h.Signature < o.Signature
}

// FileVersion is one entry of a version list: the header plus the opaque
// per-version metadata document.
type FileVersion struct {
	Header VersionHeader `msgpack:"header"`
	Meta   []byte        `msgpack:"meta"`
}

// FileMeta is a decoded metadata blob: the ordered version history of one
// object, newest first.
type FileMeta struct {
	MetaVer  int           `msgpack:"meta_ver"`
	Versions []FileVersion `msgpack:"versions"`
}

// Blob framing: a fixed magic and a format version byte ahead of the
// msgpack-encoded body.
var metaMagic = []byte{'Z', 'M', 'E', 'T'}

const metaFormatV1 = 1

// IsMetaFormat is the cheap format detector: it reports whether b starts
// with the current blob framing without decoding the body.
func IsMetaFormat(b []byte) bool {
	return len(b) > len(metaMagic) && bytes.Equal(b[:len(metaMagic)], metaMagic) && b[len(metaMagic)] == metaFormatV1
}

// Load decodes a metadata blob. Structurally invalid input yields
// ErrFileCorrupt; the caller decides whether that is fatal.
func Load(b []byte) (*FileMeta, error) {
	if len(b) == 0 {
		return nil, ErrFileNotFound
	}
	if !IsMetaFormat(b) {
		return nil, ErrFileCorrupt
	}
	fm := &FileMeta{}
	if err := msgpack.Unmarshal(b[len(metaMagic)+1:], fm); err != nil {
		return nil, ErrFileCorrupt
	}
	return fm, nil
}

// MarshalMsg serializes the version list back into blob framing.
func (fm *FileMeta) MarshalMsg() ([]byte, error) {
	body, err := msgpack.Marshal(fm)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(metaMagic)+1+len(body))
	out = append(out, metaMagic...)
	out = append(out, metaFormatV1)
	return append(out, body...), nil
}

// LatestModTime returns the most recent modification time recorded anywhere
// in the version list, in unix nanoseconds. Zero when the list is empty.
func (fm *FileMeta) LatestModTime() int64 {
	var latest int64
	for _, v := range fm.Versions {
		if v.Header.ModTime > latest {
			latest = v.Header.ModTime
		}
	}
	return latest
}

// IsLatestDeleteMarker reports whether the newest version is a delete
// marker. An empty history counts as deleted.
func (fm *FileMeta) IsLatestDeleteMarker() bool {
	if len(fm.Versions) == 0 {
		return true
	}
	return fm.Versions[0].Header.Type == VersionTypeDelete
}

// AddVersion inserts v keeping the list ordered newest first.
func (fm *FileMeta) AddVersion(v FileVersion) {
	for i := range fm.Versions {
		if v.Header.SortsBefore(fm.Versions[i].Header) {
			fm.Versions = append(fm.Versions[:i], append([]FileVersion{v}, fm.Versions[i:]...)...)
			return
		}
	}
	fm.Versions = append(fm.Versions, v)
}
