// Package metacache implements the metadata reconciliation engine of the
// listing path: one Entry per disk per object name, a deterministic pairwise
// comparator, a quorum resolver that produces at most one canonical entry per
// name, and the versioned binary stream used to move ordered entry sequences
// between scanners, listing handlers and merge stages without materializing
// them in memory.
package metacache

import (
	"strings"

	"github.com/zzenonn/zmeta/internal/filemeta"
)

const slashSeparator = "/"

// Entry is one disk's report for an object name.
type Entry struct {
	// Name is the full name of the object including any prefix.
	Name string

	// Metadata is the raw metadata blob. Empty metadata means the entry is
	// only a prefix (directory marker), not an object; such entries appear
	// in non-recursive scans.
	Metadata []byte

	// Err carries a per-record error attached by the producing scanner. An
	// entry can have empty metadata and no error: a valid directory marker.
	Err error

	// Reusable indicates only one reference to Metadata is expected, so a
	// consumer may take ownership of the buffer without copying.
	Reusable bool

	// cached holds the decoded version list. It is written at most once, by
	// Decode, and never invalidated. Entries are cheap to copy; goroutines
	// must each work on their own copy rather than share one entry.
	cached *filemeta.FileMeta
}

// IsDir reports whether the entry is a pure directory marker: no metadata
// and a name ending in the path separator.
func (e *Entry) IsDir() bool {
	return len(e.Metadata) == 0 && strings.HasSuffix(e.Name, slashSeparator)
}

// IsObject reports whether the entry carries object metadata. Note this is
// not the negation of IsDir: an entry with no metadata and no trailing
// separator is neither.
func (e *Entry) IsObject() bool {
	return len(e.Metadata) > 0
}

// IsObjectDir reports whether the entry is an object whose key looks like a
// directory path.
func (e *Entry) IsObjectDir() bool {
	return len(e.Metadata) > 0 && strings.HasSuffix(e.Name, slashSeparator)
}

// IsInDir reports whether the entry is a direct child of dir: after
// stripping the dir prefix, the separator may appear only as the final
// character or not at all. dir == "" means the root.
func (e *Entry) IsInDir(dir, separator string) bool {
	if dir == "" {
		idx := strings.Index(e.Name, separator)
		return idx == -1 || idx == len(e.Name)-len(separator)
	}
	ext := strings.TrimPrefix(e.Name, dir)
	if len(ext) != len(e.Name) {
		idx := strings.Index(ext, separator)
		return idx == -1 || idx == len(ext)-len(separator)
	}
	return false
}

// Decode returns the entry's version list, parsing and memoizing the
// metadata blob on first call. Empty metadata yields (nil, nil): a valid
// directory marker is not an error. A parse failure means the entry is not a
// usable object observation; callers skip it rather than propagate.
func (e *Entry) Decode() (*filemeta.FileMeta, error) {
	if e.cached != nil {
		return e.cached, nil
	}
	if len(e.Metadata) == 0 {
		return nil, nil
	}
	fm, err := filemeta.Load(e.Metadata)
	if err != nil {
		return nil, err
	}
	e.cached = fm
	return fm, nil
}

// IsLatestDeleteMarker reports whether the most recent version is a delete
// marker. A structurally unreadable blob counts as deleted: resurrecting
// data on a corrupt read is worse than hiding it.
func (e *Entry) IsLatestDeleteMarker() bool {
	if e.cached != nil {
		return e.cached.IsLatestDeleteMarker()
	}
	if !filemeta.IsMetaFormat(e.Metadata) {
		return false
	}
	fm, err := e.Decode()
	if err != nil || fm == nil {
		return true
	}
	return fm.IsLatestDeleteMarker()
}

// Clone returns a copy of the entry that shares the metadata buffer but owns
// its own decode memo, safe to hand to another goroutine.
func (e *Entry) Clone() *Entry {
	c := *e
	c.cached = nil
	return &c
}

// Matches compares the entry against other for the same name and returns the
// preferred entry plus whether the two fully agree. The comparison is
// deterministic; its only side effect is filling each entry's decode memo.
//
// Names that differ cannot agree; the lexicographically smaller name is
// preferred to keep merge sequencing stable. Directory markers take
// precedence over objects. An entry that fails to decode yields no
// preference at all, since it cannot contribute to quorum.
func (e *Entry) Matches(other *Entry, strict bool) (*Entry, bool) {
	if other == nil {
		return nil, false
	}
	if e.Name != other.Name {
		if e.Name < other.Name {
			return e, false
		}
		return other, false
	}

	if e.IsDir() || other.IsDir() {
		if e.IsDir() {
			return e, other.IsDir()
		}
		return other, false
	}

	eVers, err := e.Decode()
	if err != nil || eVers == nil {
		return nil, false
	}
	oVers, err := other.Decode()
	if err != nil || oVers == nil {
		return nil, false
	}

	if len(eVers.Versions) != len(oVers.Versions) {
		// Different history lengths never fully agree. Prefer the side with
		// the most recent write; tie-break on the longer history.
		eMod, oMod := eVers.LatestModTime(), oVers.LatestModTime()
		if eMod != oMod {
			if eMod > oMod {
				return e, false
			}
			return other, false
		}
		if len(eVers.Versions) > len(oVers.Versions) {
			return e, false
		}
		return other, false
	}

	var prefer *Entry
	for i := range eVers.Versions {
		eh := eVers.Versions[i].Header
		oh := oVers.Versions[i].Header
		if eh == oh {
			continue
		}

		if eh.HasEC() != oh.HasEC() && eh.EqualIgnoringEC(oh) {
			// One side has erasure-coding fields the other lacks; EC
			// metadata may have been written later and is not a conflict.
			continue
		}

		if !strict && eh.MatchesNotStrict(oh) {
			// Tolerated drift. Remember which side sorts first but keep
			// scanning for a hard mismatch.
			if prefer == nil {
				if eh.SortsBefore(oh) {
					prefer = e
				} else {
					prefer = other
				}
			}
			continue
		}

		// Hard mismatch.
		if prefer != nil {
			return prefer, false
		}
		if eh.SortsBefore(oh) {
			return e, false
		}
		return other, false
	}

	if prefer == nil {
		prefer = e
	}
	return prefer, true
}
