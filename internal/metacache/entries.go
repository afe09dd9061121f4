package metacache

import (
	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zmeta/internal/filemeta"
)

// ResolveParams carries the quorum thresholds of one resolution pass.
type ResolveParams struct {
	// DirQuorum is the minimum number of directory observations required to
	// trust a directory result.
	DirQuorum int
	// ObjQuorum is the minimum number of decodable object observations
	// required before any object result can be trusted.
	ObjQuorum int
	// RequestedVersions caps how much history the merge retains; 0 means all.
	RequestedVersions int
	Bucket            string
	// Strict disables the erasure-coding-tolerant non-strict comparison.
	Strict bool

	// Candidates accumulates the decoded version lists of one resolution
	// call for the merge primitive. It is reset at the start of every call
	// and never shared across names.
	Candidates [][]filemeta.FileVersion
}

// Entries is a positional observation group: one slot per disk, nil where
// the disk contributed nothing. Slot alignment is maintained by the caller
// for all names of one scan so that quorum counts correspond to distinct
// disks agreeing.
type Entries []*Entry

// FirstFound returns the first present entry and the total slot count.
func (m Entries) FirstFound() (*Entry, int) {
	for _, e := range m {
		if e != nil {
			return e, len(m)
		}
	}
	return nil, len(m)
}

// Resolve reduces the group to at most one canonical entry.
//
// Unanimous agreement among decodable object observations is trusted
// outright. A directory marker wins when it meets the directory quorum; a
// failed directory quorum returns nothing rather than falling through to
// object evaluation. When fewer decodable object observations exist than the
// object quorum, no result is possible regardless of agreement. Any real
// disagreement is handed to the version merge, and a merge that cannot
// produce (or re-encode) a quorum-backed history yields nothing. Failing to
// reach quorum is an expected outcome, not an error.
func (m Entries) Resolve(params *ResolveParams) (*Entry, bool) {
	if len(m) == 0 {
		return nil, false
	}

	params.Candidates = params.Candidates[:0]

	dirExists := 0
	objsAgree := 0
	objsValid := 0
	var selected *Entry

	for _, entry := range m {
		if entry == nil || entry.Name == "" {
			continue
		}

		if entry.IsDir() {
			dirExists++
			selected = entry
			continue
		}

		// Candidate object.
		fm, err := entry.Decode()
		if err != nil || fm == nil {
			log.Debugf("metacache: resolve %q: skipping undecodable entry: %v", entry.Name, err)
			continue
		}

		objsValid++
		params.Candidates = append(params.Candidates, fm.Versions)

		if selected == nil {
			selected = entry
			objsAgree = 1
			continue
		}

		if prefer, ok := entry.Matches(selected, params.Strict); ok {
			selected = prefer
			objsAgree++
		}
	}

	if selected == nil {
		return nil, false
	}

	if selected.IsDir() {
		if dirExists >= params.DirQuorum {
			return selected, true
		}
		// A name cannot be both a confirmed directory and a confirmed
		// object; a directory below quorum resolves to nothing.
		return nil, false
	}

	// If we can never reach read quorum, don't bother merging.
	if objsValid < params.ObjQuorum {
		log.Debugf("metacache: resolve %q: %d valid objects below quorum %d", selected.Name, objsValid, params.ObjQuorum)
		return nil, false
	}

	if objsAgree == objsValid {
		return selected, true
	}

	cached := selected.cached
	if cached == nil {
		return nil, false
	}

	// Real disagreement: build a merged result.
	versions := filemeta.MergeVersions(params.ObjQuorum, params.Strict, params.RequestedVersions, params.Candidates)
	if len(versions) == 0 {
		log.Debugf("metacache: resolve %q: merge produced no quorum-backed versions", selected.Name)
		return nil, false
	}

	merged := &filemeta.FileMeta{
		MetaVer:  cached.MetaVer,
		Versions: versions,
	}
	metadata, err := merged.MarshalMsg()
	if err != nil {
		log.Warnf("metacache: resolve %q: re-encoding merged versions: %v", selected.Name, err)
		return nil, false
	}

	return &Entry{
		Name:     selected.Name,
		Metadata: metadata,
		Reusable: true,
		cached:   merged,
	}, true
}

// Sorted is an ordered batch of resolved entries, the unit a listing handler
// buffers between continuation tokens.
type Sorted struct {
	O      Entries
	ListID string
	// Reuse marks the batch as owning its entries' buffers.
	Reuse            bool
	LastSkippedEntry string
}

// Entries returns the present entries in order.
func (s *Sorted) Entries() []*Entry {
	out := make([]*Entry, 0, len(s.O))
	for _, e := range s.O {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// ForwardPast drops every entry whose name is not after marker. An empty
// marker leaves the batch unchanged.
func (s *Sorted) ForwardPast(marker string) {
	if marker == "" {
		return
	}
	for i, e := range s.O {
		if e != nil && e.Name > marker {
			s.O = s.O[i:]
			return
		}
	}
	s.O = nil
}
