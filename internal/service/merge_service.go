// Package service provides the business logic of the listing-cache metadata
// layer: merging per-disk observation streams under quorum rules, erasure
// coding cache blocks, and running resumable listing passes.
package service

import (
	"errors"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zmeta/internal/metacache"
)

// MergeOptions tunes a stream merge.
type MergeOptions struct {
	// Resolve carries the quorum parameters. Candidates is filled per
	// name from the decoded entries, so callers leave it nil.
	Resolve metacache.ResolveParams

	// ForwardPast skips every name at or before the marker. Used to
	// resume an interrupted listing from its checkpoint.
	ForwardPast string

	// OnMerged is invoked after each name that survives resolution has
	// been written. Optional.
	OnMerged func(e *metacache.Entry)
}

// mergeSource tracks one disk's stream position. A source that returns an
// error is marked dead and abstains from every later name group, which the
// resolver counts against quorum naturally.
type mergeSource struct {
	r    *metacache.Reader
	cur  *metacache.Entry
	dead bool
}

func (s *mergeSource) advance() error {
	if s.dead || s.r == nil {
		s.cur = nil
		s.dead = true
		return nil
	}
	e, err := s.r.Next()
	if err != nil {
		s.cur = nil
		s.dead = true
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	s.cur = e
	return nil
}

// MergeStreams performs a name-aligned k-way merge of per-disk entry streams
// into a single resolved output stream. Each reader occupies a fixed slot so
// the resolver sees one observation (or an absence) per disk for every name.
// Names that fail quorum are logged and omitted. The output writer is
// initialized and closed by this call.
func MergeStreams(readers []*metacache.Reader, out *metacache.Writer, opts MergeOptions) error {
	if err := out.Init(); err != nil {
		return err
	}

	sources := make([]*mergeSource, len(readers))
	for i, r := range readers {
		sources[i] = &mergeSource{r: r}
		if err := sources[i].advance(); err != nil {
			log.Warnf("merge: stream %d failed at open: %v", i, err)
		}
	}

	group := make(metacache.Entries, len(sources))
	for {
		// Smallest name across live sources is the next group.
		name := ""
		for _, s := range sources {
			if s.cur == nil {
				continue
			}
			if name == "" || s.cur.Name < name {
				name = s.cur.Name
			}
		}
		if name == "" {
			break
		}

		if opts.ForwardPast != "" && name <= opts.ForwardPast {
			for i, s := range sources {
				if s.cur != nil && s.cur.Name == name {
					if err := s.advance(); err != nil {
						log.Warnf("merge: stream %d failed: %v", i, err)
					}
				}
			}
			continue
		}

		for i, s := range sources {
			if s.cur != nil && s.cur.Name == name {
				group[i] = s.cur
			} else {
				group[i] = nil
			}
		}

		resolved, ok := group.Resolve(&opts.Resolve)
		if ok {
			if err := out.WriteObj(resolved); err != nil {
				return err
			}
			if opts.OnMerged != nil {
				opts.OnMerged(resolved)
			}
		} else {
			log.Warnf("merge: dropping %q, no quorum", name)
		}

		for i, s := range sources {
			if s.cur != nil && s.cur.Name == name {
				if err := s.advance(); err != nil {
					log.Warnf("merge: stream %d failed: %v", i, err)
				}
			}
		}
	}

	return out.Close()
}
