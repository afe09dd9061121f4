package filemeta

// headersAgree reports whether two headers count as the same version for
// quorum purposes: exact equality, equality with erasure-coding fields
// ignored, or (outside strict mode) a non-strict match.
func headersAgree(a, b VersionHeader, strict bool) bool {
	if a == b {
		return true
	}
	if a.EqualIgnoringEC(b) {
		return true
	}
	if !strict && a.MatchesNotStrict(b) {
		return true
	}
	return false
}

// MergeVersions reconciles several disks' version lists into one list in
// which every version is backed by at least quorum lists. Candidates must
// each be ordered newest first. Versions that cannot gather quorum are
// dropped. requested > 0 caps how much history is retained. The result is
// empty when nothing reaches quorum.
func MergeVersions(quorum int, strict bool, requested int, candidates [][]FileVersion) []FileVersion {
	if quorum < 1 {
		quorum = 1
	}
	if len(candidates) < quorum {
		return nil
	}

	heads := make([][]FileVersion, len(candidates))
	copy(heads, candidates)

	var merged []FileVersion
	for {
		// Find the head version that sorts first across all lists.
		var best *VersionHeader
		bestIdx := -1
		for i := range heads {
			if len(heads[i]) == 0 {
				continue
			}
			h := heads[i][0].Header
			if best == nil || h.SortsBefore(*best) {
				hcopy := h
				best = &hcopy
				bestIdx = i
			}
		}
		if best == nil {
			break
		}

		agree := 0
		for i := range heads {
			if len(heads[i]) > 0 && headersAgree(heads[i][0].Header, *best, strict) {
				agree++
			}
		}

		if agree < quorum {
			// Not enough lists carry this version; discard it and move on.
			heads[bestIdx] = heads[bestIdx][1:]
			continue
		}

		merged = append(merged, heads[bestIdx][0])
		for i := range heads {
			if len(heads[i]) > 0 && headersAgree(heads[i][0].Header, *best, strict) {
				heads[i] = heads[i][1:]
			}
		}
		if requested > 0 && len(merged) >= requested {
			break
		}
	}
	return merged
}
