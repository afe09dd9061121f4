package metacache

import (
	"testing"
)

func TestFirstFound(t *testing.T) {
	a := &Entry{Name: "a"}
	m := Entries{nil, a, nil}

	got, n := m.FirstFound()
	if got != a {
		t.Error("FirstFound skipped the first present entry")
	}
	if n != 3 {
		t.Errorf("slot count = %d, want 3", n)
	}

	empty := Entries{nil, nil}
	if got, _ := empty.FirstFound(); got != nil {
		t.Error("all-absent group should yield nil")
	}
}

func TestResolveUnanimousObjects(t *testing.T) {
	e := func() *Entry { return objEntry(t, "obj", objVersion("v1", 100)) }
	m := Entries{e(), e(), e()}

	resolved, ok := m.Resolve(&ResolveParams{DirQuorum: 2, ObjQuorum: 2})
	if !ok {
		t.Fatal("unanimous group failed to resolve")
	}
	if resolved.Name != "obj" {
		t.Errorf("resolved name = %q", resolved.Name)
	}
}

func TestResolveQuorumShortfall(t *testing.T) {
	// Two slots, one observation, quorum two.
	m := Entries{objEntry(t, "obj", objVersion("v1", 100)), nil}

	if _, ok := m.Resolve(&ResolveParams{DirQuorum: 2, ObjQuorum: 2}); ok {
		t.Fatal("single observation must not meet quorum 2")
	}

	// The same group passes with quorum 1.
	if _, ok := m.Resolve(&ResolveParams{DirQuorum: 1, ObjQuorum: 1}); !ok {
		t.Fatal("single observation should meet quorum 1")
	}
}

func TestResolveUndecodableDontCount(t *testing.T) {
	good := objEntry(t, "obj", objVersion("v1", 100))
	bad := &Entry{Name: "obj", Metadata: []byte("garbage")}

	m := Entries{good, bad}
	if _, ok := m.Resolve(&ResolveParams{DirQuorum: 2, ObjQuorum: 2}); ok {
		t.Fatal("undecodable entry must not count toward object quorum")
	}
}

func TestResolveDirPrecedence(t *testing.T) {
	dir := func() *Entry { return &Entry{Name: "x/"} }
	obj := objEntry(t, "x/", objVersion("v1", 100))

	// Directory markers meeting dir quorum win over object observations.
	m := Entries{dir(), dir(), obj}
	resolved, ok := m.Resolve(&ResolveParams{DirQuorum: 2, ObjQuorum: 2})
	if !ok {
		t.Fatal("directory at quorum failed to resolve")
	}
	if !resolved.IsDir() {
		t.Error("resolved entry should be the directory marker")
	}

	// A directory below quorum resolves to nothing, it does not fall back
	// to the object.
	m = Entries{dir(), obj, obj}
	if _, ok := m.Resolve(&ResolveParams{DirQuorum: 2, ObjQuorum: 2}); ok {
		t.Fatal("directory below quorum must resolve to nothing")
	}
}

func TestResolveDisagreementMerges(t *testing.T) {
	shared := objVersion("v1", 100)
	stray := objVersion("v9", 900)

	a := objEntry(t, "obj", stray, shared)
	b := objEntry(t, "obj", shared)
	c := objEntry(t, "obj", shared)

	resolved, ok := Entries{a, b, c}.Resolve(&ResolveParams{DirQuorum: 2, ObjQuorum: 2})
	if !ok {
		t.Fatal("disagreeing group with a quorum-backed history failed to resolve")
	}

	fm, err := resolved.Decode()
	if err != nil {
		t.Fatalf("decoding merged result: %v", err)
	}
	if len(fm.Versions) != 1 || fm.Versions[0].Header.VersionID != "v1" {
		t.Errorf("merged history should contain only the quorum-backed v1, got %+v", fm.Versions)
	}
	if !resolved.Reusable {
		t.Error("merged result should own its buffer")
	}
}

func TestResolveMergeEmptyMeansNone(t *testing.T) {
	a := objEntry(t, "obj", objVersion("vA", 100))
	b := objEntry(t, "obj", objVersion("vB", 200))
	c := objEntry(t, "obj", objVersion("vC", 300))

	// Three valid but fully disjoint histories: quorum is met at the
	// object level yet no version is backed by two disks.
	if _, ok := (Entries{a, b, c}).Resolve(&ResolveParams{DirQuorum: 2, ObjQuorum: 2}); ok {
		t.Fatal("merge that produces no versions must yield no result")
	}
}

func TestResolveEmptyGroup(t *testing.T) {
	if _, ok := (Entries{}).Resolve(&ResolveParams{DirQuorum: 1, ObjQuorum: 1}); ok {
		t.Error("empty group resolved")
	}
	if _, ok := (Entries{nil, nil, nil}).Resolve(&ResolveParams{DirQuorum: 1, ObjQuorum: 1}); ok {
		t.Error("all-absent group resolved")
	}
}

func TestResolveCandidatesReset(t *testing.T) {
	params := &ResolveParams{DirQuorum: 1, ObjQuorum: 1}

	m1 := Entries{objEntry(t, "a", objVersion("v1", 100))}
	if _, ok := m1.Resolve(params); !ok {
		t.Fatal("first resolve failed")
	}

	// Re-using the params for the next name must not leak candidates.
	m2 := Entries{objEntry(t, "b", objVersion("v2", 200))}
	if _, ok := m2.Resolve(params); !ok {
		t.Fatal("second resolve failed")
	}
	if len(params.Candidates) != 1 {
		t.Errorf("candidates leaked across calls: %d", len(params.Candidates))
	}
}

func TestSortedForwardPast(t *testing.T) {
	mk := func(names ...string) *Sorted {
		s := &Sorted{}
		for _, n := range names {
			s.O = append(s.O, &Entry{Name: n})
		}
		return s
	}

	tests := []struct {
		name   string
		marker string
		want   []string
	}{
		{name: "empty marker keeps all", marker: "", want: []string{"a", "b", "c"}},
		{name: "skips at and before", marker: "b", want: []string{"c"}},
		{name: "between names", marker: "aa", want: []string{"b", "c"}},
		{name: "past the end", marker: "z", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mk("a", "b", "c")
			s.ForwardPast(tt.marker)
			got := s.Entries()
			if len(got) != len(tt.want) {
				t.Fatalf("%d entries left, want %d", len(got), len(tt.want))
			}
			for i, e := range got {
				if e.Name != tt.want[i] {
					t.Errorf("entry %d = %q, want %q", i, e.Name, tt.want[i])
				}
			}
		})
	}
}

func TestResolveStrictMode(t *testing.T) {
	v := objVersion("v1", 100)
	drifted := v
	drifted.Header.Signature = 9

	a := objEntry(t, "obj", v)
	b := objEntry(t, "obj", drifted)

	// Strict: signature drift is a real disagreement and the merge cannot
	// back either version with two disks.
	if _, ok := (Entries{a, b}).Resolve(&ResolveParams{DirQuorum: 2, ObjQuorum: 2, Strict: true}); ok {
		t.Fatal("strict resolve accepted drifted signatures")
	}

	// Non-strict: the drift is tolerated.
	a2 := objEntry(t, "obj", v)
	b2 := objEntry(t, "obj", drifted)
	if _, ok := (Entries{a2, b2}).Resolve(&ResolveParams{DirQuorum: 2, ObjQuorum: 2}); !ok {
		t.Fatal("non-strict resolve rejected tolerable drift")
	}
}

func TestResolveRequestedVersionsCap(t *testing.T) {
	v3, v2, v1 := objVersion("v3", 300), objVersion("v2", 200), objVersion("v1", 100)

	// Histories disagree (one side missing v3) so the resolver merges.
	a := objEntry(t, "obj", v3, v2, v1)
	b := objEntry(t, "obj", v3, v2, v1)
	c := objEntry(t, "obj", v2, v1)

	resolved, ok := Entries{a, b, c}.Resolve(&ResolveParams{DirQuorum: 2, ObjQuorum: 2, RequestedVersions: 1})
	if !ok {
		t.Fatal("resolve failed")
	}
	fm, err := resolved.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fm.Versions) != 1 || fm.Versions[0].Header.VersionID != "v3" {
		t.Errorf("requested cap should keep only the newest version, got %+v", fm.Versions)
	}
}
