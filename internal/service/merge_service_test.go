package service

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/zzenonn/zmeta/internal/filemeta"
	"github.com/zzenonn/zmeta/internal/metacache"
)

func testBlob(t *testing.T, versionID string, modTime time.Time) []byte {
	t.Helper()
	fm := &filemeta.FileMeta{MetaVer: 1}
	fm.AddVersion(filemeta.FileVersion{
		Header: filemeta.VersionHeader{
			VersionID: versionID,
			ModTime:   modTime.UnixNano(),
			Type:      filemeta.VersionTypeObject,
		},
	})
	b, err := fm.MarshalMsg()
	if err != nil {
		t.Fatalf("MarshalMsg() error = %v", err)
	}
	return b
}

// diskStream serializes the given entries into a stream and returns a reader
// over it, the way a per-disk scanner would hand one to the merge.
func diskStream(t *testing.T, entries ...metacache.Entry) *metacache.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := metacache.NewWriter(&buf)
	for i := range entries {
		if err := w.WriteObj(&entries[i]); err != nil {
			t.Fatalf("WriteObj() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return metacache.NewReader(&buf)
}

func readNames(t *testing.T, data []byte) []string {
	t.Helper()
	r := metacache.NewReader(bytes.NewReader(data))
	var names []string
	for {
		e, err := r.Next()
		if err == io.EOF {
			return names
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		names = append(names, e.Name)
	}
}

func TestMergeStreamsQuorum(t *testing.T) {
	now := time.Now()
	blob := testBlob(t, "v1", now)

	// "alpha" on all three disks, "beta" on two, "stray" on one.
	readers := []*metacache.Reader{
		diskStream(t,
			metacache.Entry{Name: "alpha", Metadata: blob},
			metacache.Entry{Name: "beta", Metadata: blob},
		),
		diskStream(t,
			metacache.Entry{Name: "alpha", Metadata: blob},
			metacache.Entry{Name: "beta", Metadata: blob},
			metacache.Entry{Name: "stray", Metadata: blob},
		),
		diskStream(t,
			metacache.Entry{Name: "alpha", Metadata: blob},
		),
	}

	var out bytes.Buffer
	opts := MergeOptions{
		Resolve: metacache.ResolveParams{DirQuorum: 2, ObjQuorum: 2},
	}
	if err := MergeStreams(readers, metacache.NewWriter(&out), opts); err != nil {
		t.Fatalf("MergeStreams() error = %v", err)
	}

	names := readNames(t, out.Bytes())
	want := []string{"alpha", "beta"}
	if len(names) != len(want) {
		t.Fatalf("merged names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("merged[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestMergeStreamsForwardPast(t *testing.T) {
	blob := testBlob(t, "v1", time.Now())
	readers := []*metacache.Reader{
		diskStream(t,
			metacache.Entry{Name: "a", Metadata: blob},
			metacache.Entry{Name: "b", Metadata: blob},
			metacache.Entry{Name: "c", Metadata: blob},
		),
		diskStream(t,
			metacache.Entry{Name: "a", Metadata: blob},
			metacache.Entry{Name: "b", Metadata: blob},
			metacache.Entry{Name: "c", Metadata: blob},
		),
	}

	var out bytes.Buffer
	opts := MergeOptions{
		Resolve:     metacache.ResolveParams{DirQuorum: 2, ObjQuorum: 2},
		ForwardPast: "b",
	}
	if err := MergeStreams(readers, metacache.NewWriter(&out), opts); err != nil {
		t.Fatalf("MergeStreams() error = %v", err)
	}

	names := readNames(t, out.Bytes())
	if len(names) != 1 || names[0] != "c" {
		t.Errorf("merged names = %v, want [c]", names)
	}
}

func TestMergeStreamsDeadSourceCountsAgainstQuorum(t *testing.T) {
	blob := testBlob(t, "v1", time.Now())

	// The nil reader abstains from every group. With quorum 2 the remaining
	// single observation is not enough.
	readers := []*metacache.Reader{
		diskStream(t, metacache.Entry{Name: "only", Metadata: blob}),
		nil,
	}

	var out bytes.Buffer
	opts := MergeOptions{
		Resolve: metacache.ResolveParams{DirQuorum: 2, ObjQuorum: 2},
	}
	if err := MergeStreams(readers, metacache.NewWriter(&out), opts); err != nil {
		t.Fatalf("MergeStreams() error = %v", err)
	}

	if names := readNames(t, out.Bytes()); len(names) != 0 {
		t.Errorf("merged names = %v, want none", names)
	}
}

func TestMergeStreamsNewestVersionWins(t *testing.T) {
	old := testBlob(t, "v-old", time.Now().Add(-time.Hour))
	fresh := testBlob(t, "v-new", time.Now())

	readers := []*metacache.Reader{
		diskStream(t, metacache.Entry{Name: "obj", Metadata: fresh}),
		diskStream(t, metacache.Entry{Name: "obj", Metadata: fresh}),
		diskStream(t, metacache.Entry{Name: "obj", Metadata: old}),
	}

	var out bytes.Buffer
	opts := MergeOptions{
		Resolve: metacache.ResolveParams{DirQuorum: 2, ObjQuorum: 2},
	}
	if err := MergeStreams(readers, metacache.NewWriter(&out), opts); err != nil {
		t.Fatalf("MergeStreams() error = %v", err)
	}

	r := metacache.NewReader(bytes.NewReader(out.Bytes()))
	e, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	fm, err := e.Decode()
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(fm.Versions) == 0 || fm.Versions[0].Header.VersionID != "v-new" {
		t.Errorf("resolved top version = %+v, want v-new first", fm.Versions)
	}
}

func TestMergeStreamsOnMergedCallback(t *testing.T) {
	blob := testBlob(t, "v1", time.Now())
	readers := []*metacache.Reader{
		diskStream(t,
			metacache.Entry{Name: "x", Metadata: blob},
			metacache.Entry{Name: "y", Metadata: blob},
		),
		diskStream(t,
			metacache.Entry{Name: "x", Metadata: blob},
			metacache.Entry{Name: "y", Metadata: blob},
		),
	}

	var seen []string
	opts := MergeOptions{
		Resolve:  metacache.ResolveParams{DirQuorum: 2, ObjQuorum: 2},
		OnMerged: func(e *metacache.Entry) { seen = append(seen, e.Name) },
	}
	var out bytes.Buffer
	if err := MergeStreams(readers, metacache.NewWriter(&out), opts); err != nil {
		t.Fatalf("MergeStreams() error = %v", err)
	}

	if len(seen) != 2 || seen[0] != "x" || seen[1] != "y" {
		t.Errorf("OnMerged saw %v, want [x y]", seen)
	}
}

func TestMergeStreamsEmptyInputs(t *testing.T) {
	readers := []*metacache.Reader{diskStream(t), diskStream(t)}

	var out bytes.Buffer
	opts := MergeOptions{Resolve: metacache.ResolveParams{DirQuorum: 1, ObjQuorum: 1}}
	if err := MergeStreams(readers, metacache.NewWriter(&out), opts); err != nil {
		t.Fatalf("MergeStreams() error = %v", err)
	}
	if names := readNames(t, out.Bytes()); len(names) != 0 {
		t.Errorf("merged names = %v, want none", names)
	}
}
