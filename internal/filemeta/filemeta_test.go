package filemeta

import (
	"errors"
	"testing"
)

func version(id string, modTime int64, typ VersionType) FileVersion {
	return FileVersion{
		Header: VersionHeader{
			VersionID: id,
			ModTime:   modTime,
			Type:      typ,
		},
	}
}

func TestLoadRoundTrip(t *testing.T) {
	fm := &FileMeta{
		MetaVer: 1,
		Versions: []FileVersion{
			version("v2", 200, VersionTypeObject),
			version("v1", 100, VersionTypeObject),
		},
	}
	fm.Versions[0].Meta = []byte("inline")

	blob, err := fm.MarshalMsg()
	if err != nil {
		t.Fatalf("MarshalMsg: %v", err)
	}
	if !IsMetaFormat(blob) {
		t.Fatal("marshaled blob does not pass format detection")
	}

	got, err := Load(blob)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.MetaVer != fm.MetaVer {
		t.Errorf("MetaVer = %d, want %d", got.MetaVer, fm.MetaVer)
	}
	if len(got.Versions) != 2 {
		t.Fatalf("Versions = %d, want 2", len(got.Versions))
	}
	if got.Versions[0].Header != fm.Versions[0].Header {
		t.Errorf("header mismatch after round trip")
	}
	if string(got.Versions[0].Meta) != "inline" {
		t.Errorf("inline meta lost in round trip")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		blob    []byte
		wantErr error
	}{
		{name: "empty", blob: nil, wantErr: ErrFileNotFound},
		{name: "bad magic", blob: []byte("XXXX\x01rest"), wantErr: ErrFileCorrupt},
		{name: "bad version", blob: []byte("ZMET\x09rest"), wantErr: ErrFileCorrupt},
		{name: "garbage body", blob: []byte("ZMET\x01\xc1\xc1\xc1"), wantErr: ErrFileCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.blob)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHeaderHasECAndEqualIgnoringEC(t *testing.T) {
	base := VersionHeader{VersionID: "v1", ModTime: 100, Type: VersionTypeObject}

	if base.HasEC() {
		t.Error("header without shard counts reports HasEC")
	}

	withEC := base
	withEC.ECN, withEC.ECM = 4, 2
	if !withEC.HasEC() {
		t.Error("header with shard counts does not report HasEC")
	}
	if !base.EqualIgnoringEC(withEC) {
		t.Error("EC fields should be ignored by EqualIgnoringEC")
	}

	differs := withEC
	differs.ModTime = 200
	if base.EqualIgnoringEC(differs) {
		t.Error("EqualIgnoringEC ignored a real difference")
	}

	// Only one shard count set does not count as EC metadata.
	partial := base
	partial.ECN = 4
	if partial.HasEC() {
		t.Error("partial shard counts should not report HasEC")
	}
}

func TestSortsBefore(t *testing.T) {
	tests := []struct {
		name string
		a, b VersionHeader
		want bool
	}{
		{
			name: "newer first",
			a:    VersionHeader{ModTime: 200},
			b:    VersionHeader{ModTime: 100},
			want: true,
		},
		{
			name: "older second",
			a:    VersionHeader{ModTime: 100},
			b:    VersionHeader{ModTime: 200},
			want: false,
		},
		{
			name: "same time id ascending",
			a:    VersionHeader{ModTime: 100, VersionID: "a"},
			b:    VersionHeader{ModTime: 100, VersionID: "b"},
			want: true,
		},
		{
			name: "same id type breaks tie",
			a:    VersionHeader{ModTime: 100, VersionID: "a", Type: VersionTypeObject},
			b:    VersionHeader{ModTime: 100, VersionID: "a", Type: VersionTypeDelete},
			want: true,
		},
		{
			name: "signature last resort",
			a:    VersionHeader{ModTime: 100, VersionID: "a", Type: VersionTypeObject, Signature: 1},
			b:    VersionHeader{ModTime: 100, VersionID: "a", Type: VersionTypeObject, Signature: 2},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.SortsBefore(tt.b); got != tt.want {
				t.Errorf("SortsBefore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsLatestDeleteMarker(t *testing.T) {
	fm := &FileMeta{}
	if !fm.IsLatestDeleteMarker() {
		t.Error("empty history should count as deleted")
	}

	fm.Versions = []FileVersion{version("v2", 200, VersionTypeDelete), version("v1", 100, VersionTypeObject)}
	if !fm.IsLatestDeleteMarker() {
		t.Error("delete marker on top not detected")
	}

	fm.Versions[0].Header.Type = VersionTypeObject
	if fm.IsLatestDeleteMarker() {
		t.Error("object on top misreported as deleted")
	}
}

func TestAddVersionKeepsOrder(t *testing.T) {
	fm := &FileMeta{}
	fm.AddVersion(version("v1", 100, VersionTypeObject))
	fm.AddVersion(version("v3", 300, VersionTypeObject))
	fm.AddVersion(version("v2", 200, VersionTypeObject))

	want := []int64{300, 200, 100}
	for i, w := range want {
		if fm.Versions[i].Header.ModTime != w {
			t.Fatalf("position %d has mod time %d, want %d", i, fm.Versions[i].Header.ModTime, w)
		}
	}

	if got := fm.LatestModTime(); got != 300 {
		t.Errorf("LatestModTime = %d, want 300", got)
	}
}
