package app

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExportFilename(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		c    Container
		want string
	}{
		{
			name: "utc webm",
			t:    time.Date(2026, 8, 23, 14, 3, 5, 123456789, time.UTC),
			c:    ContainerWebM,
			want: "session-recording-2026-08-23T14-03-05.webm",
		},
		{
			name: "zone offset is truncated away",
			t:    time.Date(2026, 8, 23, 14, 3, 5, 0, time.FixedZone("CEST", 2*3600)),
			c:    ContainerWAV,
			want: "session-recording-2026-08-23T14-03-05.wav",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := exportFilename(tc.t, tc.c); got != tc.want {
				t.Fatalf("exportFilename() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExporter_NoArtifactIsANoOp(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(dir, NewLogger(io.Discard))

	path, err := e.Export(nil)
	if err != nil || path != "" {
		t.Fatalf("Export(nil) = (%q, %v), want silent no-op", path, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("no-op export created %d files", len(entries))
	}
}

func TestExporter_Exportable(t *testing.T) {
	e := NewExporter(t.TempDir(), NewLogger(io.Discard))
	if e.Exportable(nil) {
		t.Fatal("nil artifact must not be exportable")
	}
	if e.Exportable(&Artifact{}) {
		t.Fatal("empty artifact must not be exportable")
	}
	if !e.Exportable(&Artifact{Data: []byte("x")}) {
		t.Fatal("finalized artifact must be exportable")
	}
}

func TestExporter_RepeatedExportsAreIdentical(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(dir, NewLogger(io.Discard))
	fixed := time.Date(2026, 8, 23, 9, 30, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	a := &Artifact{Data: []byte("opus bytes"), Container: ContainerWebM, SessionID: "s1"}

	first, err := e.Export(a)
	if err != nil {
		t.Fatalf("first Export() = %v", err)
	}
	second, err := e.Export(a)
	if err != nil {
		t.Fatalf("second Export() = %v", err)
	}
	// Same export second → same filename; the content is the artifact
	// verbatim both times.
	if first != second {
		t.Fatalf("filenames differ within the same second: %q vs %q", first, second)
	}
	got, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "opus bytes" {
		t.Fatalf("exported content = %q, want the artifact bytes", got)
	}

	e.now = func() time.Time { return fixed.Add(time.Second) }
	third, err := e.Export(a)
	if err != nil {
		t.Fatalf("third Export() = %v", err)
	}
	if third == first {
		t.Fatal("exports a second apart should have distinct filenames")
	}
	if filepath.Dir(third) != dir {
		t.Fatalf("export landed outside the output dir: %q", third)
	}
}
