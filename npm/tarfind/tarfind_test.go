package tarfind

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/a-h/pkggate/npm/models"
)

type tarEntry struct {
	name    string
	content string
}

func buildTarball(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		hdr := &tar.Header{
			Name: "package/" + e.name,
			Mode: 0o644,
			Size: int64(len(e.content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := tw.Write([]byte(e.content)); err != nil {
			t.Fatalf("write content: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func TestSearchExactMatch(t *testing.T) {
	tb := buildTarball(t, []tarEntry{
		{name: "index.js", content: "console.log(1)"},
		{name: "lib/helper.js", content: "module.exports = {}"},
	})

	result, err := Search(tb, "/index.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Found == nil || result.Found.Path != "/index.js" {
		t.Fatalf("expected exact match /index.js, got %+v", result.Found)
	}
}

func TestSearchExtensionProbing(t *testing.T) {
	tb := buildTarball(t, []tarEntry{
		{name: "index.json", content: "{}"},
		{name: "index.js", content: "console.log(1)"},
	})

	result, err := Search(tb, "/index")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Found == nil || result.Found.Path != "/index.js" {
		t.Fatalf("expected .js probe to win over .json, got %+v", result.Found)
	}
}

func TestSearchJSONProbeDoesNotReplaceJS(t *testing.T) {
	tb := buildTarball(t, []tarEntry{
		{name: "index.js", content: "console.log(1)"},
		{name: "index.json", content: "{}"},
	})

	result, err := Search(tb, "/index")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Found == nil || result.Found.Path != "/index.js" {
		t.Fatalf("expected .js entry to remain the match, got %+v", result.Found)
	}
}

func TestSearchInsertsAncestorDirectories(t *testing.T) {
	tb := buildTarball(t, []tarEntry{
		{name: "lib/deep/helper.js", content: "x"},
	})

	result, err := Search(tb, "/lib/deep/helper.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, dir := range []string{"/lib", "/lib/deep"} {
		entry, ok := result.MatchingEntries[dir]
		if !ok {
			t.Fatalf("expected ancestor directory %q to be present", dir)
		}
		if entry.Type != models.EntryDir {
			t.Fatalf("expected %q to be a directory entry, got %v", dir, entry.Type)
		}
	}
}

func TestSearchNoMatch(t *testing.T) {
	tb := buildTarball(t, []tarEntry{
		{name: "index.js", content: "x"},
	})

	result, err := Search(tb, "/missing.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Found != nil {
		t.Fatalf("expected no match, got %+v", result.Found)
	}
}
