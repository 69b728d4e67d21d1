package pathname

import "testing"

func TestParseScopedPackage(t *testing.T) {
	got, err := Parse("/@scope/name@version/file.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Pathname{Name: "@scope/name", Version: "version", Filename: "/file.js"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Spec() != "@scope/name@version" {
		t.Fatalf("unexpected spec: %s", got.Spec())
	}
}

func TestParseDefaultsVersionToLatest(t *testing.T) {
	got, err := Parse("/react")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Version != "latest" {
		t.Fatalf("expected default version latest, got %q", got.Version)
	}
	if got.Filename != "" {
		t.Fatalf("expected empty filename, got %q", got.Filename)
	}
}

func TestSlashNormalization(t *testing.T) {
	got, err := Parse("/react@18.0.0//lib///index.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Filename != "/lib/index.js" {
		t.Fatalf("expected collapsed slashes, got %q", got.Filename)
	}
}

func TestPathRoundTrip(t *testing.T) {
	cases := []string{
		"/@scope/name@1.2.3/file.js",
		"/react@latest",
		"/lodash@^4.0.0/index.js",
	}
	for _, c := range cases {
		p, err := Parse(c)
		if err != nil {
			t.Fatalf("unexpected error parsing %q: %v", c, err)
		}
		rebuilt := p.String()
		reparsed, err := Parse(rebuilt)
		if err != nil {
			t.Fatalf("unexpected error reparsing %q: %v", rebuilt, err)
		}
		if p != reparsed {
			t.Fatalf("round trip mismatch for %q: %+v != %+v", c, p, reparsed)
		}
	}
}

func TestInvalidURL(t *testing.T) {
	if _, err := Parse("not-a-path"); err == nil {
		t.Fatalf("expected error for path without leading slash")
	}
	if _, err := Parse("/%zz"); err == nil {
		t.Fatalf("expected error for undecodable path")
	}
}
