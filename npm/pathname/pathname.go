// Package pathname parses the gateway's request path into a package name,
// version, and filename.
package pathname

import (
	"net/url"
	"regexp"

	"github.com/a-h/pkggate/npm/apperror"
)

var pathRe = regexp.MustCompile(`^/((?:@[^/@]+/)?[^/@]+)(?:@([^/]+))?(/.*)?$`)

var slashRunRe = regexp.MustCompile(`/{2,}`)

// Pathname is a parsed request path: {package, version, filename}.
// Immutable once parsed.
type Pathname struct {
	Name     string
	Version  string
	Filename string
}

// Spec returns the canonical "<name>@<version>" package spec.
func (p Pathname) Spec() string {
	return p.Name + "@" + p.Version
}

// String rebuilds the request path this Pathname was (or would be) parsed
// from: "/" + name + "@" + version + filename.
func (p Pathname) String() string {
	return "/" + p.Name + "@" + p.Version + p.Filename
}

// Parse decodes rawPath (as taken from a request URL, still percent-encoded)
// and matches it against the package/version/filename grammar.
func Parse(rawPath string) (p Pathname, err error) {
	decoded, decErr := url.PathUnescape(rawPath)
	if decErr != nil {
		return Pathname{}, apperror.InvalidURLf("cannot decode path %q: %v", rawPath, decErr)
	}

	m := pathRe.FindStringSubmatch(decoded)
	if m == nil {
		return Pathname{}, apperror.InvalidURLf("cannot parse path %q", decoded)
	}

	p.Name = m[1]
	p.Version = m[2]
	if p.Version == "" {
		p.Version = "latest"
	}
	p.Filename = normalizeFilename(m[3])
	return p, nil
}

// normalizeFilename collapses runs of "/" into one. An empty filename stays
// empty (the "missing filename" case handled by the redirector).
func normalizeFilename(filename string) string {
	if filename == "" {
		return ""
	}
	return slashRunRe.ReplaceAllString(filename, "/")
}
