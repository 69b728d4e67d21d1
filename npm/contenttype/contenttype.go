// Package contenttype computes mime types, subresource integrity, and weak
// ETags for tar entries served by the gateway.
package contenttype

import (
	"crypto/sha1"
	"encoding/base64"
	"mime"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/a-h/pkggate/npm/sri"
)

var plainTextRe = regexp.MustCompile(`(?i)\.(?:[a-z]*rc|git[a-z]*|[a-z]*ignore|lock)$`)

// Guess returns the mime type for path: plain-text for dotfile-like names
// (.npmrc, .gitignore, .npmignore, yarn.lock, ...), mime-guessed from the
// extension otherwise, defaulting to text/plain.
func Guess(path string) string {
	base := filepath.Base(path)
	if plainTextRe.MatchString(base) {
		return "text/plain"
	}
	if ct := mime.TypeByExtension(filepath.Ext(base)); ct != "" {
		// mime.TypeByExtension includes a charset parameter for some types;
		// keep only the type/subtype, matching the upstream registry's bare
		// mime strings.
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = strings.TrimSpace(ct[:i])
		}
		// Go's table (and some system mime.types files) name JavaScript
		// text/javascript; the gateway's canonical JavaScript type is
		// application/javascript.
		if ct == "text/javascript" {
			ct = "application/javascript"
		}
		return ct
	}
	return "text/plain"
}

// ResponseContentType is the header value to serve for an internal mime
// type: application/javascript gets an explicit utf-8 charset, everything
// else is used as-is.
func ResponseContentType(internalMime string) string {
	if internalMime == "application/javascript" {
		return "application/javascript; charset=utf-8"
	}
	return internalMime
}

// Integrity returns the subresource-integrity string "sha384-<base64>" for
// content.
func Integrity(content []byte) string {
	s, err := sri.New(sri.SHA384)
	if err != nil {
		// sri.SHA384 is always supported; this cannot happen.
		panic(err)
	}
	_, _ = s.Write(content)
	return s.String()
}

// ETag returns a weak validator W/"<hexlen>-<b64sha1-27>": hexlen is the
// content length in lowercase hex, and b64sha1-27 is the first 27 base64
// characters of the SHA-1 digest of content.
func ETag(content []byte) string {
	hexLen := strconv.FormatInt(int64(len(content)), 16)
	sum := sha1.Sum(content)
	b64 := base64.StdEncoding.EncodeToString(sum[:])
	if len(b64) > 27 {
		b64 = b64[:27]
	}
	return `W/"` + hexLen + "-" + b64 + `"`
}
