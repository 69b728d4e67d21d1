// Package redirect computes the gateway's 302 responses: canonicalizing an
// implicit/missing filename, and correcting a wrong filename or directory
// target once the tar entry has been located.
package redirect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/a-h/pkggate/npm/apperror"
	"github.com/a-h/pkggate/npm/models"
)

// Redirect describes a 302 response the caller should emit.
type Redirect struct {
	Location     string
	CacheControl string
	CacheTag     string
}

var leadingDotSlashRe = regexp.MustCompile(`^[./]*`)

// PackageURL builds the canonical "/<name>@<version><filename>[?query]" URL.
func PackageURL(name, version, filename, rawQuery string) string {
	u := "/" + name + "@" + version + filename
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

// MissingFilename resolves the default filename for a request whose URL
// omitted one, per the priority: an explicit "?module" query prefers a
// non-empty "module" or "jsnext:main" config value; otherwise an ESM "type"
// with a "main" entry, or a "main" ending ".mjs", or a "?main=<key>"
// override, or finally the unpkg/browser/main/"/index.js" fallback chain.
func MissingFilename(cfg models.PackageConfig, moduleQuery bool, mainQueryKey string) (filename string, err error) {
	if moduleQuery {
		module, _ := cfg.GetStr("module")
		jsnext, _ := cfg.GetStr("jsnext:main")
		if module != "" {
			return normalizeFilename(module), nil
		}
		if jsnext != "" {
			return normalizeFilename(jsnext), nil
		}
	}

	if ty, ok := cfg.GetStr("type"); ok && ty == "module" {
		if main, ok := cfg.GetStr("main"); ok {
			if main == "" {
				return "/index.js", nil
			}
			return normalizeFilename(main), nil
		}
	}

	if main, ok := cfg.GetStr("main"); ok && strings.HasSuffix(main, ".mjs") {
		return normalizeFilename(main), nil
	}

	if mainQueryKey != "" {
		if v, ok := cfg.GetStr(mainQueryKey); ok {
			return normalizeFilename(v), nil
		}
	}

	for _, key := range []string{"unpkg", "browser", "main"} {
		if v, ok := cfg.GetStr(key); ok {
			return normalizeFilename(v), nil
		}
	}

	return "/index.js", nil
}

func normalizeFilename(filename string) string {
	return leadingDotSlashRe.ReplaceAllString(filename, "/")
}

// FilenameRedirect builds the 302 for a missing-filename resolution.
func FilenameRedirect(name, version, filename, rawQuery string) Redirect {
	return Redirect{
		Location:     PackageURL(name, version, filename, rawQuery),
		CacheControl: "public, s-maxage=600, max-age=60",
		CacheTag:     "redirect, filename-redirect",
	}
}

// ResolveEntry inspects a tar search result against the requested filename
// and returns either the entry to serve, a redirect, or a typed not-found
// error, per the file/index correction rules.
func ResolveEntry(name, version, filename, rawQuery string, result models.SearchResult) (entry *models.Entry, redir *Redirect, err error) {
	found := result.Found
	if found == nil {
		return nil, nil, apperror.New(apperror.NotFoundFileInPackage, fmt.Sprintf("%s not found in %s@%s", filename, name, version))
	}

	if found.Type == models.EntryFile && found.Path != filename {
		r := Redirect{
			Location:     PackageURL(name, version, found.Path, rawQuery),
			CacheControl: "public, max-age=31536000",
			CacheTag:     "redirect, file-redirect",
		}
		return nil, &r, nil
	}

	if found.Type == models.EntryDir {
		indexPath := strings.TrimSuffix(filename, "/") + "/index.js"
		indexEntry, ok := result.MatchingEntries[indexPath]
		if !ok {
			jsonPath := strings.TrimSuffix(filename, "/") + "/index.json"
			indexEntry, ok = result.MatchingEntries[jsonPath]
		}
		if !ok || indexEntry.Type != models.EntryFile {
			return nil, nil, apperror.New(apperror.NotFoundIndexFileInPackage, fmt.Sprintf("no index file in %s@%s%s", name, version, filename))
		}
		r := Redirect{
			Location:     PackageURL(name, version, indexEntry.Path, rawQuery),
			CacheControl: "public, max-age=31536000",
			CacheTag:     "redirect, index-redirect",
		}
		return nil, &r, nil
	}

	return found, nil, nil
}
