// Package tarfind streams a gzip+tar package archive and locates the entry
// matching a requested filename, applying the gateway's extension-probing
// precedence rules.
package tarfind

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/a-h/pkggate/npm/contenttype"
	"github.com/a-h/pkggate/npm/models"
)

// Search streams tarball (a gzip-compressed tar archive held fully in
// memory) and returns the entry best matching filename, plus every file and
// synthetic ancestor-directory entry visited along the way.
func Search(tarball []byte, filename string) (result models.SearchResult, err error) {
	result.MatchingEntries = make(map[string]models.Entry)

	if filename == "/" {
		root := models.Entry{Path: "/", Type: models.EntryDir}
		result.Found = &root
		result.MatchingEntries["/"] = root
	}

	gz, err := gzip.NewReader(bytes.NewReader(tarball))
	if err != nil {
		return result, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	jsProbe := filename + ".js"
	jsonProbe := filename + ".json"

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("failed to read tar entry: %w", err)
		}

		entryPath := stripTopLevelDir(hdr.Name)
		entryType := classify(hdr.Typeflag)

		if entryType != models.EntryFile || !strings.HasPrefix(entryPath, filename) {
			continue
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return result, fmt.Errorf("failed to read %q from tarball: %w", entryPath, err)
		}

		entry := models.Entry{
			Path:         entryPath,
			Type:         entryType,
			ContentType:  contenttype.Guess(entryPath),
			Integrity:    contenttype.Integrity(content),
			LastModified: hdr.ModTime.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"),
			Size:         hdr.Size,
			Content:      content,
		}

		insertAncestors(result.MatchingEntries, entryPath)

		switch {
		case result.Found == nil:
			result.Found = &entry
		case entryPath == filename:
			result.Found = &entry
		case entryPath == jsProbe && result.Found.Path == jsonProbe:
			result.Found = &entry
		}

		result.MatchingEntries[entryPath] = entry
	}

	return result, nil
}

// stripTopLevelDir drops a tar archive's single top-level directory segment
// (npm tarballs are always rooted at "package/") and re-prefixes the
// remainder with "/".
func stripTopLevelDir(name string) string {
	name = strings.TrimPrefix(name, "/")
	idx := strings.IndexByte(name, '/')
	if idx == -1 {
		return "/" + name
	}
	return "/" + name[idx+1:]
}

// insertAncestors inserts a synthetic directory entry for every proper
// ancestor of entryPath (excluding the root), matching the order the
// original archive walk would visit them, and never overwriting one already
// present.
func insertAncestors(matching map[string]models.Entry, entryPath string) {
	for dir := path.Dir(entryPath); dir != "/" && dir != "."; dir = path.Dir(dir) {
		if _, exists := matching[dir]; exists {
			continue
		}
		matching[dir] = models.Entry{Path: dir, Type: models.EntryDir}
	}
}

func classify(flag byte) models.EntryType {
	switch flag {
	case tar.TypeReg, tar.TypeRegA:
		return models.EntryFile
	case tar.TypeDir:
		return models.EntryDir
	default:
		return models.EntryOther
	}
}
