// Package metadata builds the directory-tree or single-file JSON bodies
// served by the "?meta" response mode.
package metadata

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/a-h/pkggate/npm/apperror"
	"github.com/a-h/pkggate/npm/contenttype"
	"github.com/a-h/pkggate/npm/models"
)

// StripTrailingSlash normalizes a directory-metadata filename: a trailing
// "/" is dropped, and an entirely empty filename becomes the root "/".
func StripTrailingSlash(filename string) string {
	trimmed := strings.TrimSuffix(filename, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// Directory streams tarball and builds the Metadata tree rooted at
// filename (already normalized by StripTrailingSlash), covering every file
// and ancestor directory whose path falls under filename.
func Directory(tarball []byte, filename string) (models.Metadata, error) {
	entries, err := collectEntries(tarball, filename)
	if err != nil {
		return models.Metadata{}, err
	}

	root, ok := entries[filename]
	if !ok {
		return models.Metadata{}, apperror.New(apperror.NotFoundFileInPackage, fmt.Sprintf("%s not found", filename))
	}
	return buildTree(root, filename, entries), nil
}

func buildTree(entry models.Metadata, entryPath string, entries map[string]models.Metadata) models.Metadata {
	if entry.Type != "directory" {
		return entry
	}
	var files []models.Metadata
	for childPath, child := range entries {
		if childPath == entryPath {
			continue
		}
		if path.Dir(childPath) != entryPath {
			continue
		}
		files = append(files, buildTree(child, childPath, entries))
	}
	return models.NewDirectoryMetadata(entryPath, files)
}

// collectEntries streams tarball, inserting a Metadata.Directory for
// filename itself plus every ancestor directory under filename, and a
// Metadata.File for every regular file under filename.
func collectEntries(tarball []byte, filename string) (map[string]models.Metadata, error) {
	entries := map[string]models.Metadata{
		filename: models.NewDirectoryMetadata(filename, nil),
	}

	gz, err := gzip.NewReader(bytes.NewReader(tarball))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}

		entryPath := stripTopLevelDir(hdr.Name)

		for dir := path.Dir(entryPath); dir != "/" && dir != "."; dir = path.Dir(dir) {
			if !strings.HasPrefix(dir, filename) {
				break
			}
			if _, exists := entries[dir]; !exists {
				entries[dir] = models.NewDirectoryMetadata(dir, nil)
			}
		}

		if hdr.Typeflag != tar.TypeReg || !strings.HasPrefix(entryPath, filename) {
			continue
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q from tarball: %w", entryPath, err)
		}

		entries[entryPath] = models.NewFileMetadata(
			entryPath,
			contenttype.Guess(entryPath),
			contenttype.Integrity(content),
			hdr.ModTime.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"),
			hdr.Size,
		)
	}

	return entries, nil
}

// File streams tarball and returns metadata for the single entry whose path
// equals filename exactly (no extension probing).
func File(tarball []byte, filename string) (models.Metadata, error) {
	gz, err := gzip.NewReader(bytes.NewReader(tarball))
	if err != nil {
		return models.Metadata{}, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.Metadata{}, fmt.Errorf("failed to read tar entry: %w", err)
		}

		entryPath := stripTopLevelDir(hdr.Name)
		if hdr.Typeflag != tar.TypeReg || entryPath != filename {
			continue
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return models.Metadata{}, fmt.Errorf("failed to read %q from tarball: %w", entryPath, err)
		}

		return models.NewFileMetadata(
			entryPath,
			contenttype.Guess(entryPath),
			contenttype.Integrity(content),
			hdr.ModTime.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"),
			hdr.Size,
		), nil
	}

	return models.Metadata{}, apperror.New(apperror.NotFoundFileInPackage, fmt.Sprintf("%s not found", filename))
}

func stripTopLevelDir(name string) string {
	name = strings.TrimPrefix(name, "/")
	idx := strings.IndexByte(name, '/')
	if idx == -1 {
		return "/" + name
	}
	return "/" + name[idx+1:]
}
