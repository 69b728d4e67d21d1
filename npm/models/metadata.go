package models

import "encoding/json"

// Metadata is the tagged directory/file shape returned by the "?meta"
// response mode: a directory carries its children, a file carries its
// content-type/integrity/size. It serializes as a JSON object with a
// "type" discriminator and camelCase keys.
type Metadata struct {
	Type         string
	Path         string
	Files        []Metadata
	ContentType  string
	Integrity    string
	LastModified string
	Size         int64
}

func NewDirectoryMetadata(path string, files []Metadata) Metadata {
	if files == nil {
		files = []Metadata{}
	}
	return Metadata{Type: "directory", Path: path, Files: files}
}

func NewFileMetadata(path, contentType, integrity, lastModified string, size int64) Metadata {
	return Metadata{
		Type:         "file",
		Path:         path,
		ContentType:  contentType,
		Integrity:    integrity,
		LastModified: lastModified,
		Size:         size,
	}
}

type directoryJSON struct {
	Type  string     `json:"type"`
	Path  string     `json:"path"`
	Files []Metadata `json:"files"`
}

type fileJSON struct {
	Type         string `json:"type"`
	Path         string `json:"path"`
	ContentType  string `json:"contentType"`
	Integrity    string `json:"integrity"`
	LastModified string `json:"lastModified"`
	Size         int64  `json:"size"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	if m.Type == "directory" {
		files := m.Files
		if files == nil {
			files = []Metadata{}
		}
		return json.Marshal(directoryJSON{Type: m.Type, Path: m.Path, Files: files})
	}
	return json.Marshal(fileJSON{
		Type:         m.Type,
		Path:         m.Path,
		ContentType:  m.ContentType,
		Integrity:    m.Integrity,
		LastModified: m.LastModified,
		Size:         m.Size,
	})
}
