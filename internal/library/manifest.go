// Package library imports chapter manifests from a watched directory into
// the bookshelf.
//
// A manifest is a JSON file describing one document:
//
//	{
//	  "title": "The Tempest",
//	  "author": "William Shakespeare",
//	  "file": "tempest.pdf",
//	  "total_pages": 120,
//	  "chapters": [{"title": "Act I", "page": 1, "music_url": "https://..."}]
//	}
//
// Relative file paths resolve against the manifest's directory.
package library

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/pagetune/pagetune-server/internal/domain"
	"github.com/pagetune/pagetune-server/internal/id"
)

// maxManifestSize bounds how much of a manifest file is read.
const maxManifestSize = 1 << 20

// Manifest is the on-disk description of a document.
type Manifest struct {
	// ID pins the document ID. When empty the ID derives from the
	// manifest's path.
	ID         string           `json:"id,omitempty"`
	Title      string           `json:"title"`
	Author     string           `json:"author,omitempty"`
	File       string           `json:"file"`
	Kind       string           `json:"kind,omitempty"`
	TotalPages int              `json:"total_pages,omitempty"`
	Chapters   []domain.Chapter `json:"chapters"`
}

// ParseManifest decodes and checks a manifest.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(io.LimitReader(r, maxManifestSize)).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return nil, fmt.Errorf("manifest has no title")
	}
	if _, err := m.kind(); err != nil {
		return nil, err
	}
	if m.TotalPages < 0 {
		return nil, fmt.Errorf("total_pages must not be negative")
	}
	for i, ch := range m.Chapters {
		if ch.Page < 0 {
			return nil, fmt.Errorf("chapter %d: page must not be negative", i)
		}
	}
	return &m, nil
}

func (m *Manifest) kind() (domain.DocumentKind, error) {
	if m.Kind != "" {
		kind := domain.DocumentKind(strings.ToLower(m.Kind))
		if !kind.Valid() {
			return "", fmt.Errorf("unsupported kind %q", m.Kind)
		}
		return kind, nil
	}
	kind, ok := domain.KindFromFilename(m.File)
	if !ok {
		return "", fmt.Errorf("cannot tell document kind from file %q", m.File)
	}
	return kind, nil
}

// DocumentID returns the ID of the document the manifest at path describes.
func (m *Manifest) DocumentID(path string) string {
	if m.ID != "" {
		return m.ID
	}
	return DocumentIDForPath(path)
}

// DocumentIDForPath returns the derived ID for a manifest without a pinned ID.
func DocumentIDForPath(path string) string {
	return id.FromKey(id.PrefixDocument, filepath.Clean(path))
}

// ToDocument builds the document the manifest at path describes. Chapters
// are sorted by page.
func (m *Manifest) ToDocument(path string, now time.Time) (*domain.Document, error) {
	kind, err := m.kind()
	if err != nil {
		return nil, err
	}

	chapters := append([]domain.Chapter{}, m.Chapters...)
	domain.SortChapters(chapters)

	return &domain.Document{
		ID:         m.DocumentID(path),
		Title:      m.Title,
		Author:     strings.TrimSpace(m.Author),
		Kind:       kind,
		FileURL:    resolveFileURL(m.File, filepath.Dir(path)),
		TotalPages: m.TotalPages,
		Chapters:   chapters,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// resolveFileURL leaves URLs alone and turns paths into file:// URLs.
func resolveFileURL(file, dir string) string {
	if file == "" {
		return ""
	}
	if u, err := url.Parse(file); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return file
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(dir, file)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(file)}).String()
}
