// Package fsbrowser lists workspace directories for the thread-start picker.
// Every listing is confined to a fixed base directory.
package fsbrowser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

var (
	// ErrEscapesBase means the requested path resolves outside the base
	// directory.
	ErrEscapesBase = errors.New("path escapes the base path")
	// ErrNotExist means the requested path does not exist.
	ErrNotExist = errors.New("path does not exist")
)

// Entry is one listed filesystem element.
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Dir     bool      `json:"dir"`
	Size    int64     `json:"size,omitempty"`
	ModTime time.Time `json:"modTime"`
}

// Listing is the result of one directory listing.
type Listing struct {
	Path    string   `json:"path"`
	Entries []*Entry `json:"entries"`
}

// Browser lists directories under a fixed base path.
type Browser struct {
	base    string
	service afs.Service
}

// New creates a browser rooted at basePath.
func New(basePath string) (*Browser, error) {
	resolved, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path %v: %w", basePath, err)
	}
	return &Browser{base: resolved, service: afs.New()}, nil
}

// Base returns the resolved base directory.
func (b *Browser) Base() string {
	return b.base
}

// List returns the content of the directory at path, directories first, each
// group alphabetical. An empty path lists the base directory; relative paths
// are joined onto it; anything resolving outside it is rejected.
func (b *Browser) List(ctx context.Context, path string) (*Listing, error) {
	resolved, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	exists, err := b.service.Exists(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to check %v: %w", resolved, err)
	}
	if !exists {
		return nil, fmt.Errorf("%v: %w", resolved, ErrNotExist)
	}
	objects, err := b.service.List(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to list %v: %w", resolved, err)
	}
	result := &Listing{Path: resolved, Entries: []*Entry{}}
	for _, object := range objects {
		location := url.Path(object.URL())
		// afs lists the directory itself alongside its children.
		if location == resolved {
			continue
		}
		entry := &Entry{
			Name:    object.Name(),
			Path:    location,
			Dir:     object.IsDir(),
			ModTime: object.ModTime(),
		}
		if !object.IsDir() {
			entry.Size = object.Size()
		}
		result.Entries = append(result.Entries, entry)
	}
	sort.Slice(result.Entries, func(i, j int) bool {
		if result.Entries[i].Dir != result.Entries[j].Dir {
			return result.Entries[i].Dir
		}
		return result.Entries[i].Name < result.Entries[j].Name
	})
	return result, nil
}

func (b *Browser) resolve(path string) (string, error) {
	candidate := path
	if candidate == "" {
		candidate = b.base
	}
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(b.base, candidate)
	}
	candidate = filepath.Clean(candidate)
	if candidate != b.base && !strings.HasPrefix(candidate, b.base+string(filepath.Separator)) {
		return "", fmt.Errorf("%v: %w", path, ErrEscapesBase)
	}
	return candidate, nil
}
