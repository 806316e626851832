// Package media stores uploaded showcase images on local disk.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"masjid/internal/log"
)

// URLPrefix is where the HTTP server exposes the upload directory.
const URLPrefix = "/uploads/"

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Upload describes a stored file.
type Upload struct {
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
}

// Image is one entry of the showcase listing.
type Image struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Store struct {
	dir      string
	maxBytes int64
}

func NewStore(dir string, maxBytes int64) *Store {
	return &Store{dir: dir, maxBytes: maxBytes}
}

// Dir returns the directory files are written to.
func (s *Store) Dir() string { return s.dir }

// MaxBytes is the largest accepted file.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save writes r under a random name keeping the original extension.
func (s *Store) Save(ctx context.Context, originalName string, r io.Reader) (Upload, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !imageExtensions[ext] {
		return Upload{}, ErrUnsupportedType
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return Upload{}, fmt.Errorf("create upload directory: %w", err)
	}

	name := uuid.NewString() + ext
	final := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return Upload{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, s.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Upload{}, fmt.Errorf("write upload: %w", err)
	}
	if n == 0 {
		return Upload{}, ErrEmptyFile
	}
	if n > s.maxBytes {
		return Upload{}, ErrTooLarge
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return Upload{}, fmt.Errorf("store upload: %w", err)
	}

	slog.InfoContext(ctx, "File uploaded",
		log.FieldComponent, log.ComponentMedia,
		log.FieldOperation, log.OpUpload,
		log.FieldFile, name,
		log.FieldBytes, n)
	return Upload{FileName: name, FilePath: URLPrefix + name}, nil
}

// List returns the stored images sorted by name. A missing directory is an
// empty listing.
func (s *Store) List(ctx context.Context) ([]Image, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Image{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read upload directory: %w", err)
	}
	out := make([]Image, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		out = append(out, Image{Name: e.Name(), URL: URLPrefix + e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
