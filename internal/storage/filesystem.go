package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	ThumbnailDir = "thumbnails"
	UpscaledDir  = "thumbnails/upscaled"

	// URLPrefix is where the static root is mounted.
	URLPrefix = "/static/"
)

var ErrInvalidPath = errors.New("path escapes storage root")

type FileEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	URL   string `json:"url"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
}

func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Store keeps downloaded and upscaled thumbnails under a static root. Paths
// handed out are slash-separated and relative to that root.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

// EnsureLayout creates the directory tree. It is idempotent.
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{ThumbnailDir, UpscaledDir} {
		if err := os.MkdirAll(filepath.Join(s.root, filepath.FromSlash(dir)), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// resolve maps a relative path to an absolute one inside the root.
func (s *Store) resolve(rel string) (string, error) {
	absBase, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(filepath.Join(absBase, filepath.FromSlash(rel)))
	if err != nil {
		return "", err
	}
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	return absFull, nil
}

// ThumbnailPath is the relative path of a video's downloaded thumbnail.
func ThumbnailPath(videoID string) string {
	return path.Join(ThumbnailDir, videoID+".jpg")
}

// SaveThumbnail stores the original thumbnail for videoID.
func (s *Store) SaveThumbnail(videoID string, data []byte) (string, error) {
	rel := ThumbnailPath(videoID)
	if err := s.write(rel, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return "", err
	}
	return rel, nil
}

// ReadThumbnail returns the stored original thumbnail for videoID.
func (s *Store) ReadThumbnail(videoID string) ([]byte, error) {
	return s.Read(ThumbnailPath(videoID))
}

// SaveUpscaled stores an upscaled image under name, streamed by encode.
func (s *Store) SaveUpscaled(name string, encode func(io.Writer) error) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	rel := path.Join(UpscaledDir, name)
	if err := s.write(rel, encode); err != nil {
		return "", err
	}
	return rel, nil
}

func (s *Store) Read(rel string) ([]byte, error) {
	full, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

func (s *Store) Exists(rel string) bool {
	full, err := s.resolve(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// URLFor is the public URL of a relative path.
func URLFor(rel string) string {
	return URLPrefix + strings.TrimPrefix(filepath.ToSlash(rel), "/")
}

// DisplayPath is rel as seen from the data directory, e.g.
// "static/thumbnails/<id>.jpg".
func DisplayPath(rel string) string {
	return path.Join("static", filepath.ToSlash(rel))
}

// write streams into a temp file in the target directory and renames it into
// place, so readers never see a partial image.
func (s *Store) write(rel string, fill func(io.Writer) error) error {
	full, err := s.resolve(rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), full)
}

// ListDirectory lists the visible entries of a directory under the root.
func (s *Store) ListDirectory(relativePath string) ([]*FileEntry, error) {
	fullPath, err := s.resolve(relativePath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, err
	}

	result := []*FileEntry{}
	for _, entry := range entries {
		// hidden files include in-flight temp files
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		rel := path.Join(filepath.ToSlash(relativePath), entry.Name())
		fe := &FileEntry{
			Name:  entry.Name(),
			Path:  rel,
			IsDir: entry.IsDir(),
		}
		if !entry.IsDir() {
			fe.Size = info.Size()
			fe.URL = URLFor(rel)
		}
		result = append(result, fe)
	}
	return result, nil
}
