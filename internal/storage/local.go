package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const defaultLocalPublicURL = "/storage"

// LocalDisk stores objects as files below a root directory. It backs the
// "public disk" deployment where the API itself serves /storage/*.
type LocalDisk struct {
	root      string
	publicURL string
}

// NewLocalDisk constructs a LocalDisk rooted at root.
func NewLocalDisk(root, publicURL string) (*LocalDisk, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("local storage root is required")
	}
	if strings.TrimSpace(publicURL) == "" {
		publicURL = defaultLocalPublicURL
	}
	return &LocalDisk{root: root, publicURL: publicURL}, nil
}

// EnsureBucket creates the root directory.
func (l *LocalDisk) EnsureBucket(ctx context.Context) error {
	return os.MkdirAll(l.root, 0o755)
}

// Put writes an object, replacing any existing file under the same key.
func (l *LocalDisk) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	dst := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Get opens an object for reading.
func (l *LocalDisk) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(l.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return file, nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (l *LocalDisk) Delete(ctx context.Context, key string) error {
	err := os.Remove(l.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// URL returns the public URL of an object.
func (l *LocalDisk) URL(key string) string {
	return joinURL(l.publicURL, key)
}

// Bucket returns the root directory.
func (l *LocalDisk) Bucket() string {
	return l.root
}

// Root returns the directory objects are stored in, for static serving.
func (l *LocalDisk) Root() string {
	return l.root
}

// PublicURL returns the base URL objects are served from.
func (l *LocalDisk) PublicURL() string {
	return l.publicURL
}

// path maps a key onto the filesystem, never escaping root.
func (l *LocalDisk) path(key string) string {
	clean := path.Clean("/" + key)
	return filepath.Join(l.root, filepath.FromSlash(clean))
}
