// Package catalog lists plant photos from a synced folder.
package catalog

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/vthunder/plantbud/internal/types"
)

// DefaultMaxBytes is the largest image sent to the reasoning service
const DefaultMaxBytes = 10 * 1024 * 1024

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
	".gif":  "image/gif",
}

// ErrTooLarge is returned by Open for images over the size limit
type ErrTooLarge struct {
	ID    string
	Size  int64
	Limit int64
}

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("image %s is %d bytes, limit %d", e.ID, e.Size, e.Limit)
}

// Folder is a catalog backed by one directory
type Folder struct {
	fs       afero.Fs
	dir      string
	maxBytes int64
}

// NewFolder creates a folder catalog. maxBytes <= 0 uses DefaultMaxBytes.
func NewFolder(fs afero.Fs, dir string, maxBytes int64) *Folder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Folder{fs: fs, dir: dir, maxBytes: maxBytes}
}

// NewOsFolder creates a folder catalog on the real filesystem
func NewOsFolder(dir string, maxBytes int64) *Folder {
	return NewFolder(afero.NewOsFs(), dir, maxBytes)
}

// MimeType returns the image MIME type for name, or "" if it is not an image
func MimeType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := imageTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); strings.HasPrefix(t, "image/") {
		return t
	}
	return ""
}

// ListAvailable returns image files in the folder. Hidden and empty files
// are skipped. Order follows the directory listing.
func (f *Folder) ListAvailable(ctx context.Context) ([]types.WorkItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(f.fs, f.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.dir, err)
	}

	items := []types.WorkItem{}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || e.Size() == 0 {
			continue
		}
		mt := MimeType(e.Name())
		if mt == "" {
			continue
		}
		items = append(items, types.WorkItem{
			ID:        e.Name(),
			CreatedAt: e.ModTime(),
			SizeBytes: e.Size(),
			MimeType:  mt,
		})
	}
	return items, nil
}

// Open reads the image bytes for item
func (f *Folder) Open(ctx context.Context, item types.WorkItem) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(f.dir, filepath.Base(item.ID))
	info, err := f.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > f.maxBytes {
		return nil, &ErrTooLarge{ID: item.ID, Size: info.Size(), Limit: f.maxBytes}
	}
	return afero.ReadFile(f.fs, path)
}
