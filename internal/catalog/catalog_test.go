package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vthunder/plantbud/internal/types"
)

func setup(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/photos/sub", 0755))
	files := map[string][]byte{
		"/photos/b.jpg":       []byte("jpeg-bytes"),
		"/photos/A.PNG":       []byte("png-bytes"),
		"/photos/notes.txt":   []byte("not an image"),
		"/photos/.hidden.jpg": []byte("x"),
		"/photos/empty.jpg":   {},
		"/photos/big.webp":    make([]byte, 64),
	}
	for path, data := range files {
		require.NoError(t, afero.WriteFile(fs, path, data, 0644))
	}
	return fs
}

func TestListAvailable(t *testing.T) {
	f := NewFolder(setup(t), "/photos", 32)
	items, err := f.ListAvailable(context.Background())
	require.NoError(t, err)

	got := map[string]string{}
	for _, it := range items {
		got[it.ID] = it.MimeType
	}
	assert.Equal(t, map[string]string{
		"b.jpg":    "image/jpeg",
		"A.PNG":    "image/png",
		"big.webp": "image/webp",
	}, got)
}

func TestListAvailable_MissingFolder(t *testing.T) {
	f := NewFolder(afero.NewMemMapFs(), "/nope", 0)
	_, err := f.ListAvailable(context.Background())
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	f := NewFolder(setup(t), "/photos", 32)
	ctx := context.Background()

	data, err := f.Open(ctx, types.WorkItem{ID: "b.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	_, err = f.Open(ctx, types.WorkItem{ID: "big.webp"})
	var tooLarge *ErrTooLarge
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, int64(64), tooLarge.Size)
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "image/jpeg", MimeType("x.JPEG"))
	assert.Equal(t, "", MimeType("x.pdf"))
	assert.Equal(t, "", MimeType("noext"))
}
