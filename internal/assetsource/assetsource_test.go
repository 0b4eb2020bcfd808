package assetsource

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLocal(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "box.png")
	require.NoError(t, os.WriteFile(p, []byte("png"), 0o644))

	r := NewResolver("", 0)
	src, err := r.Resolve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, p, src.Path)
	assert.False(t, src.Downloaded)
	require.NoError(t, src.Close())
	assert.FileExists(t, p)

	src, err = r.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, src)

	_, err = r.Resolve(context.Background(), filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, ErrMissing)
	_, err = r.Resolve(context.Background(), dir)
	assert.ErrorIs(t, err, ErrMissing)
}

func TestResolveRemote(t *testing.T) {
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder("GET", "https://img.example.com/box.JPG",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "agent", req.Header.Get("User-Agent"))
			assert.Equal(t, "https://duckduckgo.com/", req.Header.Get("Referer"))
			return httpmock.NewStringResponse(http.StatusOK, "jpeg-bytes"), nil
		})
	mt.RegisterResponder("GET", "https://img.example.com/big.png", httpmock.NewStringResponder(http.StatusOK, "0123456789"))
	mt.RegisterResponder("GET", "https://img.example.com/gone.png", httpmock.NewStringResponder(http.StatusNotFound, ""))

	r := &Resolver{
		Client:    &http.Client{Transport: mt},
		UserAgent: "agent",
		Referer:   "https://duckduckgo.com/",
		TempDir:   t.TempDir(),
	}
	src, err := r.Resolve(context.Background(), "https://img.example.com/box.JPG?size=large")
	require.NoError(t, err)
	assert.True(t, src.Downloaded)
	assert.Equal(t, ".jpg", filepath.Ext(src.Path))
	data, err := os.ReadFile(src.Path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	require.NoError(t, src.Close())
	assert.NoFileExists(t, src.Path)

	_, err = r.Resolve(context.Background(), "https://img.example.com/gone.png")
	assert.Error(t, err)

	r.MaxSize = 4
	_, err = r.Resolve(context.Background(), "https://img.example.com/big.png")
	assert.Error(t, err)
	entries, err := os.ReadDir(r.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("http://a.b/c.png"))
	assert.False(t, IsRemote("/tmp/c.png"))
	assert.False(t, IsRemote("ftp://a.b/c.png"))
}
