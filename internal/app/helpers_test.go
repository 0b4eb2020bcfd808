package app

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/xxxsen/eversd/internal/config"
	"github.com/xxxsen/eversd/internal/library"

	"github.com/stretchr/testify/require"
)

func useConfig(t *testing.T, mutate func(cfg *config.Config)) {
	t.Helper()
	prev := Config()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	SetConfig(cfg)
	t.Cleanup(func() { SetConfig(prev) })
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeTestImage(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 90, B: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// createEntry adds an entry with a rom holding content and, when withBoxart
// is set, generated box art.
func createEntry(t *testing.T, repo *library.Repository, title, romName, content string, withBoxart bool) string {
	t.Helper()
	src := t.TempDir()
	rom := filepath.Join(src, romName)
	writeTestFile(t, rom, content)
	req := &library.CreateRequest{Title: title, Platform: "SNES", RomPath: rom}
	if withBoxart {
		req.BoxartPath = filepath.Join(src, "box.png")
		writeTestImage(t, req.BoxartPath, 120, 160)
	}
	res, err := repo.Create(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.Partial())
	return res.BaseName
}
