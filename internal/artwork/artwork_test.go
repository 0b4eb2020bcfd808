package artwork

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	return img
}

func TestFit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		sw, sh       int
		tw, th       int
		wantW, wantH int
	}{
		{"wide source into portrait", 1000, 500, 474, 666, 474, 237},
		{"tall source into portrait", 300, 1000, 474, 666, 199, 666},
		{"same ratio", 474, 666, 474, 666, 474, 666},
		{"tiny source upscales", 10, 10, 1920, 551, 551, 551},
		{"extreme wide", 5000, 1, 474, 666, 474, 1},
	}

	for _, tt := range tests {
		w, h := Fit(tt.sw, tt.sh, tt.tw, tt.th)
		assert.Equal(t, tt.wantW, w, tt.name)
		assert.Equal(t, tt.wantH, h, tt.name)
	}
}

func TestLetterboxCanvasSize(t *testing.T) {
	t.Parallel()

	sources := [][2]int{{100, 100}, {101, 37}, {37, 101}, {640, 480}, {1, 1}, {999, 998}}
	for _, size := range []image.Point{BoxartSize, BannerSize} {
		for _, src := range sources {
			canvas := Letterbox(solidImage(src[0], src[1]), size)
			assert.Equal(t, size.X, canvas.Bounds().Dx())
			assert.Equal(t, size.Y, canvas.Bounds().Dy())
		}
	}
}

func TestLetterboxPaddingIsTransparent(t *testing.T) {
	t.Parallel()

	// 2:1 source into a portrait canvas leaves transparent bands above and below.
	canvas := Letterbox(solidImage(200, 100), BoxartSize)

	_, h := Fit(200, 100, BoxartSize.X, BoxartSize.Y)
	offY := (BoxartSize.Y - h) / 2

	assert.Equal(t, uint8(0), canvas.NRGBAAt(BoxartSize.X/2, 0).A)
	assert.Equal(t, uint8(0), canvas.NRGBAAt(BoxartSize.X/2, BoxartSize.Y-1).A)
	assert.Equal(t, uint8(255), canvas.NRGBAAt(BoxartSize.X/2, offY+h/2).A)
	assert.Equal(t, uint8(0), canvas.NRGBAAt(BoxartSize.X/2, offY-1).A)
}

func TestNormalizeFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "cover.jpg")
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, solidImage(333, 517), nil))
	require.NoError(t, f.Close())

	dst := filepath.Join(dir, "out.png")
	require.NoError(t, New().NormalizeFile(src, dst, BannerSize))

	out, err := os.Open(dst)
	require.NoError(t, err)
	defer out.Close()
	img, err := png.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, BannerSize, img.Bounds().Size())
	_, ok := img.(*image.NRGBA)
	assert.True(t, ok, "expected an alpha capable png")

	_, err = os.Stat(dst + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestNormalizeFileUndecodable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(src, []byte("definitely not a png"), 0o644))

	dst := filepath.Join(dir, "out.png")
	err := New().NormalizeFile(src, dst, BoxartSize)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNormalizeFileMissingSource(t *testing.T) {
	t.Parallel()

	err := New().NormalizeFile(filepath.Join(t.TempDir(), "nope.png"), filepath.Join(t.TempDir(), "x.png"), BoxartSize)
	assert.True(t, errors.Is(err, ErrDecode))
}
