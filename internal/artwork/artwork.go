// Package artwork letterboxes source images into the fixed canvases the
// device expects for box art and banners.
package artwork

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	// BoxartSize is the canvas used for portrait cover art.
	BoxartSize = image.Pt(474, 666)
	// BannerSize is the canvas used for the wide game banner.
	BannerSize = image.Pt(1920, 551)
)

// ErrDecode is returned when the source cannot be read as an image.
var ErrDecode = errors.New("decode image")

// ErrEncode is returned when the canvas cannot be written.
var ErrEncode = errors.New("encode image")

// Normalizer writes letterboxed PNG canvases.
type Normalizer interface {
	NormalizeFile(src, dst string, size image.Point) error
}

type pngNormalizer struct{}

// New returns the default normalizer.
func New() Normalizer {
	return pngNormalizer{}
}

// NormalizeFile decodes src, letterboxes it into size and writes a PNG to dst.
// dst is written through a temporary sibling so a failed encode never leaves a
// truncated file behind.
func (pngNormalizer) NormalizeFile(src, dst string, size image.Point) error {
	img, err := decodeFile(src)
	if err != nil {
		return err
	}
	canvas := Letterbox(img, size)

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrEncode, dst, err)
	}
	if err := png.Encode(out, canvas); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w %s: %w", ErrEncode, dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w %s: %w", ErrEncode, dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w %s: %w", ErrEncode, dst, err)
	}
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrDecode, filepath.Base(path), err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrDecode, filepath.Base(path), err)
	}
	return img, nil
}

// Letterbox scales img to fit inside size, keeping its aspect ratio, and
// centres it on a fully transparent canvas of exactly size. Any odd pixel of
// padding ends up on the bottom/right.
func Letterbox(img image.Image, size image.Point) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	b := img.Bounds()
	if b.Empty() || size.X <= 0 || size.Y <= 0 {
		return canvas
	}

	w, h := Fit(b.Dx(), b.Dy(), size.X, size.Y)
	offX := (size.X - w) / 2
	offY := (size.Y - h) / 2
	dst := image.Rect(offX, offY, offX+w, offY+h)
	xdraw.CatmullRom.Scale(canvas, dst, img, b, xdraw.Over, nil)
	return canvas
}

// Fit returns the largest w x h with the source aspect ratio that fits inside
// maxW x maxH. The constrained side is filled exactly; the other side is
// truncated, never below one pixel.
func Fit(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}
	var w, h int
	// srcW/srcH > maxW/maxH without float rounding
	if srcW*maxH > maxW*srcH {
		w = maxW
		h = maxW * srcH / srcW
	} else {
		h = maxH
		w = maxH * srcW / srcH
	}
	return max(1, min(w, maxW)), max(1, min(h, maxH))
}
