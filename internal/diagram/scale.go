package diagram

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// ErrBadScale indicates a non-positive or degenerate scale factor.
var ErrBadScale = errors.New("invalid scale factor")

// ScalePNG resizes a PNG by factor using Catmull-Rom resampling.
// A factor of 1 returns the input unchanged.
func ScalePNG(data []byte, factor float64) ([]byte, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("%w: %v", ErrBadScale, factor)
	}
	if factor == 1 {
		return data, nil
	}

	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}

	b := src.Bounds()
	w := int(math.Round(float64(b.Dx()) * factor))
	h := int(math.Round(float64(b.Dy()) * factor))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
