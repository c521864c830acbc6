// Package texture prepares CPU-side images for upload: RGBA conversion, resampling
// and mip chains.
package texture

import (
	"fmt"
	"image"
	"runtime"

	"golang.org/x/image/draw"
)

// MaxMipLevels caps generated chains
const MaxMipLevels = 10

// ToRGBA returns img as tightly packed RGBA with its origin at 0,0
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// Resample scales img to w x h with bilinear filtering
func Resample(img image.Image, w, h int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return ToRGBA(img)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Levels returns the length of a full mip chain for a w x h image, capped at max
func Levels(w, h, max int) int {
	n := 1
	for (w > 1 || h > 1) && n < max {
		w, h = half(w), half(h)
		n++
	}
	return n
}

// MipChain returns img followed by successively halved copies, down to 1x1 or
// maxLevels entries.
func MipChain(img image.Image, maxLevels int) []*image.RGBA {
	base := ToRGBA(img)
	w, h := base.Rect.Dx(), base.Rect.Dy()
	n := Levels(w, h, maxLevels)
	chain := make([]*image.RGBA, 0, n)
	chain = append(chain, base)
	for len(chain) < n {
		w, h = half(w), half(h)
		chain = append(chain, Resample(chain[len(chain)-1], w, h))
	}
	return chain
}

// CubeFaces resamples every face to the size of the first and builds a mip
// chain per face, spreading the faces over a worker pool. Faces must be square after resampling, so the first face's
// shorter side is used.
func CubeFaces(faces []image.Image, maxLevels int) ([][]*image.RGBA, int, error) {
	if len(faces) == 0 || len(faces)%6 != 0 {
		return nil, 0, fmt.Errorf("cube faces: got %d images, want a multiple of 6", len(faces))
	}
	for i, f := range faces {
		if f == nil {
			return nil, 0, fmt.Errorf("cube faces: face %d has no image", i)
		}
	}
	b := faces[0].Bounds()
	size := min(b.Dx(), b.Dy())
	if size <= 0 {
		return nil, 0, fmt.Errorf("cube faces: empty first face")
	}
	pool := NewPool(min(runtime.NumCPU(), len(faces)), len(faces))
	defer pool.Shutdown()
	results := make(chan Result, len(faces))
	for i, f := range faces {
		pool.SubmitBlocking(Job{Index: i, Image: f, Size: size, Levels: maxLevels, Result: results})
	}
	out := make([][]*image.RGBA, len(faces))
	for range faces {
		r := <-results
		out[r.Index] = r.Chain
	}
	return out, size, nil
}

func half(v int) int {
	if v > 1 {
		return v / 2
	}
	return 1
}
