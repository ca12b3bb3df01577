package signature

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"
)

// RemoveOptions tunes the background-removal passes.
type RemoveOptions struct {
	// SampleInset is how many pixels in from each border the background
	// color samples are taken.
	SampleInset int

	// ColorTolerance is the maximum Euclidean RGB distance from the sampled
	// background color for a pixel to count as background.
	ColorTolerance float64

	// BrightnessThreshold marks near-white pixels as background regardless
	// of the sampled color. Range 0-255.
	BrightnessThreshold float64

	// SmoothPasses is how many neighbor-smoothing passes run over the mask.
	SmoothPasses int

	// MaxDimension downscales larger inputs before processing. Zero keeps
	// the natural size.
	MaxDimension int
}

// DefaultRemoveOptions returns the tuning used for typical phone-camera or
// scanner captures of ink on paper.
func DefaultRemoveOptions() RemoveOptions {
	return RemoveOptions{
		SampleInset:         2,
		ColorTolerance:      48,
		BrightnessThreshold: 235,
		SmoothPasses:        1,
		MaxDimension:        1600,
	}
}

// RemoveBackground makes the background of a signature capture transparent.
//
// Three passes run in order: the border of the image is sampled to estimate
// the paper color, every pixel near that color or above the brightness
// threshold has its alpha cleared, and a final neighborhood pass clears
// isolated leftover pixels so stroke edges stay clean.
func RemoveBackground(src image.Image, opts RemoveOptions) *image.NRGBA {
	img := toNRGBA(src, opts.MaxDimension)
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	if w == 0 || h == 0 {
		return img
	}

	bgR, bgG, bgB := sampleBorderColor(img, opts.SampleInset)

	// Pass 2: clear background-colored and near-white pixels.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			r := float64(img.Pix[i])
			g := float64(img.Pix[i+1])
			b := float64(img.Pix[i+2])

			dr := r - bgR
			dg := g - bgG
			db := b - bgB
			dist := math.Sqrt(dr*dr + dg*dg + db*db)
			luma := 0.299*r + 0.587*g + 0.114*b

			if dist <= opts.ColorTolerance || luma >= opts.BrightnessThreshold {
				img.Pix[i+3] = 0
			}
		}
	}

	// Pass 3: neighbor smoothing.
	for p := 0; p < opts.SmoothPasses; p++ {
		smoothEdges(img)
	}

	return img
}

// sampleBorderColor averages the pixels along all four borders, inset by a
// few pixels to dodge compression artifacts at the very edge.
func sampleBorderColor(img *image.NRGBA, inset int) (r, g, b float64) {
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	if inset >= w/2 || inset >= h/2 {
		inset = 0
	}

	var sumR, sumG, sumB, n float64
	sample := func(x, y int) {
		i := img.PixOffset(x, y)
		sumR += float64(img.Pix[i])
		sumG += float64(img.Pix[i+1])
		sumB += float64(img.Pix[i+2])
		n++
	}
	for x := inset; x < w-inset; x++ {
		sample(x, inset)
		sample(x, h-1-inset)
	}
	for y := inset; y < h-inset; y++ {
		sample(inset, y)
		sample(w-1-inset, y)
	}
	if n == 0 {
		return 255, 255, 255
	}
	return sumR / n, sumG / n, sumB / n
}

// smoothEdges clears opaque pixels whose 8-neighborhood is mostly
// transparent. The decision reads the previous alpha state so the pass does
// not cascade within a single sweep.
func smoothEdges(img *image.NRGBA) {
	w := img.Rect.Dx()
	h := img.Rect.Dy()

	prev := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			prev[y*w+x] = img.Pix[img.PixOffset(x, y)+3]
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if prev[y*w+x] == 0 {
				continue
			}
			transparent := 0
			neighbors := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					neighbors++
					if prev[ny*w+nx] == 0 {
						transparent++
					}
				}
			}
			if neighbors > 0 && transparent*4 >= neighbors*3 {
				img.Pix[img.PixOffset(x, y)+3] = 0
			}
		}
	}
}

// toNRGBA converts the source to NRGBA, downscaling to maxDim on the longer
// axis when the input exceeds it.
func toNRGBA(src image.Image, maxDim int) *image.NRGBA {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if maxDim > 0 && (w > maxDim || h > maxDim) {
		scale := float64(maxDim) / float64(w)
		if h > w {
			scale = float64(maxDim) / float64(h)
		}
		nw := int(float64(w) * scale)
		nh := int(float64(h) * scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		dst := image.NewNRGBA(image.Rect(0, 0, nw, nh))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
		return dst
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	return dst
}

// Process runs the full signature-preparation step over an uploaded data
// URL: policy gate, decode, background removal, and PNG re-encoding. The
// result is always a PNG data URL since transparency must survive.
func Process(dataURL string, policy SourcePolicy, opts RemoveOptions) (string, error) {
	data, err := policy.Check(dataURL)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	cleaned := RemoveBackground(img, opts)

	var buf bytes.Buffer
	if err := png.Encode(&buf, cleaned); err != nil {
		return "", fmt.Errorf("encode cleaned signature: %w", err)
	}
	return ToDataURL("image/png", buf.Bytes()), nil
}
