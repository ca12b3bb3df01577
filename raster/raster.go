// Package raster is the boundary to page rasterization: given document
// bytes it yields one bitmap surface per page at a fixed display scale.
// Placement geometry never depends on these pixel dimensions beyond the
// moment a gesture is converted to percentages.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"inksign/pdfdoc"
)

// DisplayScale is the fixed upscaling factor from PDF points to display
// pixels, chosen to balance on-screen sharpness against memory.
const DisplayScale = 1.5

// ErrRenderFailed is returned when a document cannot be rasterized.
// Malformed input propagates as this error, never as zero pages.
var ErrRenderFailed = errors.New("page rasterization failed")

// PageSurface is one rendered page: a bitmap plus its pixel dimensions.
type PageSurface struct {
	Image  *image.RGBA
	Width  int
	Height int
}

// Rasterizer renders every page of a document to a display surface.
type Rasterizer interface {
	RenderPages(ctx context.Context, data []byte) ([]PageSurface, error)
}

// PageRenderer is the built-in rasterizer. It sizes each surface from the
// page's MediaBox at DisplayScale and fills it with the paper color;
// content rendering is delegated to the embedding application, which may
// composite over these surfaces.
type PageRenderer struct {
	// Scale overrides DisplayScale when positive.
	Scale float64
}

// RenderPages implements Rasterizer.
func (r *PageRenderer) RenderPages(ctx context.Context, data []byte) ([]PageSurface, error) {
	doc, err := pdfdoc.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	scale := r.Scale
	if scale <= 0 {
		scale = DisplayScale
	}

	surfaces := make([]PageSurface, 0, doc.PageCount())
	for i := 0; i < doc.PageCount(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w, h, err := doc.PageSize(i)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
		}
		pw := int(w*scale + 0.5)
		ph := int(h*scale + 0.5)
		if pw < 1 || ph < 1 {
			return nil, fmt.Errorf("%w: degenerate page %d", ErrRenderFailed, i)
		}
		img := image.NewRGBA(image.Rect(0, 0, pw, ph))
		xdraw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
		surfaces = append(surfaces, PageSurface{Image: img, Width: pw, Height: ph})
	}
	return surfaces, nil
}
