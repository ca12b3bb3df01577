// Package placement tracks where signature images sit on document pages.
//
// Geometry is expressed in percentages of the page surface rather than
// pixels, so a placement survives viewport resizes, zoom changes and
// device-pixel-ratio differences without accumulating transform error.
package placement

import (
	"errors"
	"fmt"
)

// Validation errors returned by the store.
var (
	ErrInvalidRect  = errors.New("invalid placement rect")
	ErrInvalidPage  = errors.New("page index out of range")
	ErrInvalidImage = errors.New("invalid image payload")
	ErrNotFound     = errors.New("placement not found")
)

// NormalizedRect is a position and size on a page surface, with every
// component in the range [0,100] as a percentage of the page dimensions.
// The origin is the top-left corner of the page.
type NormalizedRect struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	W float64 `yaml:"w" json:"w"`
	H float64 `yaml:"h" json:"h"`
}

// Validate checks the rect invariant: non-negative origin, positive size,
// and the rect fully inside the page surface.
func (r NormalizedRect) Validate() error {
	if r.W <= 0 || r.H <= 0 {
		return fmt.Errorf("%w: size %gx%g must be positive", ErrInvalidRect, r.W, r.H)
	}
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("%w: origin (%g, %g) must be non-negative", ErrInvalidRect, r.X, r.Y)
	}
	if r.X+r.W > 100 {
		return fmt.Errorf("%w: right edge %g exceeds page width", ErrInvalidRect, r.X+r.W)
	}
	if r.Y+r.H > 100 {
		return fmt.Errorf("%w: bottom edge %g exceeds page height", ErrInvalidRect, r.Y+r.H)
	}
	return nil
}

// Clamp forces the rect into the valid domain. The size is clamped first,
// between the given floor and the full page, then the origin is shifted so
// the rect stays inside [0,100] on both axes. The result always satisfies
// Validate provided minW and minH are positive.
func (r NormalizedRect) Clamp(minW, minH float64) NormalizedRect {
	c := r
	if c.W < minW {
		c.W = minW
	}
	if c.W > 100 {
		c.W = 100
	}
	if c.H < minH {
		c.H = minH
	}
	if c.H > 100 {
		c.H = 100
	}
	if c.X < 0 {
		c.X = 0
	}
	if c.X+c.W > 100 {
		c.X = 100 - c.W
	}
	if c.Y < 0 {
		c.Y = 0
	}
	if c.Y+c.H > 100 {
		c.Y = 100 - c.H
	}
	return c
}

// CenteredAt returns a rect of the given size centered on the point
// (cx, cy), clamped into the valid domain. Used when a placement gesture
// drops a default-size signature at the pointer position.
func CenteredAt(cx, cy, w, h float64) NormalizedRect {
	return NormalizedRect{
		X: cx - w/2,
		Y: cy - h/2,
		W: w,
		H: h,
	}.Clamp(w, h)
}
