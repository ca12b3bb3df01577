// Package export turns a snapshot of placements plus the original document
// bytes into a signed output document. The whole operation is atomic: any
// failure aborts with no partial document.
package export

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"inksign/pdfdoc"
	"inksign/placement"
	"inksign/signature"
)

// Export failure taxonomy. All are resource errors: the caller may retry
// from the same source bytes, which are never mutated in place.
var (
	ErrCorruptSource          = errors.New("source document cannot be parsed")
	ErrPageOutOfRange         = errors.New("placement targets a page the document does not have")
	ErrUnsupportedImageFormat = errors.New("placement image is not an embeddable format")
)

// Mutator is the document-mutation surface the pipeline drives. It is
// satisfied by *pdfdoc.Document; tests substitute call-counting fakes.
type Mutator interface {
	PageCount() int
	PageSize(index int) (w, h float64, err error)
	EmbedImage(payload []byte) (pdfdoc.ImageHandle, error)
	DrawImage(pageIndex int, handle pdfdoc.ImageHandle, x, y, w, h float64) error
	Save() ([]byte, error)
}

// Opener parses source bytes into a mutable document.
type Opener func(data []byte) (Mutator, error)

// Pipeline exports placements into documents.
type Pipeline struct {
	open Opener
}

// New creates a pipeline backed by the real PDF layer.
func New() *Pipeline {
	return &Pipeline{open: func(data []byte) (Mutator, error) {
		return pdfdoc.Load(data)
	}}
}

// NewWithOpener creates a pipeline over a custom document opener.
func NewWithOpener(open Opener) *Pipeline {
	return &Pipeline{open: open}
}

// NativeRect converts a normalized rect into the page's native coordinate
// space. The native space is bottom-left-anchored while the normalized rect
// is top-left-anchored, so the vertical axis flips: the native y is the
// distance from the page bottom to the rect's bottom edge.
func NativeRect(r placement.NormalizedRect, pageW, pageH float64) (x, y, w, h float64) {
	x = r.X / 100 * pageW
	w = r.W / 100 * pageW
	h = r.H / 100 * pageH
	y = pageH - (r.Y+r.H)/100*pageH
	return x, y, w, h
}

// Run embeds every placement into a copy of the source document and
// returns the serialized result.
//
// Identical image payloads are embedded exactly once and drawn through the
// same handle, keyed by a content hash of the decoded payload. Repeated
// initials reuse one embedded image however many times they are placed.
func (p *Pipeline) Run(sourceBytes []byte, placements []placement.Placement) ([]byte, error) {
	doc, err := p.open(sourceBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSource, err)
	}

	type cacheKey [blake2b.Size256]byte
	embedded := make(map[cacheKey]pdfdoc.ImageHandle)

	for _, pl := range placements {
		// The store validated the page index against its own page count,
		// but export works from a possibly stale snapshot, so the document
		// is the authority here.
		if pl.PageIndex < 0 || pl.PageIndex >= doc.PageCount() {
			return nil, fmt.Errorf("%w: page %d, document has %d", ErrPageOutOfRange, pl.PageIndex, doc.PageCount())
		}

		payload, err := signature.DecodePayload(pl.ImageData)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedImageFormat, err)
		}

		key := cacheKey(blake2b.Sum256(payload))
		handle, ok := embedded[key]
		if !ok {
			handle, err = doc.EmbedImage(payload)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnsupportedImageFormat, err)
			}
			embedded[key] = handle
		}

		pageW, pageH, err := doc.PageSize(pl.PageIndex)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPageOutOfRange, err)
		}
		x, y, w, h := NativeRect(pl.Rect, pageW, pageH)
		if err := doc.DrawImage(pl.PageIndex, handle, x, y, w, h); err != nil {
			return nil, fmt.Errorf("draw placement %s: %w", pl.ID, err)
		}
	}

	out, err := doc.Save()
	if err != nil {
		return nil, fmt.Errorf("serialize signed document: %w", err)
	}
	return out, nil
}
