package export

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"inksign/pdfdoc"
	"inksign/placement"
)

// createTestPNG creates a simple PNG image for testing.
func createTestPNG(width, height int, seed uint8) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: seed, G: uint8(x % 256), B: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// drawCall records one DrawImage invocation on the fake document.
type drawCall struct {
	page       int
	handle     string
	x, y, w, h float64
}

// fakeDoc is a call-counting Mutator.
type fakeDoc struct {
	pages      int
	pageW      float64
	pageH      float64
	embeds     int
	draws      []drawCall
	saved      []byte
	failEmbed  bool
	failDrawAt int // fail the nth draw, 0 disables
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) PageSize(index int) (float64, float64, error) {
	if index < 0 || index >= d.pages {
		return 0, 0, fmt.Errorf("page %d out of range", index)
	}
	return d.pageW, d.pageH, nil
}

func (d *fakeDoc) EmbedImage(payload []byte) (pdfdoc.ImageHandle, error) {
	if d.failEmbed {
		return pdfdoc.ImageHandle{}, errors.New("embed refused")
	}
	d.embeds++
	return pdfdoc.ImageHandle{Name: fmt.Sprintf("Im%d", d.embeds)}, nil
}

func (d *fakeDoc) DrawImage(pageIndex int, handle pdfdoc.ImageHandle, x, y, w, h float64) error {
	if d.failDrawAt > 0 && len(d.draws)+1 == d.failDrawAt {
		return errors.New("draw refused")
	}
	d.draws = append(d.draws, drawCall{page: pageIndex, handle: handle.Name, x: x, y: y, w: w, h: h})
	return nil
}

func (d *fakeDoc) Save() ([]byte, error) { return d.saved, nil }

func newFakePipeline(doc *fakeDoc) *Pipeline {
	return NewWithOpener(func(data []byte) (Mutator, error) {
		return doc, nil
	})
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestNativeRect(t *testing.T) {
	// US Letter page, 612x792 pt.
	x, y, w, h := NativeRect(placement.NormalizedRect{X: 10, Y: 20, W: 15, H: 5}, 612, 792)
	if !approx(x, 61.2) || !approx(y, 594.0) || !approx(w, 91.8) || !approx(h, 39.6) {
		t.Errorf("NativeRect = (%g, %g, %g, %g), want (61.2, 594, 91.8, 39.6)", x, y, w, h)
	}

	// A rect at the normalized origin lands at the page's top-left corner:
	// native y is the page height minus the rect height.
	x, y, _, h = NativeRect(placement.NormalizedRect{X: 0, Y: 0, W: 10, H: 10}, 612, 792)
	if !approx(x, 0) || !approx(y, 792-h) {
		t.Errorf("origin rect = (%g, %g), want (0, %g)", x, y, 792-h)
	}

	// A rect touching the normalized bottom edge lands at native y = 0.
	_, y, _, _ = NativeRect(placement.NormalizedRect{X: 0, Y: 90, W: 10, H: 10}, 612, 792)
	if !approx(y, 0) {
		t.Errorf("bottom rect y = %g, want 0", y)
	}
}

func TestPipeline_Run(t *testing.T) {
	doc := &fakeDoc{pages: 2, pageW: 612, pageH: 792, saved: []byte("signed")}
	pipe := newFakePipeline(doc)
	img := createTestPNG(40, 20, 1)

	placements := []placement.Placement{
		{ID: "a", PageIndex: 0, Rect: placement.NormalizedRect{X: 10, Y: 20, W: 15, H: 5}, ImageData: img},
		{ID: "b", PageIndex: 1, Rect: placement.NormalizedRect{X: 50, Y: 50, W: 20, H: 8}, ImageData: img},
	}

	out, err := pipe.Run([]byte("%PDF..."), placements)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !bytes.Equal(out, []byte("signed")) {
		t.Errorf("Run returned %q, want saved bytes", out)
	}
	if len(doc.draws) != 2 {
		t.Fatalf("draw calls = %d, want 2", len(doc.draws))
	}
	if doc.draws[0].page != 0 || doc.draws[1].page != 1 {
		t.Errorf("draw pages = %d, %d", doc.draws[0].page, doc.draws[1].page)
	}
	if !approx(doc.draws[0].x, 61.2) || !approx(doc.draws[0].y, 594.0) {
		t.Errorf("draw position = (%g, %g), want (61.2, 594)", doc.draws[0].x, doc.draws[0].y)
	}
}

func TestPipeline_EmbedCache(t *testing.T) {
	doc := &fakeDoc{pages: 3, pageW: 612, pageH: 792, saved: []byte("ok")}
	pipe := newFakePipeline(doc)
	same := createTestPNG(40, 20, 1)
	other := createTestPNG(40, 20, 200)

	placements := []placement.Placement{
		{ID: "a", PageIndex: 0, Rect: placement.NormalizedRect{X: 10, Y: 10, W: 15, H: 5}, ImageData: same},
		{ID: "b", PageIndex: 2, Rect: placement.NormalizedRect{X: 40, Y: 40, W: 15, H: 5}, ImageData: same},
		{ID: "c", PageIndex: 1, Rect: placement.NormalizedRect{X: 70, Y: 70, W: 15, H: 5}, ImageData: other},
	}

	if _, err := pipe.Run(nil, placements); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if doc.embeds != 2 {
		t.Errorf("embed calls = %d, want 2 (identical payloads share one)", doc.embeds)
	}
	if len(doc.draws) != 3 {
		t.Fatalf("draw calls = %d, want 3", len(doc.draws))
	}
	if doc.draws[0].handle != doc.draws[1].handle {
		t.Error("identical payloads drawn through different handles")
	}
	if doc.draws[2].handle == doc.draws[0].handle {
		t.Error("distinct payloads share a handle")
	}
}

func TestPipeline_SharesEmbedAcrossDataURLAndRaw(t *testing.T) {
	doc := &fakeDoc{pages: 1, pageW: 612, pageH: 792}
	pipe := newFakePipeline(doc)
	raw := createTestPNG(40, 20, 1)
	asURL := []byte("data:image/png;base64," + base64.StdEncoding.EncodeToString(raw))

	placements := []placement.Placement{
		{ID: "a", PageIndex: 0, Rect: placement.NormalizedRect{X: 10, Y: 10, W: 15, H: 5}, ImageData: raw},
		{ID: "b", PageIndex: 0, Rect: placement.NormalizedRect{X: 40, Y: 40, W: 15, H: 5}, ImageData: asURL},
	}

	if _, err := pipe.Run(nil, placements); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if doc.embeds != 1 {
		t.Errorf("embed calls = %d, want 1 (cache keys on decoded payload)", doc.embeds)
	}
}

func TestPipeline_FailureAborts(t *testing.T) {
	img := createTestPNG(40, 20, 1)

	t.Run("page out of range", func(t *testing.T) {
		doc := &fakeDoc{pages: 1, pageW: 612, pageH: 792}
		pipe := newFakePipeline(doc)
		placements := []placement.Placement{
			{ID: "a", PageIndex: 5, Rect: placement.NormalizedRect{X: 10, Y: 10, W: 15, H: 5}, ImageData: img},
		}
		if _, err := pipe.Run(nil, placements); !errors.Is(err, ErrPageOutOfRange) {
			t.Errorf("Run error = %v, want ErrPageOutOfRange", err)
		}
		if len(doc.draws) != 0 {
			t.Error("failed export still drew on the document")
		}
	})

	t.Run("embed failure", func(t *testing.T) {
		doc := &fakeDoc{pages: 1, pageW: 612, pageH: 792, failEmbed: true}
		pipe := newFakePipeline(doc)
		placements := []placement.Placement{
			{ID: "a", PageIndex: 0, Rect: placement.NormalizedRect{X: 10, Y: 10, W: 15, H: 5}, ImageData: img},
		}
		if _, err := pipe.Run(nil, placements); !errors.Is(err, ErrUnsupportedImageFormat) {
			t.Errorf("Run error = %v, want ErrUnsupportedImageFormat", err)
		}
	})

	t.Run("corrupt source", func(t *testing.T) {
		pipe := NewWithOpener(func(data []byte) (Mutator, error) {
			return nil, errors.New("bad xref")
		})
		if _, err := pipe.Run([]byte("junk"), nil); !errors.Is(err, ErrCorruptSource) {
			t.Errorf("Run error = %v, want ErrCorruptSource", err)
		}
	})
}
