package placement

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// createTestPNG creates a simple PNG image for testing.
func createTestPNG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x % 256),
				G: uint8(y % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestNormalizedRect_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rect    NormalizedRect
		wantErr bool
	}{
		{"valid interior", NormalizedRect{X: 10, Y: 20, W: 15, H: 5}, false},
		{"full page", NormalizedRect{X: 0, Y: 0, W: 100, H: 100}, false},
		{"touching right edge", NormalizedRect{X: 85, Y: 0, W: 15, H: 10}, false},
		{"zero width", NormalizedRect{X: 10, Y: 10, W: 0, H: 5}, true},
		{"negative height", NormalizedRect{X: 10, Y: 10, W: 5, H: -1}, true},
		{"negative x", NormalizedRect{X: -1, Y: 10, W: 5, H: 5}, true},
		{"negative y", NormalizedRect{X: 10, Y: -0.5, W: 5, H: 5}, true},
		{"overflows right", NormalizedRect{X: 90, Y: 10, W: 15, H: 5}, true},
		{"overflows bottom", NormalizedRect{X: 10, Y: 97, W: 5, H: 5}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rect.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRect) {
				t.Errorf("error %v is not ErrInvalidRect", err)
			}
		})
	}
}

func TestNormalizedRect_Clamp(t *testing.T) {
	tests := []struct {
		name string
		in   NormalizedRect
		want NormalizedRect
	}{
		{"already valid", NormalizedRect{X: 10, Y: 20, W: 15, H: 5}, NormalizedRect{X: 10, Y: 20, W: 15, H: 5}},
		{"negative origin", NormalizedRect{X: -3, Y: -8, W: 20, H: 8}, NormalizedRect{X: 0, Y: 0, W: 20, H: 8}},
		{"past right edge", NormalizedRect{X: 95, Y: 10, W: 20, H: 8}, NormalizedRect{X: 80, Y: 10, W: 20, H: 8}},
		{"past bottom edge", NormalizedRect{X: 10, Y: 98, W: 20, H: 8}, NormalizedRect{X: 10, Y: 92, W: 20, H: 8}},
		{"below size floor", NormalizedRect{X: 10, Y: 10, W: 1, H: 1}, NormalizedRect{X: 10, Y: 10, W: 5, H: 3}},
		{"oversized", NormalizedRect{X: 0, Y: 0, W: 140, H: 120}, NormalizedRect{X: 0, Y: 0, W: 100, H: 100}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Clamp(5, 3)
			if got != tc.want {
				t.Errorf("Clamp() = %+v, want %+v", got, tc.want)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("clamped rect fails Validate: %v", err)
			}
		})
	}
}

func TestCenteredAt(t *testing.T) {
	got := CenteredAt(50, 50, 20, 8)
	want := NormalizedRect{X: 40, Y: 46, W: 20, H: 8}
	if got != want {
		t.Errorf("CenteredAt(50,50) = %+v, want %+v", got, want)
	}

	// Tapping at a corner shifts the rect back onto the page.
	got = CenteredAt(0, 0, 20, 8)
	want = NormalizedRect{X: 0, Y: 0, W: 20, H: 8}
	if got != want {
		t.Errorf("CenteredAt(0,0) = %+v, want %+v", got, want)
	}
}

func TestStore_AddAndList(t *testing.T) {
	store := NewStore(3)
	img := createTestPNG(40, 20)

	id1, err := store.Add(0, NormalizedRect{X: 10, Y: 10, W: 20, H: 8}, img)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	id2, err := store.Add(2, NormalizedRect{X: 30, Y: 50, W: 20, H: 8}, img)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if id1 == id2 {
		t.Error("Add returned duplicate ids")
	}

	list := store.List()
	if len(list) != 2 {
		t.Fatalf("List returned %d placements, want 2", len(list))
	}
	if list[0].ID != id1 || list[1].ID != id2 {
		t.Error("List is not in insertion order")
	}
	if list[1].PageIndex != 2 {
		t.Errorf("placement page = %d, want 2", list[1].PageIndex)
	}
}

func TestStore_AddRejectsInvalidInput(t *testing.T) {
	img := createTestPNG(40, 20)

	tests := []struct {
		name    string
		page    int
		rect    NormalizedRect
		data    []byte
		wantErr error
	}{
		{"page below range", -1, NormalizedRect{X: 10, Y: 10, W: 20, H: 8}, img, ErrInvalidPage},
		{"page above range", 3, NormalizedRect{X: 10, Y: 10, W: 20, H: 8}, img, ErrInvalidPage},
		{"invalid rect", 0, NormalizedRect{X: 95, Y: 10, W: 20, H: 8}, img, ErrInvalidRect},
		{"garbage image", 0, NormalizedRect{X: 10, Y: 10, W: 20, H: 8}, []byte("not an image"), ErrInvalidImage},
		{"empty image", 0, NormalizedRect{X: 10, Y: 10, W: 20, H: 8}, nil, ErrInvalidImage},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := NewStore(3)
			if _, err := store.Add(tc.page, tc.rect, tc.data); !errors.Is(err, tc.wantErr) {
				t.Errorf("Add error = %v, want %v", err, tc.wantErr)
			}
			if store.Len() != 0 {
				t.Error("rejected Add mutated the store")
			}
		})
	}
}

func TestStore_UpdateLeavesRectOnFailure(t *testing.T) {
	store := NewStore(1)
	orig := NormalizedRect{X: 10, Y: 10, W: 20, H: 8}
	id, err := store.Add(0, orig, createTestPNG(40, 20))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := store.Update(id, NormalizedRect{X: 95, Y: 10, W: 20, H: 8}); !errors.Is(err, ErrInvalidRect) {
		t.Fatalf("Update error = %v, want ErrInvalidRect", err)
	}
	got, _ := store.Get(id)
	if got.Rect != orig {
		t.Errorf("failed Update changed rect to %+v", got.Rect)
	}

	next := NormalizedRect{X: 40, Y: 40, W: 20, H: 8}
	if err := store.Update(id, next); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ = store.Get(id)
	if got.Rect != next {
		t.Errorf("Update left rect %+v, want %+v", got.Rect, next)
	}

	if err := store.Update("missing", next); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStore_Remove(t *testing.T) {
	store := NewStore(1)
	img := createTestPNG(40, 20)
	id, _ := store.Add(0, NormalizedRect{X: 10, Y: 10, W: 20, H: 8}, img)
	keep, _ := store.Add(0, NormalizedRect{X: 40, Y: 40, W: 20, H: 8}, img)

	store.Remove(id)
	if store.Len() != 1 {
		t.Fatalf("Len = %d after Remove, want 1", store.Len())
	}
	if _, ok := store.Get(id); ok {
		t.Error("removed placement still retrievable")
	}
	if _, ok := store.Get(keep); !ok {
		t.Error("Remove dropped the wrong placement")
	}

	// Unknown id is a no-op.
	store.Remove("missing")
	if store.Len() != 1 {
		t.Error("Remove(missing) mutated the store")
	}
}

func TestStore_PlacementOwnsImageCopy(t *testing.T) {
	store := NewStore(1)
	img := createTestPNG(40, 20)
	id, err := store.Add(0, NormalizedRect{X: 10, Y: 10, W: 20, H: 8}, img)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	img[0] = 0xFF
	got, _ := store.Get(id)
	if got.ImageData[0] == 0xFF {
		t.Error("placement shares the caller's image buffer")
	}
}

func TestStore_Clear(t *testing.T) {
	store := NewStore(2)
	img := createTestPNG(40, 20)
	store.Add(0, NormalizedRect{X: 10, Y: 10, W: 20, H: 8}, img)
	store.Add(1, NormalizedRect{X: 40, Y: 40, W: 20, H: 8}, img)

	store.Clear()
	if store.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", store.Len())
	}
	if len(store.List()) != 0 {
		t.Error("List not empty after Clear")
	}
}
