package placement

import (
	"fmt"

	"github.com/google/uuid"

	"inksign/signature"
)

// Placement is one recorded instance of a signature image positioned on a
// specific page of the loaded document.
type Placement struct {
	// ID is an opaque unique identifier assigned by the store.
	ID string

	// PageIndex is the zero-based page the signature sits on.
	PageIndex int

	// Rect is the position and size as percentages of the page surface.
	Rect NormalizedRect

	// ImageData is the encoded image payload. Each placement owns its own
	// copy, so later edits to the signature template never alter it.
	ImageData []byte
}

// Store is the authoritative in-memory ledger of placements for one loaded
// document. Every mutation validates before committing; a rejected mutation
// leaves prior state untouched.
//
// The store assumes the single-threaded event model of the session: it has
// no internal locking and must not be shared across concurrent writers.
type Store struct {
	pageCount  int
	placements []*Placement
	byID       map[string]*Placement
}

// NewStore creates a store for a document with the given page count.
func NewStore(pageCount int) *Store {
	return &Store{
		pageCount: pageCount,
		byID:      make(map[string]*Placement),
	}
}

// PageCount returns the page count the store validates against.
func (s *Store) PageCount() int {
	return s.pageCount
}

// Add validates and records a new placement, returning its fresh id.
// On any validation failure the store is unchanged.
func (s *Store) Add(pageIndex int, rect NormalizedRect, imageData []byte) (string, error) {
	if pageIndex < 0 || pageIndex >= s.pageCount {
		return "", fmt.Errorf("%w: page %d of %d", ErrInvalidPage, pageIndex, s.pageCount)
	}
	if err := rect.Validate(); err != nil {
		return "", err
	}
	if err := validateImage(imageData); err != nil {
		return "", err
	}

	data := make([]byte, len(imageData))
	copy(data, imageData)

	p := &Placement{
		ID:        uuid.NewString(),
		PageIndex: pageIndex,
		Rect:      rect,
		ImageData: data,
	}
	s.placements = append(s.placements, p)
	s.byID[p.ID] = p
	return p.ID, nil
}

// Update replaces the rect of an existing placement. The existing rect is
// untouched on failure, so callers streaming live drag deltas can treat
// each call as a candidate state rather than a guaranteed commit.
func (s *Store) Update(id string, rect NormalizedRect) error {
	p, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := rect.Validate(); err != nil {
		return err
	}
	p.Rect = rect
	return nil
}

// Remove deletes the placement with the given id. Removing an unknown id is
// a no-op.
func (s *Store) Remove(id string) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, p := range s.placements {
		if p.ID == id {
			s.placements = append(s.placements[:i], s.placements[i+1:]...)
			break
		}
	}
}

// Clear drops every placement.
func (s *Store) Clear() {
	s.placements = nil
	s.byID = make(map[string]*Placement)
}

// Get returns a copy of the placement with the given id.
func (s *Store) Get(id string) (Placement, bool) {
	p, ok := s.byID[id]
	if !ok {
		return Placement{}, false
	}
	return *p, true
}

// List returns copies of all placements in insertion order.
func (s *Store) List() []Placement {
	out := make([]Placement, len(s.placements))
	for i, p := range s.placements {
		out[i] = *p
	}
	return out
}

// Len returns the number of placements.
func (s *Store) Len() int {
	return len(s.placements)
}

// validateImage checks that the payload (raw bytes or a data URL) is a
// well-formed image of an accepted format.
func validateImage(data []byte) error {
	raw, err := signature.DecodePayload(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if err := signature.ValidatePayload(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return nil
}
