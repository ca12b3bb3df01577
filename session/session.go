// Package session owns the state of one loaded document: its bytes, page
// inventory, the placement store, and the current-signature slot. All
// mutations run on a single logical thread of control; the session is the
// sole owner of its shared state and needs no locking.
package session

import (
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"inksign/config"
	"inksign/export"
	"inksign/gesture"
	"inksign/pdfdoc"
	"inksign/placement"
	"inksign/signature"
)

// Session errors.
var (
	ErrNoDocument       = errors.New("no document loaded")
	ErrDocumentTooLarge = errors.New("document exceeds size limit")
	ErrNotPDF           = errors.New("file is not a PDF document")
)

// Result is the outcome of an export: the signed bytes plus an advisory
// filename for the consumer's delivery mechanism.
type Result struct {
	Data     []byte
	Filename string
}

// Session is the mutable state for one document-signing workflow.
type Session struct {
	cfg   *config.Config
	clock clockwork.Clock

	sourceName  string
	sourceBytes []byte
	pageCount   int
	store       *placement.Store

	currentSignature []byte
	signatureToken   int

	controllers []*gesture.Controller
	pipeline    *export.Pipeline
}

// New creates an empty session.
func New(cfg *config.Config, clock clockwork.Clock) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Session{
		cfg:      cfg,
		clock:    clock,
		pipeline: export.New(),
	}
}

// LoadDocument replaces the loaded document. All placements are cleared --
// a placement is scoped to exactly one document -- and in-flight
// manipulation sessions are invalidated.
func (s *Session) LoadDocument(name string, data []byte) error {
	if len(data) > s.cfg.Limits.MaxDocumentBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrDocumentTooLarge, len(data), s.cfg.Limits.MaxDocumentBytes)
	}
	if !pdfdoc.IsPDF(data) {
		return ErrNotPDF
	}
	doc, err := pdfdoc.Load(data)
	if err != nil {
		return err
	}

	for _, c := range s.controllers {
		c.Cancel()
	}
	s.controllers = nil

	s.sourceName = name
	s.sourceBytes = data
	s.pageCount = doc.PageCount()
	s.store = placement.NewStore(s.pageCount)
	return nil
}

// Loaded reports whether a document is loaded.
func (s *Session) Loaded() bool {
	return s.store != nil
}

// PageCount returns the loaded document's page count.
func (s *Session) PageCount() int {
	return s.pageCount
}

// Store returns the placement store for the loaded document.
func (s *Session) Store() (*placement.Store, error) {
	if s.store == nil {
		return nil, ErrNoDocument
	}
	return s.store, nil
}

// Controller creates a gesture controller for one page surface and
// registers it for cancellation on document switch or clear.
func (s *Session) Controller(pageIndex int, surface gesture.SurfaceMetrics, confirm gesture.Confirmer) (*gesture.Controller, error) {
	if s.store == nil {
		return nil, ErrNoDocument
	}
	g := s.cfg.Gesture
	c := gesture.New(s.store, surface, s, confirm, s.clock, pageIndex, gesture.Config{
		DragThreshold: g.DragThresholdPx,
		HandleHitZone: g.HandleHitZonePx,
		LongPress:     g.LongPress.Std(),
		MinRectW:      g.MinRectWidthPct,
		MinRectH:      g.MinRectHeightPct,
		DefaultRectW:  g.DefaultRectWidthPct,
		DefaultRectH:  g.DefaultRectHeightPct,
	})
	s.controllers = append(s.controllers, c)
	return c, nil
}

// Current implements gesture.SignatureSource.
func (s *Session) Current() ([]byte, bool) {
	if s.currentSignature == nil {
		return nil, false
	}
	return s.currentSignature, true
}

// SetSignature replaces the current signature template. Placements that
// copied earlier templates are unaffected.
func (s *Session) SetSignature(payload []byte) error {
	raw, err := signature.DecodePayload(payload)
	if err != nil {
		return err
	}
	if err := signature.ValidatePayload(raw); err != nil {
		return err
	}
	s.currentSignature = payload
	s.signatureToken++
	return nil
}

// ClearSignature drops the current signature template.
func (s *Session) ClearSignature() {
	s.currentSignature = nil
	s.signatureToken++
}

// BeginSignatureProcessing marks the start of an asynchronous
// signature-preparation step (for example background removal) and returns
// a token identifying the slot state it was started against.
func (s *Session) BeginSignatureProcessing() int {
	return s.signatureToken
}

// CompleteSignatureProcessing installs a processed signature if the slot
// has not changed since the matching BeginSignatureProcessing call. A
// stale result is discarded without error: the computation was allowed to
// finish, its output is simply no longer wanted.
func (s *Session) CompleteSignatureProcessing(token int, dataURL string) bool {
	if token != s.signatureToken {
		return false
	}
	if err := s.SetSignature([]byte(dataURL)); err != nil {
		return false
	}
	return true
}

// SignaturePolicy returns the upload gate derived from configuration.
func (s *Session) SignaturePolicy() signature.SourcePolicy {
	return signature.SourcePolicy{
		MaxBytes:          s.cfg.Limits.MaxSignatureBytes,
		AcceptedMIMETypes: s.cfg.Signature.AcceptedMIMETypes,
	}
}

// Clear removes every placement and invalidates in-flight manipulation
// sessions, keeping the document loaded.
func (s *Session) Clear() error {
	if s.store == nil {
		return ErrNoDocument
	}
	for _, c := range s.controllers {
		c.Cancel()
	}
	s.store.Clear()
	return nil
}

// Export runs the export pipeline over a snapshot of the placements. The
// source bytes are never mutated, so a failed export can be retried from
// the same state.
func (s *Session) Export() (Result, error) {
	if s.store == nil {
		return Result{}, ErrNoDocument
	}
	out, err := s.pipeline.Run(s.sourceBytes, s.store.List())
	if err != nil {
		return Result{}, err
	}
	return Result{
		Data:     out,
		Filename: export.OutputName(s.sourceName),
	}, nil
}
