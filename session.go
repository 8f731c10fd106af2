package boxlabel

// The annotation session: image navigation, the box drawing state machine and selection.

import (
	"fmt"
	"log"
)

// DrawState is the state of the box creation state machine.
type DrawState int

// The box creation states.
const (
	Idle          DrawState = iota // No gesture in progress.
	Drawing                        // The pointer is down; the anchor corner is fixed.
	AwaitingLabel                  // The box is drawn and waits for its label.
)

func (s DrawState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Drawing:
		return "Drawing"
	case AwaitingLabel:
		return "AwaitingLabel"
	}
	return fmt.Sprintf("DrawState(%d)", int(s))
}

// EventType identifies a change of session state that a renderer may want to react to.
type EventType int

// The session events.
const (
	EventImageChanged     EventType = iota // The displayed image or the display area changed.
	EventPreviewChanged                    // The live preview rectangle moved, or was cleared.
	EventLabelRequested                    // A drawn box needs its label; see ProvideLabel.
	EventBoxesChanged                      // A box was added to or removed from the current image.
	EventSelectionChanged                  // The selected box changed.
)

// Event is passed to session listeners.
type Event struct {
	Type  EventType
	Image ImageRef
}

// Listener receives session events. Listeners run synchronously on the calling goroutine.
type Listener func(Event)

// LabelPrompter asks the user for the label of a freshly drawn box. It returns false if the user
// cancelled the prompt.
type LabelPrompter interface {
	PromptLabel() (string, bool)
}

// SessionOptions configure how images are fitted to the display.
type SessionOptions struct {
	DisplayWidth  float64
	DisplayHeight float64
	AllowUpscale  bool
	NoScaling     bool // Show images at their natural size, ignoring the display area.
}

// Session holds all mutable annotation state: the images, the current position, the drawing
// state machine, the selection and the boxes.
//
// Pointer coordinates passed to the session are in display-space; everything stored is in
// image-space.
type Session struct {
	images []ImageRef
	index  int
	store  *Store
	opts   SessionOptions

	mapper    Mapper
	mapperErr error

	state    DrawState
	anchor   Point // Image-space.
	endpoint Point // Image-space.
	preview  *Coords

	selected    uint64 // Box ID, 0 if none.
	hasSelected bool

	listeners []Listener
}

// NewSession creates a session over images, positioned on the first image. The store may be
// nil, in which case an empty one is created.
func NewSession(images []ImageRef, store *Store, opts SessionOptions) *Session {
	if store == nil {
		store = NewStore()
	}
	s := &Session{
		images: append([]ImageRef(nil), images...),
		store:  store,
		opts:   opts,
	}
	s.updateMapper()
	return s
}

// OnChange registers a listener for session events.
func (s *Session) OnChange(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *Session) emit(t EventType) {
	ev := Event{Type: t}
	if ref, ok := s.Current(); ok {
		ev.Image = ref
	}
	for _, l := range s.listeners {
		l(ev)
	}
}

// Store is the box store backing the session.
func (s *Session) Store() *Store {
	return s.store
}

// Images returns a copy of the images of the session in navigation order.
func (s *Session) Images() []ImageRef {
	return append([]ImageRef(nil), s.images...)
}

// Index is the position of the current image.
func (s *Session) Index() int {
	return s.index
}

// Current returns the displayed image, or false if the session has no images.
func (s *Session) Current() (ImageRef, bool) {
	if len(s.images) == 0 {
		return ImageRef{}, false
	}
	return s.images[s.index], true
}

// State is the state of the drawing state machine.
func (s *Session) State() DrawState {
	return s.state
}

// Mapper returns the coordinate mapper of the current image, or the error that prevented its
// construction.
func (s *Session) Mapper() (Mapper, error) {
	return s.mapper, s.mapperErr
}

func (s *Session) updateMapper() {
	ref, ok := s.Current()
	if !ok {
		s.mapper, s.mapperErr = Mapper{}, fmt.Errorf("%w: no image loaded", ErrInvalidScale)
		return
	}
	if s.opts.NoScaling {
		s.mapper, s.mapperErr = NewMapperWithScale(1)
	} else {
		s.mapper, s.mapperErr = NewMapper(ref.Width, ref.Height, s.opts.DisplayWidth,
			s.opts.DisplayHeight, s.opts.AllowUpscale)
	}
	if s.mapperErr == nil {
		return
	}

	log.Printf("Cannot display %q: %v", ref.Path, s.mapperErr)
	if s.state != Idle {
		// Pointer input cannot be mapped any more, so the gesture could never finish.
		log.Printf("Discarding the unfinished box on %q", ref.Path)
		s.resetDraw()
		s.emit(EventPreviewChanged)
	}
}

// SetDisplayArea changes the available display size and recomputes the scale.
//
// A pending box survives a resize since its corners are kept in image-space, unless the new
// area cannot display the image.
func (s *Session) SetDisplayArea(width, height float64) error {
	s.opts.DisplayWidth = width
	s.opts.DisplayHeight = height
	s.updateMapper()
	s.emit(EventImageChanged)
	return s.mapperErr
}

// Next moves to the next image. It does nothing on the last image.
func (s *Session) Next() bool {
	return s.SetIndex(s.index + 1)
}

// Prev moves to the previous image. It does nothing on the first image.
func (s *Session) Prev() bool {
	return s.SetIndex(s.index - 1)
}

// SetIndex displays the image at position i. Any box that is being drawn or waits for its label
// is discarded, and the selection is cleared.
func (s *Session) SetIndex(i int) bool {
	if i < 0 || i >= len(s.images) || i == s.index {
		return false
	}

	if s.state != Idle {
		log.Printf("Discarding the unfinished box on %q", s.images[s.index].Path)
	}
	s.resetDraw()
	s.hasSelected, s.selected = false, 0
	s.index = i
	s.updateMapper()
	s.emit(EventImageChanged)
	return true
}

func (s *Session) resetDraw() {
	s.state = Idle
	s.anchor, s.endpoint = Point{}, Point{}
	s.preview = nil
}

// toImage converts a display-space pointer location. It fails when no image can be displayed.
func (s *Session) toImage(p Point) (ImageRef, Point, bool) {
	ref, ok := s.Current()
	if !ok || s.mapperErr != nil {
		return ImageRef{}, Point{}, false
	}
	return ref, s.mapper.ToImage(p), true
}

// PointerDown handles a button press at display-space location p.
//
// A press on an existing box selects it. Elsewhere it starts a new box. Presses while a gesture is
// in progress are ignored.
func (s *Session) PointerDown(p Point) {
	if s.state != Idle {
		return
	}
	ref, ip, ok := s.toImage(p)
	if !ok {
		return
	}

	if box, hit := s.store.HitTest(ref, ip); hit {
		s.selectBox(box.ID)
		return
	}

	s.state = Drawing
	s.anchor = ip
}

// PointerMove updates the live preview while a box is being drawn.
func (s *Session) PointerMove(p Point) {
	if s.state != Drawing {
		return
	}
	_, ip, ok := s.toImage(p)
	if !ok {
		return
	}

	c := CoordsFrom(s.anchor, ip)
	s.preview = &c
	s.emit(EventPreviewChanged)
}

// PointerUp finishes the drawing gesture and requests a label for the box. It returns true if
// the session now waits for ProvideLabel or CancelLabel.
func (s *Session) PointerUp(p Point) bool {
	if s.state != Drawing {
		return false
	}
	_, ip, ok := s.toImage(p)
	if !ok {
		return false
	}

	s.endpoint = ip
	c := CoordsFrom(s.anchor, ip)
	s.preview = &c
	s.state = AwaitingLabel
	s.emit(EventLabelRequested)
	return true
}

// ProvideLabel resolves a pending label request. A label that is empty after trimming cancels the
// box. It returns the stored box, or false if nothing was stored.
func (s *Session) ProvideLabel(text string) (Box, bool) {
	if s.state != AwaitingLabel {
		return Box{}, false
	}
	ref, _ := s.Current()
	coords := CoordsFrom(s.anchor, s.endpoint).Normalize()
	s.resetDraw()

	box, ok := s.store.Add(ref, coords, text)
	s.emit(EventPreviewChanged)
	if ok {
		s.emit(EventBoxesChanged)
	}
	return box, ok
}

// CancelLabel discards the pending box.
func (s *Session) CancelLabel() {
	if s.state != AwaitingLabel {
		return
	}
	s.resetDraw()
	s.emit(EventPreviewChanged)
}

// ResolveLabel asks p for the label of the pending box and applies the answer.
func (s *Session) ResolveLabel(p LabelPrompter) (Box, bool) {
	if s.state != AwaitingLabel {
		return Box{}, false
	}
	text, ok := p.PromptLabel()
	if !ok {
		s.CancelLabel()
		return Box{}, false
	}
	return s.ProvideLabel(text)
}

// Boxes returns the boxes of the current image in list order.
func (s *Session) Boxes() []Box {
	ref, ok := s.Current()
	if !ok {
		return nil
	}
	return s.store.List(ref)
}

// BoxSummary formats the list row for the box at position i (0-based) of the current image.
func (s *Session) BoxSummary(i int) (string, bool) {
	boxes := s.Boxes()
	if i < 0 || i >= len(boxes) {
		return "", false
	}
	return fmt.Sprintf("Bounding Box %d: %v", i+1, boxes[i]), true
}

// Select selects the box at position i (0-based) of the current image's list.
func (s *Session) Select(i int) bool {
	boxes := s.Boxes()
	if i < 0 || i >= len(boxes) {
		return false
	}
	s.selectBox(boxes[i].ID)
	return true
}

// SelectAt selects the topmost box under the display-space point p, if any.
func (s *Session) SelectAt(p Point) bool {
	ref, ip, ok := s.toImage(p)
	if !ok {
		return false
	}
	box, hit := s.store.HitTest(ref, ip)
	if hit {
		s.selectBox(box.ID)
	}
	return hit
}

func (s *Session) selectBox(id uint64) {
	if s.hasSelected && s.selected == id {
		return
	}
	s.selected, s.hasSelected = id, true
	s.emit(EventSelectionChanged)
}

// ClearSelection deselects the selected box.
func (s *Session) ClearSelection() {
	if !s.hasSelected {
		return
	}
	s.selected, s.hasSelected = 0, false
	s.emit(EventSelectionChanged)
}

// Selected returns the selected box.
func (s *Session) Selected() (Box, bool) {
	ref, ok := s.Current()
	if !ok || !s.hasSelected {
		return Box{}, false
	}
	return s.store.Get(ref, s.selected)
}

// DeleteSelected removes the selected box from the store and clears the selection. It returns
// false if nothing was selected.
func (s *Session) DeleteSelected() bool {
	if !s.hasSelected {
		return false
	}
	ref, _ := s.Current()
	s.store.Remove(ref, s.selected)
	s.selected, s.hasSelected = 0, false
	s.emit(EventBoxesChanged)
	s.emit(EventSelectionChanged)
	return true
}

// RenderBox is a box prepared for drawing.
type RenderBox struct {
	Box      Box
	Display  Coords // Normalized, in display-space.
	Selected bool
}

// RenderModel is everything a renderer needs to draw the current image.
type RenderModel struct {
	Image   ImageRef
	Scale   float64
	Boxes   []RenderBox
	Preview *Coords // In display-space, nil if no box is being drawn.
}

// RenderModel returns the drawing model of the current image. It is empty if the image cannot be
// displayed.
func (s *Session) RenderModel() RenderModel {
	ref, ok := s.Current()
	if !ok || s.mapperErr != nil {
		return RenderModel{Image: ref}
	}

	boxes := s.store.List(ref)
	m := RenderModel{
		Image: ref,
		Scale: s.mapper.Scale(),
		Boxes: make([]RenderBox, len(boxes)),
	}
	for i, b := range boxes {
		m.Boxes[i] = RenderBox{
			Box:      b,
			Display:  s.mapper.CoordsToDisplay(b.Coords.Normalize()),
			Selected: s.hasSelected && b.ID == s.selected,
		}
	}
	if s.preview != nil {
		c := s.mapper.CoordsToDisplay(*s.preview)
		m.Preview = &c
	}
	return m
}
