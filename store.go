package boxlabel

import (
	"strings"
)

// Store holds the boxes of every image, in insertion order per image.
//
// Boxes of different images never interact, so the per-image slices are independent shards. A
// Store is not safe for concurrent use; the host event loop delivers events serially.
type Store struct {
	images map[string][]Box // Keyed by ImageRef.Path.
	nextID uint64
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{images: make(map[string][]Box)}
}

// Add appends a new box with the given coordinates and label to the image and returns it.
//
// The label is trimmed. If nothing remains, no box is added and ok is false; callers treat this
// as a cancelled draw.
func (s *Store) Add(ref ImageRef, coords Coords, label string) (box Box, ok bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Box{}, false
	}

	s.nextID++
	box = Box{ID: s.nextID, Coords: coords, Label: label}
	s.images[ref.Path] = append(s.images[ref.Path], box)
	return box, true
}

// Remove deletes the box with the given ID from the image. Unknown IDs are ignored.
func (s *Store) Remove(ref ImageRef, id uint64) {
	boxes := s.images[ref.Path]
	for i, b := range boxes {
		if b.ID == id {
			// Copy so that slices previously returned by List are not disturbed.
			kept := make([]Box, 0, len(boxes)-1)
			kept = append(kept, boxes[:i]...)
			s.images[ref.Path] = append(kept, boxes[i+1:]...)
			return
		}
	}
}

// List returns the boxes of the image in insertion order. The caller may not modify the result.
func (s *Store) List(ref ImageRef) []Box {
	return s.images[ref.Path]
}

// Count is the number of boxes on the image.
func (s *Store) Count(ref ImageRef) int {
	return len(s.images[ref.Path])
}

// Get returns the box with the given ID on the image.
func (s *Store) Get(ref ImageRef, id uint64) (Box, bool) {
	for _, b := range s.images[ref.Path] {
		if b.ID == id {
			return b, true
		}
	}
	return Box{}, false
}

// HitTest returns the topmost box containing the image-space point p. Later boxes are on top of
// earlier ones.
func (s *Store) HitTest(ref ImageRef, p Point) (Box, bool) {
	boxes := s.images[ref.Path]
	for i := len(boxes) - 1; i >= 0; i-- {
		if boxes[i].Coords.Contains(p) {
			return boxes[i], true
		}
	}
	return Box{}, false
}
