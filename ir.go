package boxlabel

// The intermediate annotation representation shared by all label writers.

import (
	"fmt"
	"log"
	"strings"
)

// Annotation is the intermediate representation of an object label.
type Annotation struct {
	Coords Coords // Normalized, absolute x1, y1, x2, y2 offsets from the top-left corner.
	Label  string
}

// Width is the object width from a.Coords.
func (a Annotation) Width() float64 {
	return a.Coords[2] - a.Coords[0]
}

// Height is the object height from a.Coords.
func (a Annotation) Height() float64 {
	return a.Coords[3] - a.Coords[1]
}

// AnnotatedFile is the intermediate representation of file metadata.
type AnnotatedFile struct {
	Annotations []Annotation // The annotations, in the order they were drawn.
	FilePath    string       // The annotated file.
	Width       int          // The natural image width in pixels.
	Height      int          // The natural image height in pixels.
}

// AnnotatedFiles is the annotation metadata for a list of files.
type AnnotatedFiles []AnnotatedFile

// FromSession converts the boxes of every annotated image in s, in navigation order. Images
// without boxes are left out.
func FromSession(s *Session) AnnotatedFiles {
	store := s.Store()
	data := make(AnnotatedFiles, 0, len(s.Images()))
	for _, ref := range s.Images() {
		boxes := store.List(ref)
		if len(boxes) == 0 {
			continue
		}

		f := AnnotatedFile{
			Annotations: make([]Annotation, len(boxes)),
			FilePath:    ref.Path,
			Width:       ref.Width,
			Height:      ref.Height,
		}
		for i, b := range boxes {
			f.Annotations[i] = Annotation{Coords: b.Coords.Normalize(), Label: b.Label}
		}
		data = append(data, f)
	}

	return data
}

// MapLabels replaces label (sub-)strings with substitution values, as specified in mappings.
//
// The format of mappings is old=new.
func (data AnnotatedFiles) MapLabels(mappings []string) error {
	if len(mappings) == 0 {
		return nil
	}

	// Extract the individual old and new strings to map between.
	replacements := make([]struct{ old, new string }, len(mappings))
	for i, v := range mappings {
		a := strings.Split(v, "=")
		if len(a) != 2 || a[0] == "" {
			return fmt.Errorf("invalid mapping: %v", v)
		}

		replacements[i].old = a[0]
		replacements[i].new = a[1]
	}

	// Apply the replacements, in order, to all labels. A label must never become empty.
	count := 0
	for _, f := range data {
		for i := range f.Annotations {
			a := &f.Annotations[i]

			oldLabel := a.Label
			for _, r := range replacements {
				a.Label = strings.Replace(a.Label, r.old, r.new, -1)
			}
			a.Label = strings.TrimSpace(a.Label)
			if a.Label == "" {
				return fmt.Errorf("the label mappings turn %q into an empty label", oldLabel)
			}

			if a.Label != oldLabel {
				count++
			}
		}
	}

	log.Printf("The label mappings changed %d labels", count)
	return nil
}

// Filter removes annotations whose bounding box is narrower than minBboxWidth or lower than
// minBboxHeight and returns the result. Files left without annotations are removed as well. The
// order of files and of annotations is preserved. A minimum of zero disables the respective test.
func (data AnnotatedFiles) Filter(minBboxWidth, minBboxHeight float64) AnnotatedFiles {
	if minBboxWidth <= 0 && minBboxHeight <= 0 {
		return data
	}

	numLabelsBeforeFilter := 0
	numLabelsAfterFilter := 0

	filtered := make(AnnotatedFiles, 0, len(data))
	for _, f := range data {
		numLabelsBeforeFilter += len(f.Annotations)

		kept := make([]Annotation, 0, len(f.Annotations))
		for _, a := range f.Annotations {
			if minBboxWidth > a.Width() || minBboxHeight > a.Height() {
				continue
			}
			kept = append(kept, a)
		}

		numLabelsAfterFilter += len(kept)
		if len(kept) == 0 {
			continue
		}
		f.Annotations = kept
		filtered = append(filtered, f)
	}

	log.Printf("Filtered out %d labels and %d files",
		numLabelsBeforeFilter-numLabelsAfterFilter, len(data)-len(filtered))
	return filtered
}

// Labels returns the distinct labels of all annotations, in order of first occurrence.
func (data AnnotatedFiles) Labels() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, f := range data {
		for _, a := range f.Annotations {
			if !seen[a.Label] {
				seen[a.Label] = true
				labels = append(labels, a.Label)
			}
		}
	}
	return labels
}
