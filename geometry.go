package boxlabel

// Geometry shared by the mapper, the store and the exporters.

import (
	"fmt"
	"math"
	"path/filepath"
)

// Point is a 2D location. Whether it is in display-space or image-space depends on the caller.
type Point struct {
	X, Y float64
}

// Coords are the absolute x1, y1, x2, y2 corner offsets from the top-left corner of an image.
//
// The corners may be inverted (x1 > x2 or y1 > y2) when a box is drawn from the bottom-right to
// the top-left. Use Normalize before any geometric test.
type Coords [4]float64

// CoordsFrom returns the Coords spanned by the corner points a and b.
func CoordsFrom(a, b Point) Coords {
	return Coords{a.X, a.Y, b.X, b.Y}
}

// Normalize returns c with its corners ordered so that x1 <= x2 and y1 <= y2.
func (c Coords) Normalize() Coords {
	return Coords{
		math.Min(c[0], c[2]),
		math.Min(c[1], c[3]),
		math.Max(c[0], c[2]),
		math.Max(c[1], c[3]),
	}
}

// Width is the horizontal extent of the normalized box.
func (c Coords) Width() float64 {
	return math.Abs(c[2] - c[0])
}

// Height is the vertical extent of the normalized box.
func (c Coords) Height() float64 {
	return math.Abs(c[3] - c[1])
}

// Contains reports whether p lies within the normalized rectangle, edges included.
func (c Coords) Contains(p Point) bool {
	n := c.Normalize()
	return p.X >= n[0] && p.X <= n[2] && p.Y >= n[1] && p.Y <= n[3]
}

// Scale multiplies all corners by factor.
func (c Coords) Scale(factor float64) Coords {
	return Coords{c[0] * factor, c[1] * factor, c[2] * factor, c[3] * factor}
}

// ImageRef identifies an annotated image and carries its natural pixel size.
type ImageRef struct {
	Path   string // Identity of the image.
	Width  int
	Height int
}

// Name is the base file name of the image.
func (r ImageRef) Name() string {
	return filepath.Base(r.Path)
}

// Stem is the base file name without its extension.
func (r ImageRef) Stem() string {
	name := r.Name()
	return name[:len(name)-len(filepath.Ext(name))]
}

// Box is a labelled rectangle on one image. Coords are in image-space.
//
// Boxes are values: the store replaces them rather than editing them in place.
type Box struct {
	ID     uint64
	Coords Coords
	Label  string
}

// String formats the box the way the box list presents it.
func (b Box) String() string {
	return fmt.Sprintf("Label='%s', Dimensions=(%g, %g) to (%g, %g)",
		b.Label, b.Coords[0], b.Coords[1], b.Coords[2], b.Coords[3])
}
