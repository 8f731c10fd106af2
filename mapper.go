package boxlabel

// Conversion between display-space and image-space coordinates.

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidScale is returned when a scale factor or the dimensions it is derived from are not
// positive.
var ErrInvalidScale = errors.New("invalid scale")

// Mapper converts points between display-space and image-space using one uniform scale factor.
//
// The zero value is not usable; construct it with NewMapper or NewMapperWithScale.
type Mapper struct {
	scale float64
}

// NewMapper computes the uniform scale that fits an image of imgWidth x imgHeight pixels into a
// display area of areaWidth x areaHeight, preserving the aspect ratio.
//
// If allowUpscale is false the scale is capped at 1, so that small images are shown at their
// natural size. Use NewMapperWithScale(1) to show images without any scaling.
func NewMapper(imgWidth, imgHeight int, areaWidth, areaHeight float64, allowUpscale bool) (
		Mapper, error) {

	if imgWidth <= 0 || imgHeight <= 0 {
		return Mapper{}, fmt.Errorf("%w: image size %dx%d", ErrInvalidScale, imgWidth, imgHeight)
	}
	if areaWidth <= 0 || areaHeight <= 0 || math.IsNaN(areaWidth) || math.IsNaN(areaHeight) {
		return Mapper{}, fmt.Errorf("%w: display area %gx%g", ErrInvalidScale, areaWidth, areaHeight)
	}

	scale := math.Min(areaWidth/float64(imgWidth), areaHeight/float64(imgHeight))
	if !allowUpscale && scale > 1 {
		scale = 1
	}
	return NewMapperWithScale(scale)
}

// NewMapperWithScale returns a Mapper for a known scale factor.
func NewMapperWithScale(scale float64) (Mapper, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return Mapper{}, fmt.Errorf("%w: %g", ErrInvalidScale, scale)
	}
	return Mapper{scale: scale}, nil
}

// Scale is the display size of one image pixel.
func (m Mapper) Scale() float64 {
	return m.scale
}

// Valid reports whether m was constructed with a usable scale.
func (m Mapper) Valid() bool {
	return m.scale > 0
}

// ToDisplay maps an image-space point to display-space.
func (m Mapper) ToDisplay(p Point) Point {
	return Point{X: p.X * m.scale, Y: p.Y * m.scale}
}

// ToImage maps a display-space point to image-space.
func (m Mapper) ToImage(p Point) Point {
	return Point{X: p.X / m.scale, Y: p.Y / m.scale}
}

// CoordsToDisplay maps image-space box corners to display-space.
func (m Mapper) CoordsToDisplay(c Coords) Coords {
	return c.Scale(m.scale)
}

// DisplaySize is the size of an image of width x height pixels once scaled.
func (m Mapper) DisplaySize(width, height int) (int, int) {
	return int(float64(width) * m.scale), int(float64(height) * m.scale)
}
