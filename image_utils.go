package boxlabel

import (
	"fmt"
	"image"
	_ "image/jpeg" // Register the decoders for the recognised formats.
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
)

// decodeImageConfig opens the file at path and returns the results of image.DecodeConfig.
func decodeImageConfig(path string) (config image.Config, format string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer file.Close()

	return image.DecodeConfig(file)
}

// LoadImageRef reads the natural dimensions of the image at path.
func LoadImageRef(path string) (ImageRef, error) {
	config, _, err := decodeImageConfig(path)
	if err != nil {
		return ImageRef{}, fmt.Errorf("cannot read the image size of %q: %w", path, err)
	}
	if config.Width <= 0 || config.Height <= 0 {
		return ImageRef{}, fmt.Errorf("%w: image %q has size %dx%d", ErrInvalidScale, path,
			config.Width, config.Height)
	}
	return ImageRef{Path: path, Width: config.Width, Height: config.Height}, nil
}

// DisplayImage loads the image of ref and resamples it to the scale of m with a Lanczos filter,
// for a renderer to show. At scale 1 the decoded image is returned unchanged.
func DisplayImage(ref ImageRef, m Mapper) (image.Image, error) {
	if !m.Valid() {
		return nil, ErrInvalidScale
	}
	img, err := imaging.Open(ref.Path)
	if err != nil {
		return nil, &ImageError{Path: ref.Path, Err: err}
	}
	if m.Scale() == 1 {
		return img, nil
	}

	width, height := m.DisplaySize(ref.Width, ref.Height)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}
