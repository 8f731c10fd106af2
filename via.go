package boxlabel

// VGG Image Annotator (VIA) specific functionality.

import (
	"encoding/json"
	"io/ioutil"
	"math"
)

// VIAShape describes the shape of an annotation.
type VIAShape struct {
	Name   string `json:"name"`
	X      int32  `json:"x"`
	Y      int32  `json:"y"`
	Width  int32  `json:"width"`
	Height int32  `json:"height"`
}

// VIARegionAnnotation is a single region annotation for a particular image in a VIA file.
type VIARegionAnnotation struct {
	Attributes map[string]string `json:"region_attributes"`
	Shape      VIAShape          `json:"shape_attributes"`
}

// VIAAnnotatedFile defines the VIA annotation structure for a single file.
type VIAAnnotatedFile struct {
	Annotations []VIARegionAnnotation `json:"regions"`
	Attributes  map[string]string     `json:"file_attributes"`
	FilePath    string                `json:"filename"`
	Size        int64                 `json:"size"`
}

// VIAOptionsAttribute defines attributes of type "radio" or "dropdown".
type VIAOptionsAttribute struct {
	Type           string            `json:"type"` // "radio" or "dropdown"
	Description    string            `json:"description"`
	Options        map[string]string `json:"options"`
	DefaultOptions map[string]bool   `json:"default_options"`
}

// VIAAttributes defines the VIA attribute metadata.
type VIAAttributes struct {
	Region map[string]VIAOptionsAttribute `json:"region"`
	File   map[string]VIAOptionsAttribute `json:"file"`
}

// VIAProject defines the VIA project structure.
type VIAProject struct {
	Attributes    VIAAttributes               `json:"_via_attributes"`
	ImageMetadata map[string]VIAAnnotatedFile `json:"_via_img_metadata"`
	// Must exist for VIA to load the project. Default values will be used.
	Settings struct{} `json:"_via_settings"`
}

const viaLabelAttribute = "Label" // The attribute key used for labels.

// ToVIA converts the intermediate representation to VIA format.
//
// The labels become the options of a "radio" region attribute. Coordinates are rounded to whole
// pixels.
func ToVIA(irData []AnnotatedFile) VIAProject {
	labelAttr := VIAOptionsAttribute{
		Type:           "radio",
		Options:        make(map[string]string),
		DefaultOptions: make(map[string]bool),
	}
	viaData := VIAProject{
		Attributes: VIAAttributes{
			Region: map[string]VIAOptionsAttribute{viaLabelAttribute: labelAttr},
			File:   make(map[string]VIAOptionsAttribute),
		},
		ImageMetadata: make(map[string]VIAAnnotatedFile, len(irData)),
	}

	round := func(v float64) int32 { return int32(math.Round(v)) }

	for _, irFile := range irData {
		viaFile := VIAAnnotatedFile{
			Annotations: make([]VIARegionAnnotation, 0, len(irFile.Annotations)),
			Attributes:  make(map[string]string), // Must not be nil as that becomes JSON null.
			FilePath:    irFile.FilePath,
		}
		if info, err := fileSize(irFile.FilePath); err == nil {
			viaFile.Size = info
		}

		for _, a := range irFile.Annotations {
			x1, y1, x2, y2 := round(a.Coords[0]), round(a.Coords[1]), round(a.Coords[2]),
				round(a.Coords[3])
			viaFile.Annotations = append(viaFile.Annotations, VIARegionAnnotation{
				Attributes: map[string]string{viaLabelAttribute: a.Label},
				Shape:      VIAShape{Name: "rect", X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1},
			})
			labelAttr.Options[a.Label] = ""
		}
		viaData.ImageMetadata[viaFile.FilePath] = viaFile
	}

	return viaData
}

// WriteVIA writes the VIA project data to outFile.
func WriteVIA(outFile string, data VIAProject) error {
	enc, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(outFile, enc, 0644); err != nil {
		return &WriteError{Path: outFile, Err: err}
	}
	return nil
}
