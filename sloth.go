package boxlabel

// Sloth specific functionality.

import (
	"encoding/json"
	"io/ioutil"
)

// SlothAnnotation is a single annotation within a Sloth file.
type SlothAnnotation struct {
	Class  string  `json:"class,omitempty"`
	Type   string  `json:"type,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SlothAnnotatedFile defines the Sloth annotation structure for a single file.
type SlothAnnotatedFile struct {
	Annotations []SlothAnnotation `json:"annotations"`
	Class       string            `json:"class,omitempty"`
	FilePath    string            `json:"filename,omitempty"`
}

// ToSloth converts the intermediate representation to Sloth format.
func ToSloth(data []AnnotatedFile) []SlothAnnotatedFile {
	slothData := make([]SlothAnnotatedFile, 0, len(data))
	for _, fileData := range data {
		slothFileData := SlothAnnotatedFile{
			Annotations: make([]SlothAnnotation, len(fileData.Annotations)),
			Class:       "image",
			FilePath:    fileData.FilePath,
		}
		for i, a := range fileData.Annotations {
			slothFileData.Annotations[i] = SlothAnnotation{
				Class:  a.Label,
				Type:   "rect",
				X:      a.Coords[0],
				Y:      a.Coords[1],
				Width:  a.Width(),
				Height: a.Height(),
			}
		}
		slothData = append(slothData, slothFileData)
	}

	return slothData
}

// WriteSloth writes the Sloth annotations to outFile.
func WriteSloth(outFile string, data []SlothAnnotatedFile) error {
	enc, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(outFile, enc, 0644); err != nil {
		return &WriteError{Path: outFile, Err: err}
	}
	return nil
}
