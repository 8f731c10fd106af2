package boxlabel

// KITTI specific functionality.

import (
	"fmt"
	"os"
	"path/filepath"
)

// KITTIAnnotation is a single annotation within a KITTI file.
type KITTIAnnotation struct {
	Coords Coords // x1, y1, x2, y2
	Label  string
}

// KITTIAnnotatedFile defines the KITTI annotation structure for a single file.
type KITTIAnnotatedFile struct {
	Annotations []KITTIAnnotation
	FilePath    string
}

// ToKitti converts the intermediate representation to KITTI format.
func ToKitti(data []AnnotatedFile) []KITTIAnnotatedFile {
	kittiData := make([]KITTIAnnotatedFile, 0, len(data))
	for _, fileData := range data {
		kittiFileData := KITTIAnnotatedFile{
			Annotations: make([]KITTIAnnotation, len(fileData.Annotations)),
			FilePath:    fileData.FilePath,
		}
		for i, a := range fileData.Annotations {
			kittiFileData.Annotations[i] = KITTIAnnotation{Coords: a.Coords, Label: a.Label}
		}
		kittiData = append(kittiData, kittiFileData)
	}

	return kittiData
}

// WriteKitti writes data to dirPath, one file per element.
//
// KITTI labels are space separated, so white space within a label is replaced by underscores.
func WriteKitti(dirPath string, data []KITTIAnnotatedFile) error {
	dirInfo, err := os.Stat(dirPath)
	if err != nil || !dirInfo.IsDir() {
		return &WriteError{Path: dirPath, Err: fmt.Errorf("cannot access directory: %v", err)}
	}

	for _, fileData := range data {
		// Use the image file name with .txt extension as label file name.
		_, baseNoExt, _, err := splitPath(fileData.FilePath)
		if err != nil {
			return err
		}
		filePath := filepath.Join(dirPath, baseNoExt+".txt")
		if err := writeKittiFile(filePath, fileData.Annotations); err != nil {
			return &WriteError{Path: filePath, Err: err}
		}
	}

	return nil
}

func writeKittiFile(path string, annotations []KITTIAnnotation) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithErrCheck(file, &err)

	for _, a := range annotations {
		_, err = fmt.Fprintf(file,
			"%s 0.0 0 0.0 %.2f %.2f %.2f %.2f 0.0 0.0 0.0 0.0 0.0 0.0 0.0\n",
			fieldSafe(a.Label), a.Coords[0], a.Coords[1], a.Coords[2], a.Coords[3])
		if err != nil {
			return err
		}
	}

	return nil
}
