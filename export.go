package boxlabel

// The export pipeline: class indexing, normalized label records and the dataset layout.

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Names of the entries written below the export root.
const (
	DatasetDirName   = "dataset"
	LabelsDirName    = "labels"
	ManifestFileName = "data.yaml"
)

// ImageError reports a source image that could not be read during an export. The image is
// skipped and the export continues.
type ImageError struct {
	Path string
	Err  error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("cannot read image %q: %v", e.Path, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// ErrStemCollision is wrapped by the *WriteError returned when two annotated images share a base
// name without extension, and hence a label file. It is detected before anything is written.
var ErrStemCollision = errors.New("label file name collision")

// WriteError reports an output file that could not be written, or would have overwritten the
// output of another image (see ErrStemCollision). It aborts the export; files that were written
// before are left in place.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("cannot write %q: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ClassManifest lists the distinct labels in ascending byte order. A label's class index is its
// position in Names.
type ClassManifest struct {
	Names []string
}

// NewClassManifest builds the manifest for the given labels. Duplicates are removed.
func NewClassManifest(labels []string) ClassManifest {
	seen := make(map[string]bool, len(labels))
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			names = append(names, l)
		}
	}
	sort.Strings(names)
	return ClassManifest{Names: names}
}

// NC is the number of classes.
func (m ClassManifest) NC() int {
	return len(m.Names)
}

// Index returns the class index of label.
func (m ClassManifest) Index(label string) (int, bool) {
	i := sort.SearchStrings(m.Names, label)
	if i < len(m.Names) && m.Names[i] == label {
		return i, true
	}
	return 0, false
}

// Record is one normalized, class-indexed label line. All values are ratios of the image size.
type Record struct {
	ClassIndex int
	CenterX    float64
	CenterY    float64
	Width      float64
	Height     float64
}

// String formats the record as a label file line, without the line break.
func (r Record) String() string {
	return fmt.Sprintf("%d %f %f %f %f", r.ClassIndex, r.CenterX, r.CenterY, r.Width, r.Height)
}

// inUnitRange reports whether all values of the record lie in [0, 1].
func (r Record) inUnitRange() bool {
	for _, v := range [...]float64{r.CenterX, r.CenterY, r.Width, r.Height} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return false
		}
	}
	return true
}

// ExportOptions control optional transformations of the exported data. The zero value exports
// the boxes unchanged.
type ExportOptions struct {
	LabelMappings  []string // old=new label (sub-)string replacements applied before indexing.
	MinBboxWidth   float64  // Boxes narrower than this (in image pixels) are dropped.
	MinBboxHeight  float64  // Boxes lower than this (in image pixels) are dropped.
	ClampCoords    bool     // Clip boxes to the image bounds instead of exporting raw values.
	ExtraFormats   []Format // Additional label formats to write next to the dataset.
	TFRecordShards int      // Number of TFRecord shard files, 1 if not positive.
}

// Dataset is the export of a session, ready to be written.
type Dataset struct {
	Files    AnnotatedFiles // Annotated images, in navigation order.
	Records  [][]Record     // Label records per element of Files, in drawing order.
	Manifest ClassManifest
}

// BuildDataset collects every image of s with at least one box, assigns class indices and
// computes the normalized records. It does not touch the file system.
func BuildDataset(s *Session, opts ExportOptions) (*Dataset, error) {
	files := FromSession(s)
	if err := files.MapLabels(opts.LabelMappings); err != nil {
		return nil, err
	}
	files = files.Filter(opts.MinBboxWidth, opts.MinBboxHeight)

	d := &Dataset{
		Files:    files,
		Records:  make([][]Record, len(files)),
		Manifest: NewClassManifest(files.Labels()),
	}
	for i, f := range files {
		records, err := toRecords(f, d.Manifest, opts.ClampCoords)
		if err != nil {
			return nil, err
		}
		d.Records[i] = records
	}

	return d, nil
}

// toRecords converts the annotations of one file to normalized records.
func toRecords(f AnnotatedFile, m ClassManifest, clamp bool) ([]Record, error) {
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("%w: image %q has size %dx%d", ErrInvalidScale, f.FilePath,
			f.Width, f.Height)
	}
	w, h := float64(f.Width), float64(f.Height)

	records := make([]Record, len(f.Annotations))
	for i, a := range f.Annotations {
		c := a.Coords.Normalize()
		if clamp {
			c = Coords{clip(c[0], w), clip(c[1], h), clip(c[2], w), clip(c[3], h)}
		}

		idx, ok := m.Index(a.Label)
		if !ok {
			return nil, fmt.Errorf("label %q is missing from the class manifest", a.Label)
		}
		r := Record{
			ClassIndex: idx,
			CenterX:    (c[0] + c[2]) / 2 / w,
			CenterY:    (c[1] + c[3]) / 2 / h,
			Width:      (c[2] - c[0]) / w,
			Height:     (c[3] - c[1]) / h,
		}
		if !r.inUnitRange() {
			log.Printf("Box %d of %q extends past the image bounds: %v", i+1, f.FilePath, r)
		}
		records[i] = r
	}

	return records, nil
}

func clip(v, limit float64) float64 {
	return math.Min(math.Max(v, 0), limit)
}

// ExportReport summarises a successful export.
type ExportReport struct {
	LabelFiles []string      // The label files written, in navigation order.
	Skipped    []*ImageError // Source images that could not be read.
}

// WriteDataset writes d below root: a verbatim copy of every annotated image to dataset/, the
// label records to labels/<stem>.txt and the class manifest to data.yaml, followed by any extra
// label formats requested in opts.
//
// Unreadable source images are skipped and reported. A *WriteError aborts the export.
func WriteDataset(root string, d *Dataset, opts ExportOptions) (ExportReport, error) {
	var report ExportReport

	datasetDir := filepath.Join(root, DatasetDirName)
	labelsDir := filepath.Join(root, LabelsDirName)
	for _, dir := range []string{datasetDir, labelsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return report, &WriteError{Path: dir, Err: err}
		}
	}

	// Two images with the same stem would share a label file.
	stems := make(map[string]string, len(d.Files))
	for _, f := range d.Files {
		_, baseNoExt, _, err := splitPath(f.FilePath)
		if err != nil {
			return report, err
		}
		if other, found := stems[baseNoExt]; found {
			return report, &WriteError{
				Path: filepath.Join(labelsDir, baseNoExt+".txt"),
				Err:  fmt.Errorf("%w: %q and %q", ErrStemCollision, other, f.FilePath),
			}
		}
		stems[baseNoExt] = f.FilePath
	}

	copied := make(AnnotatedFiles, 0, len(d.Files))
	for i, f := range d.Files {
		name := filepath.Base(f.FilePath)
		dst := filepath.Join(datasetDir, name)
		if err := copyFile(f.FilePath, dst); err != nil {
			if imgErr, ok := err.(*ImageError); ok {
				log.Printf("Skipping %q: %v", f.FilePath, imgErr.Err)
				report.Skipped = append(report.Skipped, imgErr)
				continue
			}
			return report, err
		}

		_, baseNoExt, _, _ := splitPath(f.FilePath)
		labelPath := filepath.Join(labelsDir, baseNoExt+".txt")
		if err := writeLabelFile(labelPath, d.Records[i]); err != nil {
			return report, err
		}
		report.LabelFiles = append(report.LabelFiles, labelPath)

		f.FilePath = dst
		copied = append(copied, f)
	}

	if err := writeManifest(filepath.Join(root, ManifestFileName), d.Manifest); err != nil {
		return report, err
	}

	if err := writeExtraFormats(root, copied, d.Manifest, opts); err != nil {
		return report, err
	}

	if len(report.Skipped) > 0 {
		log.Printf("Skipped %d unreadable images", len(report.Skipped))
	}
	log.Printf("Exported labels for %d images with %d classes to %s",
		len(report.LabelFiles), d.Manifest.NC(), root)
	return report, nil
}

// Export builds the dataset of s and writes it below root.
func Export(s *Session, root string, opts ExportOptions) (*Dataset, ExportReport, error) {
	d, err := BuildDataset(s, opts)
	if err != nil {
		return nil, ExportReport{}, err
	}
	report, err := WriteDataset(root, d, opts)
	return d, report, err
}
