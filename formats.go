package boxlabel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format is a label format that can be written in addition to the YOLO dataset.
type Format string

// The supported extra label formats.
const (
	Kitti    Format = "kitti"
	Sloth    Format = "sloth"
	TFRecord Format = "tfrecord"
	VIA      Format = "via" // VGG Image Annotator
)

// ParseFormat returns the format named s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Kitti, Sloth, TFRecord, VIA:
		return f, nil
	}
	return "", fmt.Errorf("unknown label format %q", s)
}

// ParseFormats parses a list of format names, ignoring "yolo" which is always written.
func ParseFormats(names []string) ([]Format, error) {
	formats := make([]Format, 0, len(names))
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), "yolo") {
			continue
		}
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// writeExtraFormats writes data in every format listed in opts.ExtraFormats below root.
func writeExtraFormats(root string, data AnnotatedFiles, m ClassManifest,
		opts ExportOptions) error {

	for _, f := range opts.ExtraFormats {
		var err error
		switch f {
		case Kitti:
			dir := filepath.Join(root, string(Kitti))
			if err := os.MkdirAll(dir, 0755); err != nil {
				return &WriteError{Path: dir, Err: err}
			}
			err = WriteKitti(dir, ToKitti(data))
		case Sloth:
			err = WriteSloth(filepath.Join(root, "sloth.json"), ToSloth(data))
		case TFRecord:
			dir := filepath.Join(root, string(TFRecord))
			if err := os.MkdirAll(dir, 0755); err != nil {
				return &WriteError{Path: dir, Err: err}
			}
			err = WriteTFRecord(filepath.Join(dir, "data.record"),
				filepath.Join(dir, "label_map.pbtxt"), data, m, opts.TFRecordShards)
		case VIA:
			err = WriteVIA(filepath.Join(root, "via.json"), ToVIA(data))
		default:
			err = fmt.Errorf("unsupported output format %q", f)
		}
		if err != nil {
			return err
		}
	}

	return nil
}
