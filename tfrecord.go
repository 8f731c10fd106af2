package boxlabel

// TFRecord object detection specific functionality.

import (
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"github.com/golang/protobuf/proto"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
	protos "github.com/sensorable/boxlabel/protos"
)

// TFFeatureMap maps feature names to their values. Values must be convertible to
// tensorflow.Feature.
type TFFeatureMap map[string]interface{}

// TFRecordAnnotatedFile defines the TFRecord annotation structure for a single file.
type TFRecordAnnotatedFile struct {
	Annotations TFFeatureMap
	FilePath    string
}

// tfLabelID is the label map id of class index idx. Id 0 is reserved for the background.
func tfLabelID(idx int) int32 {
	return int32(idx) + 1
}

// toTFRecord converts the intermediate representation for a single file to the TFRecord format.
func toTFRecord(fileData AnnotatedFile, m ClassManifest) (TFRecordAnnotatedFile, error) {
	// Get the image format. The size is already known.
	_, format, err := decodeImageConfig(fileData.FilePath)
	if err != nil {
		return TFRecordAnnotatedFile{}, fmt.Errorf("failed to decode the image metadata: %w", err)
	}

	// Read the image data.
	imgData, err := readFile(fileData.FilePath)
	if err != nil {
		return TFRecordAnnotatedFile{}, fmt.Errorf("failed to read the image: %w", err)
	}

	// Prepare the feature map for the per file data.
	f := make(TFFeatureMap, 16)
	f["image/height"] = fileData.Height
	f["image/width"] = fileData.Width
	f["image/filename"] = fileData.FilePath
	f["image/source_id"] = fileData.FilePath
	f["image/encoded"] = imgData
	f["image/format"] = format

	// Prepare the per label data.
	numLabels := len(fileData.Annotations)
	xmins := make([]float32, numLabels)
	ymins := make([]float32, numLabels)
	xmaxs := make([]float32, numLabels)
	ymaxs := make([]float32, numLabels)
	classes := make([]string, numLabels)
	classIDs := make([]int64, numLabels)
	width, height := float32(fileData.Width), float32(fileData.Height)
	for i, a := range fileData.Annotations {
		xmins[i] = float32(a.Coords[0]) / width
		ymins[i] = float32(a.Coords[1]) / height
		xmaxs[i] = float32(a.Coords[2]) / width
		ymaxs[i] = float32(a.Coords[3]) / height
		classes[i] = a.Label

		idx, ok := m.Index(a.Label)
		if !ok {
			return TFRecordAnnotatedFile{}, fmt.Errorf("label %q is missing from the class manifest",
				a.Label)
		}
		classIDs[i] = int64(tfLabelID(idx))
	}
	f["image/object/bbox/xmin"] = xmins
	f["image/object/bbox/ymin"] = ymins
	f["image/object/bbox/xmax"] = xmaxs
	f["image/object/bbox/ymax"] = ymaxs
	f["image/object/class/text"] = classes
	f["image/object/class/label"] = classIDs

	return TFRecordAnnotatedFile{
		Annotations: f,
		FilePath:    fileData.FilePath,
	}, nil
}

// WriteTFRecord does a streaming conversion, serialisation and file write for the annotation data
// to one or more TFRecord files stored under recordFilePath (with suffixes added when numShards>1).
//
// The label map derived from m is written to labelMapPath.
func WriteTFRecord(recordFilePath, labelMapPath string, data []AnnotatedFile, m ClassManifest,
		numShards int) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	if numShards <= 0 {
		numShards = 1
	}
	if numShards > len(data) && len(data) > 0 {
		numShards = len(data)
	}

	fmtShardSuffix := func(idx int) string {
		return fmt.Sprintf("-%05d-of-%05d", idx, numShards)
	}

	var shardFile *os.File
	closeShard := func() error {
		if shardFile == nil {
			return nil
		}
		path := shardFile.Name()
		cerr := shardFile.Close()
		shardFile = nil
		if cerr != nil {
			return &WriteError{Path: path, Err: cerr}
		}
		return nil
	}
	defer func() {
		if cerr := closeShard(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	shardSize := int(math.Ceil(float64(len(data)) / float64(numShards)))
	shardIdx := -1

	// Convert and serialise one data element at a time.
	for i, fileData := range data {
		// Check if a new shard file needs to be opened for writing.
		if i%shardSize == 0 {
			shardIdx++
			if err := closeShard(); err != nil {
				return err
			}

			shardPath := recordFilePath
			if numShards > 1 {
				shardPath += fmtShardSuffix(shardIdx)
			}
			f, err := os.Create(shardPath)
			if err != nil {
				return &WriteError{Path: shardPath, Err: err}
			}
			shardFile = f
		}

		// Convert the file data to an example.
		tfFileData, err := toTFRecord(fileData, m)
		if err != nil {
			log.Printf("Failed to convert %q: %v", fileData.FilePath, err)
			continue
		}
		tfExample := example.New(tfFileData.Annotations)

		if err := writeTFRecordExample(shardFile, tfExample); err != nil {
			return &WriteError{Path: shardFile.Name(), Err: err}
		}
	}

	return saveTFRecordLabelMap(labelMapPath, m)
}

// writeTFRecordExample serialises the example and writes it as a TFRecord to w.
func writeTFRecordExample(w io.Writer, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}

	return tfrecord.Write(w, enc)
}

// saveTFRecordLabelMap converts the class manifest to a label map in prototxt format and writes it
// to path. Items are ordered by id.
func saveTFRecordLabelMap(path string, m ClassManifest) (err error) {
	siLabelMap := &protos.StringIntLabelMap{}
	siLabelMap.Item = make([]*protos.StringIntLabelMapItem, 0, m.NC())
	for i, name := range m.Names {
		siLabelMap.Item = append(siLabelMap.Item, &protos.StringIntLabelMapItem{
			Name: proto.String(name),
			Id:   proto.Int32(tfLabelID(i)),
		})
	}

	file, err := os.Create(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer closeWithErrCheck(file, &err)

	if err := proto.MarshalText(file, siLabelMap); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	return nil
}
