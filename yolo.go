package boxlabel

// YOLO label files and the data.yaml class manifest.

import (
	"bufio"
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Placeholder dataset split paths written to the manifest, to be edited by the user.
const (
	trainPlaceholder = "/path/to/train/images"
	valPlaceholder   = "/path/to/val/images"
	testPlaceholder  = "/path/to/test/images"
)

// writeLabelFile writes one record per line to path.
func writeLabelFile(path string, records []Record) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() {
		closeWithErrCheck(file, &err)
		if err != nil {
			if _, ok := err.(*WriteError); !ok {
				err = &WriteError{Path: path, Err: err}
			}
		}
	}()

	w := bufio.NewWriter(file)
	for _, r := range records {
		if _, err := fmt.Fprintln(w, r.String()); err != nil {
			return err
		}
	}
	return w.Flush()
}

// manifestNode builds the YAML document of the class manifest.
func manifestNode(m ClassManifest) *yaml.Node {
	str := func(v string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
	}
	integer := func(v int) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(v)}
	}
	withLineComment := func(n *yaml.Node, comment string) *yaml.Node {
		n.LineComment = comment
		return n
	}

	names := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i, name := range m.Names {
		v := str(name)
		v.Style = yaml.DoubleQuotedStyle
		names.Content = append(names.Content, integer(i), v)
	}

	trainKey := str("train")
	trainKey.HeadComment = "# Define the paths to the training, validation, and test data"
	namesKey := str("names")
	namesKey.HeadComment = "# Define the names and indices of the classes (labels)"
	ncKey := str("nc")
	ncKey.HeadComment = "# Define the number of classes"

	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	root.Content = []*yaml.Node{
		trainKey, withLineComment(str(trainPlaceholder), "# Path to training images"),
		str("val"), withLineComment(str(valPlaceholder), "# Path to validation images"),
		str("test"), withLineComment(str(testPlaceholder), "# Path to test images (optional)"),
		namesKey, names,
		ncKey, withLineComment(integer(m.NC()), "# Number of classes"),
	}

	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
}

// encodeManifest renders the class manifest as YAML.
func encodeManifest(m ClassManifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(manifestNode(m)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeManifest writes the class manifest to path.
func writeManifest(path string, m ClassManifest) error {
	enc, err := encodeManifest(m)
	if err != nil {
		return fmt.Errorf("failed to encode the class manifest: %w", err)
	}
	if err := ioutil.WriteFile(path, enc, 0644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
