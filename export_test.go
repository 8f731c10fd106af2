package boxlabel

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type manifestDoc struct {
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	Test  string         `yaml:"test"`
	Names map[int]string `yaml:"names"`
	NC    int            `yaml:"nc"`
}

func parseManifest(t *testing.T, path string) manifestDoc {
	t.Helper()
	var doc manifestDoc
	if err := yaml.Unmarshal([]byte(readTestFile(t, path)), &doc); err != nil {
		t.Fatalf("invalid manifest: %v", err)
	}
	return doc
}

func TestNewClassManifest(t *testing.T) {
	m := NewClassManifest([]string{"dog", "cat", "dog", "Zebra", "ant"})
	expected := []string{"Zebra", "ant", "cat", "dog"}
	if strings.Join(m.Names, ",") != strings.Join(expected, ",") {
		t.Fatalf("expected %v, got %v", expected, m.Names)
	}
	if m.NC() != 4 {
		t.Errorf("expected 4 classes, got %d", m.NC())
	}
	if i, ok := m.Index("cat"); !ok || i != 2 {
		t.Errorf("expected cat at 2, got %d (%v)", i, ok)
	}
	if _, ok := m.Index("bird"); ok {
		t.Error("expected bird to be missing")
	}
}

func TestBuildDatasetRecords(t *testing.T) {
	s := newTestSession(imgA)
	drawBox(t, s, Point{30, 20}, Point{10, 10}, "cat")

	d, err := BuildDataset(s, ExportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Records) != 1 || len(d.Records[0]) != 1 {
		t.Fatalf("unexpected records %v", d.Records)
	}
	if got := d.Records[0][0].String(); got != "0 0.200000 0.300000 0.200000 0.200000" {
		t.Errorf("unexpected record %q", got)
	}
}

func TestBuildDatasetClamp(t *testing.T) {
	s := newTestSession(imgA)
	drawBox(t, s, Point{-10, 10}, Point{110, 60}, "wide")

	d, err := BuildDataset(s, ExportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if r := d.Records[0][0]; r.Width != 1.2 || r.inUnitRange() {
		t.Errorf("expected the raw out-of-range record, got %v", r)
	}

	d, err = BuildDataset(s, ExportOptions{ClampCoords: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Records[0][0].String(); got != "0 0.500000 0.600000 1.000000 0.800000" {
		t.Errorf("unexpected clamped record %q", got)
	}
}

func TestBuildDatasetOptions(t *testing.T) {
	s := newTestSession(imgA, imgB)
	drawBox(t, s, Point{60, 0}, Point{62, 2}, "tiny cat")
	drawBox(t, s, Point{0, 0}, Point{40, 40}, "big cat")
	s.Next()
	drawBox(t, s, Point{0, 0}, Point{3, 3}, "tiny dog")

	d, err := BuildDataset(s, ExportOptions{
		LabelMappings: []string{"big ="},
		MinBboxWidth:  5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Files) != 1 || d.Files[0].FilePath != imgA.Path {
		t.Fatalf("expected only the first image to survive, got %v", d.Files)
	}
	if d.Manifest.NC() != 1 || d.Manifest.Names[0] != "cat" {
		t.Errorf("unexpected manifest %v", d.Manifest.Names)
	}

	// The session itself is not modified.
	s.Prev()
	if s.Boxes()[1].Label != "big cat" {
		t.Error("the label mappings leaked into the session")
	}

	if _, err := BuildDataset(s, ExportOptions{LabelMappings: []string{"nonsense"}}); err == nil {
		t.Error("expected an invalid mapping to fail")
	}
}

func TestExportSingleImage(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	ref := writeTestPNG(t, src, "a.png", 100, 50)
	s := newTestSession(ref)
	drawBox(t, s, Point{10, 10}, Point{30, 20}, "cat")

	_, report, err := Export(s, out, ExportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.LabelFiles) != 1 || len(report.Skipped) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	labels := readTestFile(t, filepath.Join(out, LabelsDirName, "a.txt"))
	if labels != "0 0.200000 0.300000 0.200000 0.200000\n" {
		t.Errorf("unexpected label file %q", labels)
	}
	if readTestFile(t, filepath.Join(out, DatasetDirName, "a.png")) != readTestFile(t, ref.Path) {
		t.Error("the dataset image is not a verbatim copy")
	}

	manifestPath := filepath.Join(out, ManifestFileName)
	doc := parseManifest(t, manifestPath)
	if doc.NC != 1 || len(doc.Names) != 1 || doc.Names[0] != "cat" {
		t.Errorf("unexpected manifest %+v", doc)
	}
	if doc.Train != trainPlaceholder || doc.Val != valPlaceholder || doc.Test != testPlaceholder {
		t.Errorf("unexpected split paths %+v", doc)
	}
	raw := readTestFile(t, manifestPath)
	if !strings.Contains(raw, "\n  0: \"cat\"\n") {
		t.Errorf("expected a quoted class name in\n%s", raw)
	}
	if !strings.Contains(raw, "# Define the number of classes") {
		t.Errorf("expected the manifest comments in\n%s", raw)
	}
}

func TestExportSortsClasses(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	a := writeTestPNG(t, src, "a.png", 100, 50)
	b := writeTestPNG(t, src, "b.png", 40, 40)
	s := newTestSession(a, b)
	drawBox(t, s, Point{0, 0}, Point{50, 25}, "dog")
	s.Next()
	drawBox(t, s, Point{0, 0}, Point{20, 20}, "cat")

	if _, _, err := Export(s, out, ExportOptions{}); err != nil {
		t.Fatal(err)
	}

	doc := parseManifest(t, filepath.Join(out, ManifestFileName))
	if doc.NC != 2 || doc.Names[0] != "cat" || doc.Names[1] != "dog" {
		t.Fatalf("unexpected manifest %+v", doc)
	}
	if got := readTestFile(t, filepath.Join(out, LabelsDirName, "a.txt")); !strings.HasPrefix(got, "1 ") {
		t.Errorf("expected dog to be class 1, got %q", got)
	}
	if got := readTestFile(t, filepath.Join(out, LabelsDirName, "b.txt")); !strings.HasPrefix(got, "0 ") {
		t.Errorf("expected cat to be class 0, got %q", got)
	}
}

func TestExportSkipsImagesWithoutBoxes(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	a := writeTestPNG(t, src, "a.png", 100, 50)
	b := writeTestPNG(t, src, "b.png", 100, 50)
	s := newTestSession(a, b)
	drawBox(t, s, Point{0, 0}, Point{10, 10}, "cat")
	s.Select(0)
	s.DeleteSelected()
	s.Next()
	drawBox(t, s, Point{0, 0}, Point{10, 10}, "dog")

	_, report, err := Export(s, out, ExportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.LabelFiles) != 1 {
		t.Fatalf("expected one label file, got %v", report.LabelFiles)
	}
	for _, path := range []string{
		filepath.Join(out, LabelsDirName, "a.txt"),
		filepath.Join(out, DatasetDirName, "a.png"),
	} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected %s not to exist, got %v", path, err)
		}
	}
	doc := parseManifest(t, filepath.Join(out, ManifestFileName))
	if doc.NC != 1 || doc.Names[0] != "dog" {
		t.Errorf("unexpected manifest %+v", doc)
	}
}

func TestExportIsDeterministic(t *testing.T) {
	src := t.TempDir()
	a := writeTestPNG(t, src, "a.png", 100, 50)
	b := writeTestPNG(t, src, "b.png", 64, 48)
	s := newTestSession(a, b)
	drawBox(t, s, Point{5, 5}, Point{50, 40}, "zebra")
	drawBox(t, s, Point{1, 2}, Point{3, 4}, "ant")
	s.Next()
	drawBox(t, s, Point{10, 10}, Point{60, 30}, "moth")

	outputs := make([]map[string]string, 2)
	for i := range outputs {
		out := t.TempDir()
		if _, _, err := Export(s, out, ExportOptions{}); err != nil {
			t.Fatal(err)
		}
		outputs[i] = map[string]string{}
		for _, rel := range []string{ManifestFileName, "labels/a.txt", "labels/b.txt"} {
			outputs[i][rel] = readTestFile(t, filepath.Join(out, filepath.FromSlash(rel)))
		}
	}
	for rel, content := range outputs[0] {
		if outputs[1][rel] != content {
			t.Errorf("%s differs between exports", rel)
		}
	}
}

func TestExportReportsUnreadableImages(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	a := writeTestPNG(t, src, "a.png", 100, 50)
	b := writeTestPNG(t, src, "b.png", 100, 50)
	s := newTestSession(a, b)
	drawBox(t, s, Point{0, 0}, Point{10, 10}, "cat")
	s.Next()
	drawBox(t, s, Point{0, 0}, Point{10, 10}, "dog")

	if err := os.Remove(a.Path); err != nil {
		t.Fatal(err)
	}

	_, report, err := Export(s, out, ExportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Path != a.Path {
		t.Fatalf("expected a.png to be skipped, got %+v", report.Skipped)
	}
	if len(report.LabelFiles) != 1 || filepath.Base(report.LabelFiles[0]) != "b.txt" {
		t.Errorf("unexpected label files %v", report.LabelFiles)
	}

	// Class indices stay stable even though a.png was skipped.
	doc := parseManifest(t, filepath.Join(out, ManifestFileName))
	if doc.NC != 2 {
		t.Errorf("expected both classes in the manifest, got %+v", doc)
	}
}

func TestExportStemCollision(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	top := writeTestPNG(t, src, "a.png", 10, 10)
	if err := os.Mkdir(filepath.Join(src, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	other := writeTestPNG(t, filepath.Join(src, "sub"), "a.png", 10, 10)

	s := newTestSession(top, other)
	drawBox(t, s, Point{0, 0}, Point{5, 5}, "x")
	s.Next()
	drawBox(t, s, Point{0, 0}, Point{5, 5}, "y")

	_, _, err := Export(s, out, ExportOptions{})
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected a WriteError, got %v", err)
	}
	if !errors.Is(err, ErrStemCollision) {
		t.Errorf("expected ErrStemCollision, got %v", err)
	}
	if filepath.Base(writeErr.Path) != "a.txt" {
		t.Errorf("expected the shared label file in the error, got %q", writeErr.Path)
	}
	if _, err := os.Stat(filepath.Join(out, ManifestFileName)); !os.IsNotExist(err) {
		t.Error("expected nothing to be written after a collision")
	}
}

func TestExportUnwritableRoot(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	ref := writeTestPNG(t, src, "a.png", 10, 10)
	s := newTestSession(ref)
	drawBox(t, s, Point{0, 0}, Point{5, 5}, "x")

	// A regular file where the labels directory belongs.
	if err := os.WriteFile(filepath.Join(out, LabelsDirName), nil, 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := Export(s, out, ExportOptions{})
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected a WriteError, got %v", err)
	}
}

func TestExportExtraFormats(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	a := writeTestPNG(t, src, "a.png", 100, 50)
	b := writeTestPNG(t, src, "b.png", 100, 50)
	s := newTestSession(a, b)
	drawBox(t, s, Point{10, 10}, Point{30, 20}, "cat")
	s.Next()
	drawBox(t, s, Point{0, 0}, Point{50, 50}, "dog")

	formats, err := ParseFormats([]string{"yolo", "KITTI", "sloth", "tfrecord", "via"})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := Export(s, out, ExportOptions{ExtraFormats: formats, TFRecordShards: 2}); err != nil {
		t.Fatal(err)
	}

	kitti := readTestFile(t, filepath.Join(out, "kitti", "a.txt"))
	if kitti != "cat 0.0 0 0.0 10.00 10.00 30.00 20.00 0.0 0.0 0.0 0.0 0.0 0.0 0.0\n" {
		t.Errorf("unexpected KITTI labels %q", kitti)
	}

	for _, name := range []string{"sloth.json", "via.json"} {
		if got := readTestFile(t, filepath.Join(out, name)); !strings.Contains(got, "dataset") {
			t.Errorf("expected %s to reference the copied images, got\n%s", name, got)
		}
	}

	for _, name := range []string{"data.record-00000-of-00002", "data.record-00001-of-00002"} {
		if info, err := os.Stat(filepath.Join(out, "tfrecord", name)); err != nil || info.Size() == 0 {
			t.Errorf("expected a non-empty shard %s: %v", name, err)
		}
	}
	labelMap := readTestFile(t, filepath.Join(out, "tfrecord", "label_map.pbtxt"))
	if !strings.Contains(labelMap, `name: "cat"`) || !strings.Contains(labelMap, "id: 2") {
		t.Errorf("unexpected label map\n%s", labelMap)
	}

	if _, err := ParseFormats([]string{"coco"}); err == nil {
		t.Error("expected an unknown format to fail")
	}
}
