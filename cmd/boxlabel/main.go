// Draws bounding boxes on a folder of images by replaying pointer gestures, and exports them as a
// YOLO dataset with optional KITTI, Sloth, TFRecord and VGG Image Annotator labels.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sensorable/boxlabel"
)

var (
	configFilePath string // The optional JSON config file.
	imageDirPath   string // The input directory with the images to annotate.
	outDirPath     string // The export root directory.
	scriptFilePath string // The gesture script, "-" for stdin.
	exportAtEnd    bool   // Export once the script is done.

	displayWidth  float64 // The width of the display area.
	displayHeight float64 // The height of the display area.
	allowUpscale  bool    // Fit small images to the display area.
	noScaling     bool    // Show images at their natural size.
	extraFormats  string  // A comma-separated string of extra label formats.
	labelMappings string  // A comma-separated string of label mappings.
	minBboxWidth  float64 // The minimum exported bounding box width.
	minBboxHeight float64 // The minimum exported bounding box height.
	clampCoords   bool    // Clip exported boxes to the image.
	numShardFiles int     // The number of TFRecord shard files to create.
)

func init() {
	log.SetFlags(0)

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Usage of %s:\n", filepath.Base(os.Args[0]))
		_, _ = fmt.Fprintln(os.Stderr, "  -images <dir> [-script <file>] [-out <dir>] [-export]")
		_, _ = fmt.Fprintln(os.Stderr, "  script commands:\tdown|move|up X Y, label TEXT, cancel,"+
				" select N, delete, next, prev, goto N, area W H, list, preview FILE, export")
		_, _ = fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}

	defaults := boxlabel.DefaultConfig()

	flag.StringVar(&configFilePath, "config", configFilePath,
		"The `path` to a JSON config file (flags given on the command line take precedence)")
	flag.StringVar(&imageDirPath, "images", imageDirPath,
		"The `path` to the directory with the images to annotate")
	flag.StringVar(&outDirPath, "out", defaults.OutputDir,
		"The `path` to the export root directory")
	flag.StringVar(&scriptFilePath, "script", "-",
		"The `path` to the gesture script, or - to read it from stdin")
	flag.BoolVar(&exportAtEnd, "export", exportAtEnd,
		"Export the annotations when the script ends")

	flag.Float64Var(&displayWidth, "display-width", defaults.DisplayWidth,
		"The display area `width`")
	flag.Float64Var(&displayHeight, "display-height", defaults.DisplayHeight,
		"The display area `height`")
	flag.BoolVar(&allowUpscale, "upscale", defaults.AllowUpscale,
		"Enlarge images smaller than the display area")
	flag.BoolVar(&noScaling, "no-scaling", defaults.NoScaling,
		"Show images at their natural size, ignoring the display area")

	flag.StringVar(&extraFormats, "formats", "",
		"Comma-separated list of extra label formats to export {kitti, sloth, tfrecord, via}")
	flag.StringVar(&labelMappings, "map-labels", labelMappings,
		"Comma-separated list of old=new label (sub-)string replacements applied on export")
	flag.Float64Var(&minBboxWidth, "min-bbox-width", defaults.MinBboxWidth,
		"The min. exported width in `pixels` for bounding boxes")
	flag.Float64Var(&minBboxHeight, "min-bbox-height", defaults.MinBboxHeight,
		"The min. exported height in `pixels` for bounding boxes")
	flag.BoolVar(&clampCoords, "clamp", defaults.ClampCoords,
		"Clip exported bounding boxes to the image bounds")
	flag.IntVar(&numShardFiles, "num-shards", defaults.TFRecordShards,
		"The number of shard files to create (tfrecord only)")
}

func printUsageAndExit(msg ...interface{}) {
	log.Print(msg...)
	flag.Usage()
	os.Exit(1)
}

// loadConfig reads the config file, if any, and applies the flags set on the command line.
func loadConfig() (*boxlabel.Config, error) {
	cfg := boxlabel.DefaultConfig()
	if configFilePath != "" {
		var err error
		if cfg, err = boxlabel.LoadConfig(configFilePath); err != nil {
			return nil, err
		}
	}

	splitList := func(s string) []string {
		if s == "" {
			return nil
		}
		return strings.Split(s, ",")
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.OutputDir = outDirPath
		case "display-width":
			cfg.DisplayWidth = displayWidth
		case "display-height":
			cfg.DisplayHeight = displayHeight
		case "upscale":
			cfg.AllowUpscale = allowUpscale
		case "no-scaling":
			cfg.NoScaling = noScaling
		case "formats":
			cfg.ExtraFormats = splitList(extraFormats)
		case "map-labels":
			cfg.LabelMappings = splitList(labelMappings)
		case "min-bbox-width":
			cfg.MinBboxWidth = minBboxWidth
		case "min-bbox-height":
			cfg.MinBboxHeight = minBboxHeight
		case "clamp":
			cfg.ClampCoords = clampCoords
		case "num-shards":
			cfg.TFRecordShards = numShardFiles
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.OutputDir = filepath.Clean(cfg.OutputDir)
	return cfg, nil
}

func main() {
	flag.Parse()
	if imageDirPath == "" {
		printUsageAndExit("Missing image input path argument")
	}
	imageDirPath = filepath.Clean(imageDirPath)

	cfg, err := loadConfig()
	if err != nil {
		printUsageAndExit("Invalid configuration: ", err)
	}
	if cfg.OutputDir == imageDirPath {
		printUsageAndExit("The image input and export paths cannot be identical")
	}
	exportOpts, err := cfg.ExportOptions()
	if err != nil {
		printUsageAndExit("Invalid configuration: ", err)
	}

	images, err := boxlabel.ImagesInDir(imageDirPath)
	if err != nil {
		log.Fatal("Failed to load the images: ", err)
	}
	if len(images) == 0 {
		log.Fatal("No images found in ", imageDirPath)
	}

	session := boxlabel.NewSession(images, nil, cfg.SessionOptions())
	export := func() error {
		_, report, err := boxlabel.Export(session, cfg.OutputDir, exportOpts)
		if err != nil {
			return err
		}
		log.Printf("DONE: Wrote %d label files to %s", len(report.LabelFiles), cfg.OutputDir)
		return nil
	}

	var in io.Reader = os.Stdin
	if scriptFilePath != "-" {
		f, err := os.Open(scriptFilePath)
		if err != nil {
			log.Fatal("Failed to open the script: ", err)
		}
		defer f.Close()
		in = f
	}

	runner := newScriptRunner(session, in, os.Stdout, export)
	if err := runner.Run(); err != nil {
		log.Fatal("Script failed: ", err)
	}

	if exportAtEnd {
		if err := export(); err != nil {
			log.Fatal("Export failed: ", err)
		}
	}
}
