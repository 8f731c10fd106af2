package boxlabel

import (
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// imageExts are the recognised raster image file extensions, in lower case.
var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// IsImageFile reports whether name has a recognised image file extension (case-insensitive).
func IsImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// ImagesInDir returns a reference for every image file found directly in dirPath, ordered by file
// name. Files whose dimensions cannot be read are logged and skipped.
func ImagesInDir(dirPath string) ([]ImageRef, error) {
	dirInfo, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %q: %w", dirPath, err)
	}
	if !dirInfo.IsDir() {
		return nil, fmt.Errorf("cannot read directory %q: not a directory", dirPath)
	}
	entries, err := ioutil.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access %q: %w", dirPath, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	refs := make([]ImageRef, 0, len(entries))
	for _, file := range entries {
		name := file.Name()
		// Must be a regular file or a symlink and have an image extension.
		if (!file.Mode().IsRegular() && (file.Mode()&os.ModeSymlink == 0)) || !IsImageFile(name) {
			continue
		}

		ref, err := LoadImageRef(filepath.Join(dirPath, name))
		if err != nil {
			log.Printf("Skipping %q: %v", name, err)
			continue
		}
		refs = append(refs, ref)
	}
	log.Printf("Found %d images in %q", len(refs), dirPath)

	return refs, nil
}

// splitPath splits the given file path into the dir name, the base name without extension and the
// extension (without the dot).
func splitPath(path string) (dir, baseNoExt, ext string, err error) {
	dir, file := filepath.Split(path)
	ext = filepath.Ext(file)
	if ext == "" {
		return "", "", "", fmt.Errorf("missing file extension in %q", path)
	}

	dir = strings.TrimSuffix(dir, string(os.PathSeparator))
	baseNoExt = file[0 : len(file)-len(ext)]
	ext = ext[1:]

	return dir, baseNoExt, ext, nil
}

// fieldSafe replaces runs of white space in s by underscores, for space separated formats.
func fieldSafe(s string) string {
	return strings.Join(strings.Fields(s), "_")
}

// readFile reads the whole file at path.
func readFile(path string) (data []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer closeWithErrCheck(f, &err)

	return ioutil.ReadAll(f)
}

// fileSize returns the size in bytes of the file at path.
func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// copyFile copies the file at src to dst byte for byte. A failure to read src is reported as an
// *ImageError, a failure to write dst as a *WriteError.
func copyFile(src, dst string) (err error) {
	data, err := readFile(src)
	if err != nil {
		return &ImageError{Path: src, Err: err}
	}
	if err := ioutil.WriteFile(dst, data, 0644); err != nil {
		return &WriteError{Path: dst, Err: err}
	}
	return nil
}

// closeWithErrCheck calls c.Close(). If it returns an error, and (*e == nil), e is set to that
// error.
func closeWithErrCheck(c io.Closer, e *error) {
	err := c.Close()
	if err != nil && *e == nil {
		*e = err
	}
}
