package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"LiveRadio/logger"
)

const (
	backgroundPrefix = "image-"
	backgroundExt    = ".jpg"
	tempPrefix       = "__temp_"
)

// BackgroundName returns the file name served for background id.
func BackgroundName(id int) string {
	return fmt.Sprintf("%s%d%s", backgroundPrefix, id, backgroundExt)
}

// NormalizeBackgrounds renames every regular file in dir to image-1.jpg …
// image-N.jpg and returns N. Files are renamed through temporary names first
// so existing image-K.jpg files are never overwritten mid-way.
func NormalizeBackgrounds(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create background directory %s: %w", dir, err)
	}

	files, err := regularFiles(dir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, nil
	}

	// Temp names skip every existing file, including leftovers of an
	// interrupted run, so the first pass never overwrites an image.
	existing := make(map[string]bool, len(files))
	for _, f := range files {
		existing[f] = true
	}
	next := 0
	tempName := func() string {
		for {
			next++
			name := fmt.Sprintf("%s%06d%s", tempPrefix, next, backgroundExt)
			if !existing[name] {
				return name
			}
		}
	}

	temps := make([]string, 0, len(files))
	for _, f := range files {
		tmp := tempName()
		if err := os.Rename(filepath.Join(dir, f), filepath.Join(dir, tmp)); err != nil {
			return 0, fmt.Errorf("failed to rename %s: %w", f, err)
		}
		temps = append(temps, tmp)
	}

	for i, tmp := range temps {
		if err := os.Rename(filepath.Join(dir, tmp), filepath.Join(dir, BackgroundName(i+1))); err != nil {
			return i, fmt.Errorf("failed to rename %s: %w", tmp, err)
		}
	}

	logger.Info("backgrounds normalized", logger.String("dir", dir), logger.Int("count", len(temps)))
	return len(temps), nil
}

// CountBackgrounds counts the consecutive image-K.jpg files starting at 1.
func CountBackgrounds(dir string) int {
	n := 0
	for {
		if _, err := os.Stat(filepath.Join(dir, BackgroundName(n+1))); err != nil {
			return n
		}
		n++
	}
}

func regularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read background directory %s: %w", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasPrefix(e.Name(), ".") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
