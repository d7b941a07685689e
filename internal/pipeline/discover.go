package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiscoverMailFiles returns the absolute paths of the mail files under target,
// sorted. A target that is a file is returned as is, whatever its extension.
func DiscoverMailFiles(target string) ([]string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("DiscoverMailFiles: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("DiscoverMailFiles: %w", err)
	}
	if !info.IsDir() {
		return []string{abs}, nil
	}

	var paths []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), MailExtension) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("DiscoverMailFiles: walking %s: %w", abs, err)
	}
	sort.Strings(paths)
	return paths, nil
}
