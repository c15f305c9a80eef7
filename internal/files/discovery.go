package files

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"churnpulse/internal/config"
)

// FileInfo describes one discovered roster file.
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery finds raw roster files by name pattern.
type Discovery struct {
	rawDir  string
	pattern *regexp.Regexp
}

// NewDiscovery creates a discovery over the raw data directory.
func NewDiscovery(rawDir string) *Discovery {
	return &Discovery{
		rawDir:  rawDir,
		pattern: regexp.MustCompile(config.RosterFilePattern),
	}
}

// Rosters returns roster files under the raw directory, newest first. Name
// order breaks modification-time ties so the result is deterministic.
func (d *Discovery) Rosters() ([]FileInfo, error) {
	entries, err := os.ReadDir(d.rawDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", d.rawDir, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !d.pattern.MatchString(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, FileInfo{
			Path:    filepath.Join(d.rawDir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// LatestRoster returns the newest roster file, if any.
func (d *Discovery) LatestRoster() (FileInfo, bool, error) {
	files, err := d.Rosters()
	if err != nil {
		return FileInfo{}, false, err
	}
	if len(files) == 0 {
		return FileInfo{}, false, nil
	}
	return files[0], true, nil
}
