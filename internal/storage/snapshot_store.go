package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

const (
	// LatestAlias mirrors the most recently processed frame of a camera.
	LatestAlias = "latest.jpg"
	// TimestampLayout is the capture time part of a sample file name.
	TimestampLayout = "2006-01-02_15-04-05"
)

// ErrOutsideBase is returned when a relative path would leave the camera directory.
var ErrOutsideBase = errors.New("path escapes snapshot directory")

// DiskUsage reports how much space a camera's samples take and what is left
// on the filesystem holding them.
type DiskUsage struct {
	SampleCount int     `json:"sampleCount"`
	SampleBytes int64   `json:"sampleBytes"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"usedPercent"`
}

// SnapshotStore keeps the sampled frames of one camera in a single directory.
// Only the camera's delivery goroutine writes; listing and resolving are safe
// to call concurrently with writes.
type SnapshotStore struct {
	baseDir string
}

// NewSnapshotStore returns a store rooted at baseDir. The directory is created
// lazily on the first write.
func NewSnapshotStore(baseDir string) *SnapshotStore {
	return &SnapshotStore{baseDir: filepath.Clean(baseDir)}
}

// BaseDir returns the directory the store writes to.
func (s *SnapshotStore) BaseDir() string {
	return s.baseDir
}

// Save writes image as a new sample taken now and refreshes the alias.
func (s *SnapshotStore) Save(image []byte, cameraName string) (string, error) {
	return s.SaveAt(image, cameraName, time.Now())
}

// SaveAt writes image as {cameraName}_{timestamp}.jpg and refreshes the alias
// with the same bytes. Samples taken within the same second share a name and
// the later one wins.
func (s *SnapshotStore) SaveAt(image []byte, cameraName string, at time.Time) (string, error) {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := filepath.Join(s.baseDir, SampleFilename(cameraName, at))
	if err := os.WriteFile(path, image, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := s.UpdateLatest(image); err != nil {
		return path, err
	}
	return path, nil
}

// UpdateLatest replaces the alias. The bytes go to a temporary file first so
// readers never see a partial image.
func (s *SnapshotStore) UpdateLatest(image []byte) error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.baseDir, ".latest-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to update latest snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to update latest snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to update latest snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to update latest snapshot: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.baseDir, LatestAlias)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to update latest snapshot: %w", err)
	}
	return nil
}

type sampleEntry struct {
	rel     string
	modTime time.Time
	size    int64
}

// walk collects sample files below the base directory. Entries that vanish or
// cannot be read while walking are skipped.
func (s *SnapshotStore) walk() []sampleEntry {
	var entries []sampleEntry

	filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != s.baseDir {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isSample(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return nil
		}

		entries = append(entries, sampleEntry{
			rel:     filepath.ToSlash(rel),
			modTime: info.ModTime(),
			size:    info.Size(),
		})
		return nil
	})

	return entries
}

// ListRecent returns up to limit sample paths relative to the base directory,
// newest modification time first. The alias is never listed.
func (s *SnapshotStore) ListRecent(limit int) []string {
	if limit <= 0 {
		return []string{}
	}

	entries := s.walk()
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].modTime.After(entries[j].modTime)
		}
		return entries[i].rel > entries[j].rel
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.rel
	}
	return paths
}

// Resolve maps a path relative to the base directory to an absolute path,
// rejecting anything that would point outside of it.
func (s *SnapshotStore) Resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", ErrOutsideBase
	}

	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", ErrOutsideBase
	}

	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve snapshot directory: %w", err)
	}
	full := filepath.Join(base, local)

	// Symlinks inside the directory must not lead out of it.
	target, err := filepath.EvalSymlinks(full)
	if errors.Is(err, fs.ErrNotExist) {
		return full, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", rel, err)
	}
	realBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		return "", fmt.Errorf("failed to resolve snapshot directory: %w", err)
	}
	within, err := filepath.Rel(realBase, target)
	if err != nil || !filepath.IsLocal(within) {
		return "", ErrOutsideBase
	}
	return full, nil
}

// Usage sums the sample files and reads the filesystem totals.
func (s *SnapshotStore) Usage() (DiskUsage, error) {
	var usage DiskUsage
	for _, e := range s.walk() {
		usage.SampleCount++
		usage.SampleBytes += e.size
	}

	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return usage, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	stat, err := disk.Usage(s.baseDir)
	if err != nil {
		return usage, fmt.Errorf("failed to read disk usage: %w", err)
	}
	usage.Total = stat.Total
	usage.Free = stat.Free
	usage.UsedPercent = stat.UsedPercent
	return usage, nil
}

// SampleFilename builds the file name of a sample. Path separators in the
// camera name are replaced so the file stays in the base directory.
func SampleFilename(cameraName string, at time.Time) string {
	return fmt.Sprintf("%s_%s.jpg", sanitizeName(cameraName), at.Format(TimestampLayout))
}

// ParseSampleFilename splits a sample file name into camera name and capture
// time in loc.
func ParseSampleFilename(name string, loc *time.Location) (string, time.Time, error) {
	if !isSample(name) {
		return "", time.Time{}, fmt.Errorf("not a sample file: %s", name)
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if len(stem) < len(TimestampLayout)+2 || stem[len(stem)-len(TimestampLayout)-1] != '_' {
		return "", time.Time{}, fmt.Errorf("unexpected sample name: %s", name)
	}

	camera := stem[:len(stem)-len(TimestampLayout)-1]
	ts, err := time.ParseInLocation(TimestampLayout, stem[len(stem)-len(TimestampLayout):], loc)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("unexpected sample timestamp in %s: %w", name, err)
	}
	return camera, ts, nil
}

func isSample(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".jpg") && name != LatestAlias
}

func sanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "camera"
	}
	return name
}
