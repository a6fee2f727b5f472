package transcode

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClipPrefix names every temp file a Workspace creates.
const ClipPrefix = "clip-"

// Workspace hands out uniquely named temp files for one classification
// attempt and removes them.
type Workspace struct {
	dir    string
	logger *slog.Logger
}

func NewWorkspace(dir string, logger *slog.Logger) (*Workspace, error) {
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{dir: dir, logger: logger}, nil
}

func (w *Workspace) Dir() string { return w.dir }

// Clip holds the paths of one attempt: the encoded input and the PCM output.
type Clip struct {
	In  string
	Out string
}

// Write stores data under a fresh name with the given extension and returns
// the input path plus the reserved output path. Both must be released with
// Remove even when Write fails half-way.
func (w *Workspace) Write(data []byte, ext string) (Clip, error) {
	if ext == "" {
		ext = ".ogg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	base := filepath.Join(w.dir, ClipPrefix+uuid.NewString())
	clip := Clip{In: base + ext, Out: base + ".pcm"}
	if err := os.WriteFile(clip.In, data, 0o600); err != nil {
		return clip, fmt.Errorf("write clip: %w", err)
	}
	return clip, nil
}

// Remove deletes the clip's files. A missing file is not an error; any
// other failure is logged and never returned.
func (w *Workspace) Remove(c Clip) {
	for _, p := range []string{c.In, c.Out} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("temp_cleanup_failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
}

// PurgeStale removes clip files in dir older than maxAge, left behind by a
// crashed process. Returns deleted count.
func PurgeStale(dir string, maxAge time.Duration) (int, error) {
	if dir == "" || maxAge <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var removed int
	var errs error
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), ClipPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = errors.Join(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}
