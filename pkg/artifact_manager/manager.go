package artifact_manager

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dtnitsch/lens-scraper/models"
)

const (
	imagePrefix = "image_"
	csvPrefix   = "results_"
	textPrefix  = "content_"
)

// Artifacts are the per-request files of one pipeline run.
type Artifacts struct {
	RequestID string `json:"request_id" yaml:"request_id"`
	Image     string `json:"image" yaml:"image"`
	CSV       string `json:"csv" yaml:"csv"`
	Text      string `json:"txt" yaml:"txt"`
}

// FileStats holds metadata about a file without reading its contents.
type FileStats struct {
	SizeBytes int64
	ModTime   time.Time
}

// Manager hands out artifact paths and removes them according to the retention policy.
type Manager struct {
	dirs      models.DirsConfig
	retention models.RetentionConfig
}

// NewManager creates a new Artifact Manager instance.
// It ensures every artifact directory exists.
func NewManager(dirs models.DirsConfig, retention models.RetentionConfig) (*Manager, error) {
	for _, dir := range []string{dirs.Images, dirs.CSV, dirs.Text} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
		}
	}
	if dirs.ImageExtension == "" {
		dirs.ImageExtension = "png"
	}
	return &Manager{dirs: dirs, retention: retention}, nil
}

// invalidFilenameChar matches anything unsafe in a request id or extension.
var invalidFilenameChar = regexp.MustCompile(`[^a-zA-Z0-9\-_]+`)

func sanitize(s string) string {
	return strings.Trim(invalidFilenameChar.ReplaceAllString(s, "_"), "_")
}

// Paths returns the artifact paths for requestID. Files are not created.
func (m *Manager) Paths(requestID string) Artifacts {
	id := sanitize(requestID)
	ext := sanitize(strings.TrimPrefix(m.dirs.ImageExtension, "."))
	return Artifacts{
		RequestID: requestID,
		Image:     filepath.Join(m.dirs.Images, fmt.Sprintf("%s%s.%s", imagePrefix, id, ext)),
		CSV:       filepath.Join(m.dirs.CSV, fmt.Sprintf("%s%s.csv", csvPrefix, id)),
		Text:      filepath.Join(m.dirs.Text, fmt.Sprintf("%s%s.txt", textPrefix, id)),
	}
}

// SaveImage writes the decoded upload to the request's image path.
func (m *Manager) SaveImage(a Artifacts, data []byte) error {
	if err := os.WriteFile(a.Image, data, 0600); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

// Cleanup deletes the artifacts the retention policy does not keep.
// Missing files are ignored; the remaining errors are joined.
func (m *Manager) Cleanup(logger *slog.Logger, a Artifacts) error {
	var targets []string
	if m.retention.RemoveImages {
		targets = append(targets, a.Image)
	}
	if m.retention.RemoveCSVs {
		targets = append(targets, a.CSV)
	}
	if m.retention.RemoveText {
		targets = append(targets, a.Text)
	}

	var errs []error
	for _, path := range targets {
		if path == "" {
			continue
		}
		err := os.Remove(path)
		if err == nil {
			logger.Debug("Removed artifact", "path", path)
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// GetFileStats returns size and modification time for path.
func GetFileStats(path string) (*FileStats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error getting file stats: %w", err)
	}
	return &FileStats{
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}
