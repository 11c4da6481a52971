// Package bootstrap hands out batches of restaurants from a source file and
// remembers how far previous runs got in a small progress file.
package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/restaurant-pipeline/internal/pipeline"
)

// Progress is the cursor persisted between runs.
type Progress struct {
	NextIndex int       `json:"next_index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetBatch returns up to size restaurants starting at the saved cursor and
// advances the cursor past them. A missing progress file starts at zero; an
// exhausted source returns an empty batch.
func GetBatch(sourcePath, progressPath string, size int, now time.Time) ([]pipeline.Restaurant, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be > 0, got %d", size)
	}
	all, err := LoadRestaurants(sourcePath)
	if err != nil {
		return nil, err
	}
	p, err := ReadProgress(progressPath)
	if err != nil {
		return nil, err
	}

	start := min(p.NextIndex, len(all))
	end := min(start+size, len(all))
	batch := all[start:end]
	if err := WriteProgress(progressPath, Progress{NextIndex: end, UpdatedAt: now.UTC()}); err != nil {
		return nil, err
	}
	return batch, nil
}

// LoadRestaurants reads a JSON or YAML list of restaurants; the format is
// chosen by file extension.
func LoadRestaurants(path string) ([]pipeline.Restaurant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read restaurant source: %w", err)
	}
	var out []pipeline.Restaurant
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &out)
	default:
		err = json.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("parse restaurant source %s: %w", path, err)
	}
	for i, r := range out {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("restaurant source %s: entry %d has no name", path, i)
		}
	}
	return out, nil
}

// ReadProgress loads the cursor. A missing file yields the zero Progress.
func ReadProgress(path string) (Progress, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Progress{}, nil
	}
	if err != nil {
		return Progress{}, fmt.Errorf("read progress: %w", err)
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return Progress{}, fmt.Errorf("parse progress %s: %w", path, err)
	}
	if p.NextIndex < 0 {
		return Progress{}, fmt.Errorf("progress %s: negative next_index %d", path, p.NextIndex)
	}
	return p, nil
}

// WriteProgress replaces the progress file atomically.
func WriteProgress(path string, p Progress) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create progress dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".progress-*")
	if err != nil {
		return fmt.Errorf("create progress temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close progress: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace progress: %w", err)
	}
	return nil
}

// Source adapts GetBatch to pipeline.BatchSource.
type Source struct {
	SourcePath   string
	ProgressPath string
	Clock        pipeline.Clock
}

var _ pipeline.BatchSource = (*Source)(nil)

// GetBatch implements pipeline.BatchSource.
func (s *Source) GetBatch(ctx context.Context, size int) ([]pipeline.Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now()
	if s.Clock != nil {
		now = s.Clock.Now()
	}
	return GetBatch(s.SourcePath, s.ProgressPath, size, now)
}
