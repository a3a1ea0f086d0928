package library

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19remote/internal/domain/fault"
	"github.com/osa030/19remote/internal/domain/track"
)

// FileSource loads the catalog from a JSON array of tracks on disk.
// The file is read on every Load.
type FileSource struct {
	path string
}

// NewFileSource creates a new file source.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns the source name.
func (s *FileSource) Name() string {
	return SourceFile
}

// Path returns the catalog file path.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads and decodes the catalog file.
func (s *FileSource) Load(ctx context.Context) ([]track.Track, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fault.Unavailable(err, "failed to read catalog file")
	}

	var tracks []track.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fault.Unavailable(err, "failed to parse catalog file")
	}
	return tracks, nil
}

// Save writes the catalog atomically by renaming a temporary file.
func (s *FileSource) Save(tracks []track.Track) error {
	data, err := json.MarshalIndent(tracks, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode catalog")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create catalog directory: %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".catalog-*.json")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary catalog file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write catalog")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close catalog")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrapf(err, "failed to replace catalog file: %s", s.path)
	}
	return nil
}
