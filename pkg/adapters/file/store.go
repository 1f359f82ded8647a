package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/balupi/pkg/domain"
)

// Store implements ports.StateStore using the local filesystem.
// Each key is stored as a JSON file in a configured directory.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to "data/handshake".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join("data", "handshake")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(key string) string {
	return filepath.Join(s.BasePath, key+".json")
}

// Save persists the record to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination,
// so a crash right after Save returns cannot lose the new record.
func (s *Store) Save(ctx context.Context, key string, record domain.StateRecord) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure state directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Same directory as the destination: rename is only atomic within one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+key+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(key)); err != nil {
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}

	return nil
}

// Load retrieves the record from its JSON file.
// A file that exists but cannot be decoded or validated yields a wrapped domain.ErrInvalidState.
func (s *Store) Load(ctx context.Context, key string) (domain.StateRecord, error) {
	if key == "" {
		return domain.StateRecord{}, fmt.Errorf("key cannot be empty")
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.StateRecord{}, domain.ErrStateNotFound
		}
		return domain.StateRecord{}, fmt.Errorf("failed to read state file: %w", err)
	}

	var record domain.StateRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.StateRecord{}, fmt.Errorf("%w: failed to unmarshal state file: %v", domain.ErrInvalidState, err)
	}
	if err := record.Validate(); err != nil {
		return domain.StateRecord{}, err
	}

	return record, nil
}

// Delete removes the state file.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}

	return nil
}
