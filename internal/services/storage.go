package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"MOTION_CAPTURE/go-backend/internal/models"
)

const outputSuffix = "_motion.json"

// OutputName derives the document name from an input video name:
// "dance.mp4" becomes "dance_motion.json".
func OutputName(sourceName string) string {
	base := filepath.Base(sourceName)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base + outputSuffix
}

// DocumentStore keeps finalized motion documents in one directory.
type DocumentStore struct {
	dir string
}

func NewDocumentStore(dir string) (*DocumentStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return &DocumentStore{dir: dir}, nil
}

func (s *DocumentStore) Dir() string {
	return s.dir
}

// Save writes the document atomically: it is encoded into a temporary file
// in the same directory and renamed into place.
func (s *DocumentStore) Save(name string, doc *models.MotionDocument) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	if err := writeJSONAtomic(path, doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return path, nil
}

// Open returns the stored document file for streaming.
func (s *DocumentStore) Open(name string) (*os.File, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
	return f, err
}

// Load parses a motion document from disk.
func Load(path string) (*models.MotionDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var doc models.MotionDocument
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &doc, nil
}

// WriteDocument writes a document to an arbitrary path, creating parent
// directories as needed.
func WriteDocument(path string, doc *models.MotionDocument) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageFailure, err)
		}
	}
	if err := writeJSONAtomic(path, doc); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err = enc.Encode(v); err != nil {
		return multierr.Append(err, tmp.Close())
	}
	if err = tmp.Sync(); err != nil {
		return multierr.Append(err, tmp.Close())
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) ||
		strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
