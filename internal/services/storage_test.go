package services

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"MOTION_CAPTURE/go-backend/internal/models"
)

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"dance.mp4":           "dance_motion.json",
		"clip.final.mov":      "clip.final_motion.json",
		"noext":               "noext_motion.json",
		"/tmp/uploads/a.webm": "a_motion.json",
	}
	for in, want := range tests {
		if got := OutputName(in); got != want {
			t.Errorf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDocumentStoreSaveAndOpen(t *testing.T) {
	store, err := NewDocumentStore(filepath.Join(t.TempDir(), "output"))
	if err != nil {
		t.Fatalf("NewDocumentStore failed: %v", err)
	}

	doc := models.NewMotionDocument(models.Metadata{FPS: 30, FrameCount: 2, Width: 640, Height: 480, SourceVideo: "a.mp4"})
	doc.Append(ToFrameRecord(0, 0, fullDetection(0)))
	doc.Append(ToFrameRecord(1, 1.0/30, nil))

	path, err := store.Save("a_motion.json", doc)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Dir(path) != store.Dir() {
		t.Errorf("saved outside the store: %s", path)
	}

	f, err := store.Open("a_motion.json")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("stored document is not JSON: %v", err)
	}
	if _, ok := raw["metadata"]; !ok {
		t.Error("missing metadata key")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Frames) != 2 || loaded.Frames[1].Detected() {
		t.Errorf("unexpected loaded frames %+v", loaded.Frames)
	}

	entries, _ := os.ReadDir(store.Dir())
	if len(entries) != 1 {
		t.Errorf("expected only the document in the store, got %d entries", len(entries))
	}
}

func TestDocumentStoreRejectsBadNames(t *testing.T) {
	store, err := NewDocumentStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"", "../secret.json", "a/b.json", `a\b.json`, ".hidden.json", "video.mp4"} {
		if _, err := store.Open(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Open(%q) error = %v, want ErrInvalidName", name, err)
		}
		if _, err := store.Save(name, models.NewMotionDocument(models.Metadata{FPS: 1})); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestDocumentStoreOpenMissing(t *testing.T) {
	store, err := NewDocumentStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Open("nothing_motion.json"); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDocumentStoreSaveFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gone")
	store, err := NewDocumentStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	os.RemoveAll(dir)

	if _, err := store.Save("a_motion.json", models.NewMotionDocument(models.Metadata{FPS: 1})); !errors.Is(err, ErrStorageFailure) {
		t.Errorf("expected ErrStorageFailure, got %v", err)
	}
}

func TestWriteDocumentCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "sample.json")
	if err := WriteDocument(path, SampleDocument()); err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Errorf("Load failed: %v", err)
	}
}
