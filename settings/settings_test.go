package settings

import (
	"os"
	"path/filepath"
	"testing"
)

// TestOpenMissingFileIsEmpty verifies an absent file yields an empty store
func TestOpenMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixer.yaml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := s.Get("music"); ok {
		t.Error("expected no value in fresh store")
	}
	if len(s.All()) != 0 {
		t.Errorf("expected empty store, got %v", s.All())
	}
}

// TestSetPersistsAcrossReopen verifies values survive a write and reopen
func TestSetPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixer.yaml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Set("music", 0.4); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("effects", 0.9); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if v, ok := reopened.Get("music"); !ok || v != 0.4 {
		t.Errorf("expected music=0.4 after reopen, got %v %v", v, ok)
	}
	if v, ok := reopened.Get("effects"); !ok || v != 0.9 {
		t.Errorf("expected effects=0.9 after reopen, got %v %v", v, ok)
	}
}

// TestSetOverwritesValue verifies the latest write wins
func TestSetOverwritesValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixer.yaml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Set("music", 0.2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("music", 0.7); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, _ := s.Get("music"); v != 0.7 {
		t.Errorf("expected overwritten value 0.7, got %v", v)
	}
}

// TestAllReturnsCopy verifies mutating the snapshot does not touch the store
func TestAllReturnsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixer.yaml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Set("music", 0.5); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	snap := s.All()
	snap["music"] = 0.0
	if v, _ := s.Get("music"); v != 0.5 {
		t.Errorf("snapshot mutation leaked into store: %v", v)
	}
}

// TestOpenRejectsMalformedFile verifies parse errors are reported
func TestOpenRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixer.yaml")
	if err := os.WriteFile(path, []byte("music: [not a number"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Error("expected parse error")
	}
}
