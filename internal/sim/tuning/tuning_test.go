package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_PartialFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	data := []byte("tick_rate_hz: 5\neat_distance: 0.25\nelement_defaults:\n  plant_size: 2.5\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tn, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tn.TickRateHz != 5 {
		t.Fatalf("tick_rate_hz: got %d want 5", tn.TickRateHz)
	}
	if tn.EatDistance != 0.25 {
		t.Fatalf("eat_distance: got %v want 0.25", tn.EatDistance)
	}
	if tn.Defaults.PlantSize != 2.5 {
		t.Fatalf("plant_size: got %v want 2.5", tn.Defaults.PlantSize)
	}
	// Untouched fields keep defaults.
	if tn.FeedEnergy != Defaults().FeedEnergy {
		t.Fatalf("feed_energy default lost: got %v", tn.FeedEnergy)
	}
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("tick_rate_hz: [oops"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want error for malformed yaml")
	}
}
