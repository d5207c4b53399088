package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSelectorsDefaults(t *testing.T) {
	sel, err := LoadSelectors("")
	if err != nil {
		t.Fatalf("LoadSelectors(\"\"): %v", err)
	}
	if sel != DefaultSelectors() {
		t.Errorf("empty path should return defaults, got %+v", sel)
	}
}

func TestLoadSelectorsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selectors.yaml")
	body := "price: span.new-price\narea_marker: qm\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	sel, err := LoadSelectors(path)
	if err != nil {
		t.Fatalf("LoadSelectors: %v", err)
	}
	if sel.Price != "span.new-price" {
		t.Errorf("Price: got %q, want %q", sel.Price, "span.new-price")
	}
	if sel.AreaMarker != "qm" {
		t.Errorf("AreaMarker: got %q, want %q", sel.AreaMarker, "qm")
	}
	if sel.Address != DefaultSelectors().Address {
		t.Errorf("Address should keep its default, got %q", sel.Address)
	}
}

func TestLoadSelectorsMissingFile(t *testing.T) {
	if _, err := LoadSelectors(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing selectors file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PAGES_TO_SCRAPE", "3")
	t.Setenv("DELAY_SECONDS", "1.5")
	t.Setenv("DOUBLE_DELAY", "true")
	t.Setenv("WAIT_TIMEOUT", "2s")
	t.Setenv("MAX_LISTINGS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PagesToScrape != 3 {
		t.Errorf("PagesToScrape: got %d, want 3", cfg.PagesToScrape)
	}
	if cfg.Delay().Milliseconds() != 1500 {
		t.Errorf("Delay: got %v, want 1.5s", cfg.Delay())
	}
	if !cfg.DoubleDelay {
		t.Error("DoubleDelay should be true")
	}
	if cfg.WaitTimeout.Seconds() != 2 {
		t.Errorf("WaitTimeout: got %v, want 2s", cfg.WaitTimeout)
	}
	if cfg.MaxListings != 1 {
		t.Errorf("MaxListings should fall back to 1 on bad input, got %d", cfg.MaxListings)
	}
}
