package giftvalue

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEstimate_DiamondCountWins(t *testing.T) {
	e := New()

	// A positive feed value beats the table even for a known name.
	if got := e.Estimate("Rose", 42); got != 42 {
		t.Errorf("expected 42, got %v", got)
	}
}

func TestEstimate_StaticTable(t *testing.T) {
	e := New()

	cases := []struct {
		name string
		want float64
	}{
		{"Rose", 1},
		{"Money Gun", 499},
		{"Universe", 1000},
		{"Phoenix", 10000},
	}
	for _, tc := range cases {
		if got := e.Estimate(tc.name, 0); got != tc.want {
			t.Errorf("Estimate(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEstimate_KeywordTiers(t *testing.T) {
	e := New()

	cases := []struct {
		name string
		want float64
	}{
		{"Mega Universe Blast", 1000},
		{"Golden Dragon Dance", 2000},
		{"Tiny Rocket Ship", 100},
		{"Sand Castle", 50},
	}
	for _, tc := range cases {
		if got := e.Estimate(tc.name, 0); got != tc.want {
			t.Errorf("Estimate(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEstimate_DefaultOne(t *testing.T) {
	e := New()

	if got := e.Estimate("Completely Unknown Trinket", 0); got != 1 {
		t.Errorf("expected default 1, got %v", got)
	}
}

func TestEstimate_TierMatchIsCaseInsensitive(t *testing.T) {
	e := New()

	if got := e.Estimate("GALAXY SUPREME", 0); got != 1000 {
		t.Errorf("expected 1000 for uppercase galaxy name, got %v", got)
	}
}

func TestLoadFile_OverridesTable(t *testing.T) {
	e := New()

	path := filepath.Join(t.TempDir(), "gift_values.json")
	data := `{"schema_version":1,"gifts":{"Rose":7},"tiers":[]}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	if err := e.LoadFile(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := e.Estimate("Rose", 0); got != 7 {
		t.Errorf("expected overridden value 7, got %v", got)
	}
	// Names absent from the override fall back to the default, not the
	// embedded table: the user file fully replaces the table.
	if got := e.Estimate("Universe", 0); got != 1 {
		t.Errorf("expected 1 after override, got %v", got)
	}
}

func TestLoadFile_BadJSONKeepsOldTable(t *testing.T) {
	e := New()

	path := filepath.Join(t.TempDir(), "gift_values.json")
	if err := os.WriteFile(path, []byte("{nope"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := e.LoadFile(path); err == nil {
		t.Fatal("expected error for malformed table")
	}
	if got := e.Estimate("Rose", 0); got != 1 {
		t.Errorf("expected embedded table to survive failed load, got %v", got)
	}
}

func TestEmbeddedDefaultsParse(t *testing.T) {
	table, err := parseTable(defaultTableJSON)
	if err != nil {
		t.Fatalf("embedded defaults invalid: %v", err)
	}
	if len(table.Gifts) == 0 {
		t.Error("expected non-empty embedded gift table")
	}
	if len(table.Tiers) == 0 {
		t.Error("expected non-empty embedded tier list")
	}
}
