package models

import "testing"

func TestTableNames(t *testing.T) {
	if got := (Preset{}).TableName(); got != "orchestration_presets" {
		t.Errorf("Preset.TableName() = %q, want orchestration_presets", got)
	}
}

func TestAll(t *testing.T) {
	if len(All()) != 1 {
		t.Errorf("Expected 1 model, got %d", len(All()))
	}
}
