package types

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTargetConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "target.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write target config: %v", err)
	}
	return path
}

func TestLoadTargetConfigOverridesDefaults(t *testing.T) {
	path := writeTargetConfig(t, "pointer_width_bits: 32\nendianness: big\ndefault_struct_alignment_log2: 2\n")

	cfg, err := LoadTargetConfig(path)
	if err != nil {
		t.Fatalf("LoadTargetConfig: %v", err)
	}
	if cfg.PointerWidthBits != 32 {
		t.Errorf("PointerWidthBits = %d, want 32", cfg.PointerWidthBits)
	}
	if cfg.LittleEndian {
		t.Error("LittleEndian = true, want false for endianness: big")
	}
	if cfg.DefaultStructAlignmentLog2 != 2 {
		t.Errorf("DefaultStructAlignmentLog2 = %d, want 2", cfg.DefaultStructAlignmentLog2)
	}
}

func TestLoadTargetConfigEmptyFileFallsBackToDefaults(t *testing.T) {
	path := writeTargetConfig(t, "")

	cfg, err := LoadTargetConfig(path)
	if err != nil {
		t.Fatalf("LoadTargetConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("LoadTargetConfig(empty) = %+v, want %+v", cfg, DefaultConfig())
	}
}

func TestLoadTargetConfigRejectsBadPointerWidth(t *testing.T) {
	path := writeTargetConfig(t, "pointer_width_bits: 17\n")
	if _, err := LoadTargetConfig(path); err == nil {
		t.Error("expected an error for an unsupported pointer width")
	}
}

func TestLoadTargetConfigRejectsBadEndianness(t *testing.T) {
	path := writeTargetConfig(t, "endianness: middle\n")
	if _, err := LoadTargetConfig(path); err == nil {
		t.Error("expected an error for an unrecognized endianness")
	}
}

func TestLoadTargetConfigMissingFile(t *testing.T) {
	if _, err := LoadTargetConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
