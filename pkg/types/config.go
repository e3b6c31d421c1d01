package types

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlConfig is the on-disk shape of a target-description file: the same
// three knobs Config carries, spelled the way the teacher's own yaml
// fixtures are (snake_case keys, plain scalars).
type yamlConfig struct {
	PointerWidthBits           int    `yaml:"pointer_width_bits"`
	Endianness                 string `yaml:"endianness"`
	DefaultStructAlignmentLog2 *uint8 `yaml:"default_struct_alignment_log2"`
}

// LoadTargetConfig reads a target-description YAML file and returns the
// Config it describes. Fields absent from the file fall back to
// DefaultConfig's values, so a target file only needs to override what it
// disagrees with.
func LoadTargetConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading target config %s: %w", path, err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parsing target config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if yc.PointerWidthBits != 0 {
		if yc.PointerWidthBits != 32 && yc.PointerWidthBits != 64 {
			return Config{}, fmt.Errorf("target config %s: pointer_width_bits must be 32 or 64, got %d", path, yc.PointerWidthBits)
		}
		cfg.PointerWidthBits = yc.PointerWidthBits
	}
	switch yc.Endianness {
	case "":
	case "little":
		cfg.LittleEndian = true
	case "big":
		cfg.LittleEndian = false
	default:
		return Config{}, fmt.Errorf("target config %s: endianness must be \"little\" or \"big\", got %q", path, yc.Endianness)
	}
	if yc.DefaultStructAlignmentLog2 != nil {
		cfg.DefaultStructAlignmentLog2 = *yc.DefaultStructAlignmentLog2
	}
	return cfg, nil
}
