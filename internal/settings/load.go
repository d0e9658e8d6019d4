package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDefaults reads a YAML presets file on top of the builtin defaults.
// Keys absent from the file keep their builtin values; a mode listed under
// mode_settings replaces that mode's builtin preset.
func LoadDefaults(path string) (Snapshot, error) {
	defaults := Builtin()
	if path == "" {
		return defaults, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read presets file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &defaults); err != nil {
		return Snapshot{}, fmt.Errorf("decode presets file %s: %w", path, err)
	}
	return defaults, nil
}
