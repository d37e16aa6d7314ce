// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// applyFile overlays a YAML config file onto cfg. Unknown keys are rejected
// so typos surface at startup instead of silently using defaults.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the operator
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}
