package configs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadFromBundle reads config.json out of bundlePath and unmarshals it
// directly into a Config, since Config's json tags already mirror the
// OCI bundle schema field for field. Deep schema validation is out of
// scope here (see configs/validate); this only has to produce a
// well-typed record or fail fast on malformed JSON.
func LoadFromBundle(bundlePath string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(bundlePath, "config.json"))
	if err != nil {
		return nil, fmt.Errorf("read config.json: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config.json: %w", err)
	}
	cfg.BundlePath = bundlePath
	return &cfg, nil
}
