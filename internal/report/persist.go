package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes the report as indented JSON, creating parent directories as
// needed. The write goes through a temp file and rename so a crash never
// leaves a half-written report behind.
func (r *RunReport) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run report: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing run report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing run report: %w", err)
	}
	return nil
}

// Load reads a previously saved report.
func Load(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run report: %w", err)
	}
	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding run report %s: %w", path, err)
	}
	return &r, nil
}
