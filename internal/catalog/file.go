package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileSnapshot is the on-disk YAML form of a catalog snapshot.
type fileSnapshot struct {
	Tables []Entry `yaml:"tables"`
}

// LoadFile reads a catalog snapshot from a YAML file, for offline runs
// where the warehouse's information schema is not reachable.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var fs fileSnapshot
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}

	for i, e := range fs.Tables {
		if e.QualifiedName == "" {
			return nil, fmt.Errorf("catalog: %s: table %d has no qualified_name", path, i)
		}
	}

	return NewSnapshot(fs.Tables), nil
}

// SaveFile writes a snapshot to a YAML file so a harvested catalog can be
// reused by later offline runs.
func SaveFile(path string, s *Snapshot) error {
	fs := fileSnapshot{Tables: s.Entries()}

	data, err := yaml.Marshal(&fs)
	if err != nil {
		return fmt.Errorf("catalog: marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("catalog: write %s: %w", path, err)
	}
	return nil
}
