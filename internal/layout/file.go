package layout

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type layoutsFile struct {
	Sites map[string]*SiteLayout `toml:"sites"`
}

// Parse decodes a TOML layouts document into the registry.
func (r *Registry) Parse(data []byte) error {
	var f layoutsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse layouts: %w", err)
	}

	for name, l := range f.Sites {
		if l == nil {
			continue
		}
		if err := r.Register(name, l); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile merges the layouts defined in a TOML file into the registry.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read layouts file: %w", err)
	}
	if err := r.Parse(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
