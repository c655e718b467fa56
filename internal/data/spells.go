// Package data holds the static spell catalog: named spell definitions
// used when a spell action materializes a spell-effect object.
package data

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed spells.yaml
var defaultCatalog []byte

// SpellTemplate describes one castable spell.
// DurationRounds 0 marks an instant spell: its effect object is placed
// but never removed by the lifecycle sweep.
type SpellTemplate struct {
	Name           string  `yaml:"name"`
	DurationRounds int     `yaml:"duration_rounds"`
	Shape          string  `yaml:"shape"`
	Color          string  `yaml:"color"`
	Radius         float64 `yaml:"radius"`
	CastMs         int     `yaml:"cast_ms"`
}

type catalogFile struct {
	Spells []SpellTemplate `yaml:"spells"`
}

// SpellCatalog is a reloadable registry of spell templates keyed by name.
//
// Thread-safe: lookups may race with a hot reload.
type SpellCatalog struct {
	mu     sync.RWMutex
	byName map[string]SpellTemplate
}

// LoadSpellCatalog builds a catalog from the embedded defaults, then
// overlays definitions from path if the file exists.
func LoadSpellCatalog(path string) (*SpellCatalog, error) {
	c := &SpellCatalog{byName: make(map[string]SpellTemplate)}

	if err := c.merge(defaultCatalog); err != nil {
		return nil, fmt.Errorf("parsing embedded spell catalog: %w", err)
	}
	if path != "" {
		if err := c.ReloadFrom(path); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ReloadFrom overlays spell definitions from a YAML file.
// A missing file is not an error; the embedded defaults stay in effect.
func (c *SpellCatalog) ReloadFrom(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading spell catalog %s: %w", path, err)
	}
	if err := c.merge(raw); err != nil {
		return fmt.Errorf("parsing spell catalog %s: %w", path, err)
	}
	return nil
}

func (c *SpellCatalog) merge(raw []byte) error {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tmpl := range file.Spells {
		if tmpl.Name == "" {
			continue
		}
		c.byName[tmpl.Name] = tmpl
	}
	return nil
}

// Get returns the template for the named spell, or nil if unknown.
func (c *SpellCatalog) Get(name string) *SpellTemplate {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if tmpl, ok := c.byName[name]; ok {
		return &tmpl
	}
	return nil
}

// Len returns the number of known spells.
func (c *SpellCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName)
}
