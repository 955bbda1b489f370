// Package optioncfg loads the labels and icons the kiosk UI shows for each
// selectable option.
package optioncfg

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"kiosk/internal/domain"
)

//go:embed options.yaml
var defaultCatalog []byte

// Entry is one selectable value with its display metadata.
type Entry struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
	Icon  string `yaml:"icon" json:"icon,omitempty"`
}

// Catalog groups the entries per option dimension.
type Catalog struct {
	Outfits      []Entry `yaml:"outfits" json:"outfits"`
	Settings     []Entry `yaml:"settings" json:"settings"`
	Styles       []Entry `yaml:"styles" json:"styles"`
	AspectRatios []Entry `yaml:"aspect_ratios" json:"aspect_ratios"`
	Default      string  `yaml:"-" json:"default_aspect_ratio"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes a YAML catalog and checks it against the closed enumerations.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode option catalog: %w", err)
	}
	c.Default = string(domain.DefaultAspectRatio)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate requires every entry to be a known value and every known value to
// have an entry.
func (c *Catalog) Validate() error {
	if err := check("outfits", c.Outfits, domain.Outfits); err != nil {
		return err
	}
	if err := check("settings", c.Settings, domain.Settings); err != nil {
		return err
	}
	if err := check("styles", c.Styles, domain.Styles); err != nil {
		return err
	}
	return check("aspect_ratios", c.AspectRatios, domain.AspectRatios)
}

func check[T ~string](section string, entries []Entry, known []T) error {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !isKnown(e.Value, known) {
			return fmt.Errorf("option catalog %s: unknown value %q", section, e.Value)
		}
		if e.Label == "" {
			return fmt.Errorf("option catalog %s: label missing for %q", section, e.Value)
		}
		seen[e.Value] = struct{}{}
	}
	for _, k := range known {
		if _, ok := seen[string(k)]; !ok {
			return fmt.Errorf("option catalog %s: missing %q", section, k)
		}
	}
	return nil
}

func isKnown[T ~string](v string, known []T) bool {
	for _, k := range known {
		if string(k) == v {
			return true
		}
	}
	return false
}
