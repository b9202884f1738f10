package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yml
var catalogYAML []byte

// CatalogCity is a seed city with coordinates used for placing users and jams.
type CatalogCity struct {
	Name    string  `yaml:"name"`
	Country string  `yaml:"country"`
	Lat     float64 `yaml:"lat"`
	Lng     float64 `yaml:"lng"`
}

// Catalog is the static reference data backing the seeder: instruments,
// genres, and a handful of cities with real coordinates so proximity search
// returns sensible results against seeded data.
type Catalog struct {
	Instruments []string      `yaml:"instruments"`
	Genres      []string      `yaml:"genres"`
	Cities      []CatalogCity `yaml:"cities"`
	JamTitles   []string      `yaml:"jam_titles"`
}

// LoadCatalog parses the embedded catalog file.
func LoadCatalog() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(catalogYAML, &c); err != nil {
		return nil, fmt.Errorf("failed to parse seed catalog: %w", err)
	}
	if len(c.Instruments) == 0 || len(c.Cities) == 0 {
		return nil, fmt.Errorf("seed catalog is incomplete")
	}
	return &c, nil
}
