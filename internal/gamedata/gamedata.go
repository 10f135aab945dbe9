// Package gamedata holds the static reference tables the query surface
// validates against: playable classes with their specs, the current raid
// tier's encounters, and region codes.
package gamedata

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/fx"
)

//go:embed classes.toml
var classesTOML []byte

type Class struct {
	// Name is the underscore-separated key used in query parameters,
	// e.g. "Death_Knight".
	Name  string
	Specs []string
}

type Encounter struct {
	ID   int
	Name string
}

type Region struct {
	Code string
	Name string
}

type Data struct {
	classes    []Class
	classIndex map[string]int
	encounters []Encounter
	regions    []Region
}

// Load parses the embedded class table and assembles the static
// encounter/region lists.
func Load() (*Data, error) {
	var raw map[string]struct {
		Specs []string `toml:"specs"`
	}
	if err := toml.Unmarshal(classesTOML, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse classes.toml: %w", err)
	}

	d := &Data{
		classIndex: make(map[string]int, len(raw)),
		encounters: manaforgeOmegaEncounters(),
		regions:    allRegions(),
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		d.classes = append(d.classes, Class{Name: name, Specs: raw[name].Specs})
		d.classIndex[name] = i
	}

	return d, nil
}

func (d *Data) Classes() []Class        { return d.classes }
func (d *Data) Encounters() []Encounter { return d.encounters }
func (d *Data) Regions() []Region       { return d.regions }

// SpecsFor returns the spec list for a class key, or false when the class
// is unknown.
func (d *Data) SpecsFor(class string) ([]string, bool) {
	i, ok := d.classIndex[class]
	if !ok {
		return nil, false
	}
	return d.classes[i].Specs, true
}

// ValidClassSpec reports whether spec is a known spec of class.
func (d *Data) ValidClassSpec(class, spec string) bool {
	specs, ok := d.SpecsFor(class)
	if !ok {
		return false
	}
	for _, s := range specs {
		if s == spec {
			return true
		}
	}
	return false
}

func (d *Data) ValidEncounter(id int) bool {
	for _, e := range d.encounters {
		if e.ID == id {
			return true
		}
	}
	return false
}

func (d *Data) ValidRegion(code string) bool {
	for _, r := range d.regions {
		if r.Code == code {
			return true
		}
	}
	return false
}

// DisplayName turns a class key into its human form, e.g.
// "Death_Knight" -> "Death Knight".
func DisplayName(class string) string {
	return strings.ReplaceAll(class, "_", " ")
}

// Manaforge Omega (The War Within season 3).
func manaforgeOmegaEncounters() []Encounter {
	return []Encounter{
		{ID: 3129, Name: "Plexus Sentinel"},
		{ID: 3131, Name: "Loom'ithar"},
		{ID: 3130, Name: "Soulbinder Naazindhri"},
		{ID: 3132, Name: "Forgeweaver Araz"},
		{ID: 3122, Name: "The Soul Hunters"},
		{ID: 3133, Name: "Fractillus"},
		{ID: 3134, Name: "Nexus-King Salahadaar"},
		{ID: 3135, Name: "Dimensius, the All-Devouring"},
	}
}

func allRegions() []Region {
	return []Region{
		{Code: "all", Name: "All Regions"},
		{Code: "US", Name: "US & Oceanic"},
		{Code: "EU", Name: "Europe"},
		{Code: "KR", Name: "Korea"},
		{Code: "TW", Name: "Taiwan"},
		{Code: "CN", Name: "China"},
	}
}

var Module = fx.Provide(Load)
