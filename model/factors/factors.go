// Package factors holds the per gas emission factor tables used by the
// treatment breakdown. Factors are estimated placeholder values and
// should be replaced with validated factors aligned to the
// organisation's reporting basis.
package factors

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/superdango/waste-carbon-predictor/internal/must"
	"gopkg.in/yaml.v3"
)

//go:embed data/factors.csv
var factorsCSV []byte

// Factors is one emission factor set, kg of gas emitted per kg of
// material processed. Immutable once loaded.
type Factors struct {
	CO2 float64 `yaml:"co2"`
	CH4 float64 `yaml:"ch4"`
	N2O float64 `yaml:"n2o"`
}

// Default is the factor set used when a (material, process) pair is
// absent from the table. Lookups never fail.
var Default = Factors{CO2: 0.020, CH4: 0.010, N2O: 0.005}

// Table maps (material category, process category) pairs to factor
// sets. Loaded once at process start, read only afterwards, safe for
// unsynchronized concurrent reads.
type Table struct {
	factors   map[string]Factors
	materials []string
	processes []string
}

// NewTable loads the embedded factor table.
func NewTable() *Table {
	table := &Table{factors: make(map[string]Factors)}

	records := csv.NewReader(bytes.NewReader(factorsCSV))
	records.Read() // skip header line
	for {
		record, err := records.Read()
		if err == io.EOF {
			break
		}
		must.NoError(err)

		table.add(record[0], record[1], Factors{
			CO2: must.CastFloat64(record[2]),
			CH4: must.CastFloat64(record[3]),
			N2O: must.CastFloat64(record[4]),
		})
	}

	return table
}

type tableFile struct {
	Materials map[string]map[string]Factors `yaml:"materials"`
}

// LoadTable reads a factor table from a yaml file, replacing the
// embedded defaults entirely.
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read factor table: %w", err)
	}

	file := new(tableFile)
	if err := yaml.Unmarshal(raw, file); err != nil {
		return nil, fmt.Errorf("failed to parse factor table %s: %w", path, err)
	}

	if len(file.Materials) == 0 {
		return nil, fmt.Errorf("factor table %s defines no materials", path)
	}

	table := &Table{factors: make(map[string]Factors)}
	for material, processes := range file.Materials {
		for process, factors := range processes {
			table.add(material, process, factors)
		}
	}
	sort.Strings(table.materials)
	sort.Strings(table.processes)

	return table, nil
}

func (t *Table) add(material, process string, factors Factors) {
	t.factors[key(material, process)] = factors
	if !contains(t.materials, material) {
		t.materials = append(t.materials, material)
	}
	if !contains(t.processes, process) {
		t.processes = append(t.processes, process)
	}
}

// Lookup returns the factor set for a (material, process) pair. Keys
// are matched exactly; absent pairs resolve to Default so a breakdown
// can always be produced when a total is available.
func (t *Table) Lookup(material, process string) Factors {
	if factors, found := t.factors[key(material, process)]; found {
		return factors
	}
	return Default
}

// CanonicalMaterial fuzzy matches a free text material name against
// the table's known categories ("sludge" resolves to "Sludge"). The
// input is returned unchanged when nothing ranks, leaving the Default
// fallback of Lookup to apply.
func (t *Table) CanonicalMaterial(material string) string {
	return canonical(material, t.materials)
}

// CanonicalProcess is CanonicalMaterial for process categories.
func (t *Table) CanonicalProcess(process string) string {
	return canonical(process, t.processes)
}

func canonical(name string, known []string) string {
	ranks := fuzzy.RankFindNormalizedFold(name, known)
	if len(ranks) == 0 {
		return name
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

func key(material, process string) string {
	return material + "/" + process
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
