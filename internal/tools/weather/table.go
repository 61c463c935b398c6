// Package weather provides the get_todays_weather tool and the city table behind it.
package weather

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Report is today's weather for one city.
type Report struct {
	Condition   string `yaml:"condition"`
	Temperature string `yaml:"temperature"`
}

// tableFile is the on-disk YAML layout:
//
//	cities:
//	  Tokyo: {condition: Sunny, temperature: "28°C"}
type tableFile struct {
	Cities map[string]Report `yaml:"cities"`
}

// DefaultReports returns the built-in table.
func DefaultReports() map[string]Report {
	return map[string]Report{
		"Tokyo":    {Condition: "Sunny", Temperature: "28°C"},
		"Shanghai": {Condition: "Cloudy", Temperature: "31°C"},
	}
}

// Table is a concurrency-safe city -> report lookup that can be swapped at runtime.
type Table struct {
	mu      sync.RWMutex
	reports map[string]Report
}

// NewTable creates a table holding a copy of reports.
func NewTable(reports map[string]Report) *Table {
	t := &Table{}
	t.Replace(reports)
	return t
}

// Lookup returns the report for city. Matching is exact, as city names are shown to the Brain verbatim.
func (t *Table) Lookup(city string) (Report, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.reports[city]
	return r, ok
}

// Cities returns the known city names, sorted.
func (t *Table) Cities() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.reports))
	for c := range t.reports {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Replace swaps in a new set of reports.
func (t *Table) Replace(reports map[string]Report) {
	cp := make(map[string]Report, len(reports))
	for city, r := range reports {
		cp[city] = r
	}
	t.mu.Lock()
	t.reports = cp
	t.mu.Unlock()
}

// LoadFile reads a YAML weather table.
func LoadFile(path string) (map[string]Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weather table: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (map[string]Report, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse weather table: %w", err)
	}
	if len(f.Cities) == 0 {
		return nil, fmt.Errorf("parse weather table: no cities defined")
	}
	for city, r := range f.Cities {
		if strings.TrimSpace(city) == "" {
			return nil, fmt.Errorf("parse weather table: empty city name")
		}
		if r.Condition == "" || r.Temperature == "" {
			return nil, fmt.Errorf("parse weather table: city %q needs condition and temperature", city)
		}
	}
	return f.Cities, nil
}
