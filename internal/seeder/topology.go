package seeder

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Topology describes the factory, production line, and machine hierarchy
// the generator draws machine ids from. It mirrors the schema the stats
// aggregator groups by.
type Topology struct {
	Factories []Factory `yaml:"factories"`
}

type Factory struct {
	ID    string `yaml:"id"`
	Lines []Line `yaml:"lines"`
}

type Line struct {
	ID       string   `yaml:"id"`
	Machines []string `yaml:"machines"`
}

// MachineIDs flattens the hierarchy into the list of machine ids.
func (t *Topology) MachineIDs() []string {
	var ids []string
	for _, factory := range t.Factories {
		for _, line := range factory.Lines {
			ids = append(ids, line.Machines...)
		}
	}
	return ids
}

// LoadTopology reads a topology YAML file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file: %w", err)
	}

	var topology Topology
	if err := yaml.Unmarshal(data, &topology); err != nil {
		return nil, fmt.Errorf("failed to parse topology file: %w", err)
	}
	if len(topology.MachineIDs()) == 0 {
		return nil, fmt.Errorf("topology %s declares no machines", path)
	}
	return &topology, nil
}

// DefaultTopology returns a small two-line plant for quick local runs.
func DefaultTopology() *Topology {
	return &Topology{
		Factories: []Factory{
			{
				ID: "factory-1",
				Lines: []Line{
					{ID: "line-1", Machines: []string{"machine-1", "machine-2", "machine-3"}},
					{ID: "line-2", Machines: []string{"machine-4", "machine-5"}},
				},
			},
		},
	}
}
