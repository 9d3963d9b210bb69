package node

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// tableFile is the on-disk layout of a nodes file:
//
//	nodes:
//	  - name: master1
//	    container: seaweedfs-master1
type tableFile struct {
	Nodes []struct {
		Name      string `yaml:"name"`
		Container string `yaml:"container"`
	} `yaml:"nodes"`
}

// LoadTableFile reads a YAML nodes file.
func LoadTableFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read nodes file: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes a YAML nodes document.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse nodes file: %w", err)
	}

	names := make(map[string]string, len(f.Nodes))
	for i, n := range f.Nodes {
		if n.Name == "" || n.Container == "" {
			return nil, fmt.Errorf("nodes[%d]: name and container are required", i)
		}
		if _, dup := names[n.Name]; dup {
			return nil, fmt.Errorf("nodes[%d]: duplicate name %q", i, n.Name)
		}
		names[n.Name] = n.Container
	}
	return NewTable(names), nil
}
