package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Spec is one entry of the process registry file. It lets an operator point a
// process name at a different binary (an absolute rsync path, a wrapper script)
// and add fixed arguments such as ssh options.
type Spec struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args" json:"args"`
	Env     map[string]string `yaml:"env" json:"env"`
	// Timeout is a Go duration string; empty means the caller's context alone bounds the run.
	Timeout string `yaml:"timeout" json:"timeout"`
}

type registryFile struct {
	Processes []Spec `yaml:"processes" json:"processes"`
}

// LoadRegistry reads a process registry (YAML, or JSON by extension).
// A missing file yields an empty registry.
func LoadRegistry(path string) (map[string]RegisteredProcess, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]RegisteredProcess{}, nil
		}
		return nil, fmt.Errorf("failed to read process registry: %w", err)
	}

	var file registryFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &file)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	registry := make(map[string]RegisteredProcess, len(file.Processes))
	for i, spec := range file.Processes {
		if spec.Name == "" {
			return nil, fmt.Errorf("processes[%d]: name is required", i)
		}
		if spec.Command == "" {
			return nil, fmt.Errorf("process %q: command is required", spec.Name)
		}
		proc := RegisteredProcess{Command: spec.Command, Args: spec.Args, Env: spec.Env}
		if spec.Timeout != "" {
			d, err := time.ParseDuration(spec.Timeout)
			if err != nil || d <= 0 {
				return nil, fmt.Errorf("process %q: invalid timeout %q", spec.Name, spec.Timeout)
			}
			proc.Timeout = d
		}
		registry[spec.Name] = proc
	}
	return registry, nil
}
