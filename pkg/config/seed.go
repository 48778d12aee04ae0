package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/shubapp/devproxy/pkg/rule"
)

// LoadSeed expands the config's mock and scenario file references and loads
// their contents. Each reference is a path or a glob (** supported) resolved
// against baseDir, which is typically the config file's directory. A glob
// with no matches is not an error; a referenced file that fails to parse is.
func LoadSeed(cfg *Config, baseDir string) (*Seed, error) {
	seed := &Seed{}

	for i, ref := range cfg.Mocks {
		files, err := expandSeedRef(ref, baseDir)
		if err != nil {
			return nil, fmt.Errorf("mocks[%d] (%s): %w", i, ref, err)
		}
		for _, file := range files {
			mocks, err := loadMockFile(file)
			if err != nil {
				return nil, fmt.Errorf("mocks[%d]: %w", i, err)
			}
			seed.Mocks = append(seed.Mocks, mocks...)
		}
	}

	for i, ref := range cfg.Scenarios {
		files, err := expandSeedRef(ref, baseDir)
		if err != nil {
			return nil, fmt.Errorf("scenarios[%d] (%s): %w", i, ref, err)
		}
		for _, file := range files {
			scenarios, err := loadScenarioFile(file)
			if err != nil {
				return nil, fmt.Errorf("scenarios[%d]: %w", i, err)
			}
			seed.Scenarios = append(seed.Scenarios, scenarios...)
		}
	}

	return seed, nil
}

// expandSeedRef resolves a path or glob reference to a sorted file list.
// A plain path must exist; a glob may match nothing.
func expandSeedRef(ref, baseDir string) ([]string, error) {
	resolved := ResolvePath(baseDir, ref)

	if !strings.ContainsAny(ref, "*?[") {
		if _, err := os.Stat(resolved); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, resolved)
			}
			return nil, err
		}
		return []string{resolved}, nil
	}

	var matches []string
	var err error
	if strings.Contains(resolved, "**") {
		matches, err = doublestar.FilepathGlob(resolved)
	} else {
		matches, err = filepath.Glob(resolved)
	}
	if err != nil {
		return nil, fmt.Errorf("expanding glob: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

func loadMockFile(path string) ([]*rule.MockRule, error) {
	mocks, err := decodeSeedFile[rule.MockRule](path)
	if err != nil {
		return nil, err
	}
	for _, m := range mocks {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%s: mock %s: %w", path, m.ID, err)
		}
	}
	return mocks, nil
}

func loadScenarioFile(path string) ([]*rule.Scenario, error) {
	scenarios, err := decodeSeedFile[rule.Scenario](path)
	if err != nil {
		return nil, err
	}
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("%s: scenario %s: %w", path, s.ID, err)
		}
	}
	return scenarios, nil
}

// decodeSeedFile reads a YAML or JSON file that holds either a single item
// or a list of items.
func decodeSeedFile[T any](path string) ([]*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	expanded := []byte(ExpandEnvVars(string(data)))

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		return decodeJSONOneOrMany[T](expanded, path)
	}
	return decodeYAMLOneOrMany[T](expanded, path)
}

func decodeYAMLOneOrMany[T any](data []byte, path string) ([]*T, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrInvalidYAML, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		var items []*T
		if err := root.Decode(&items); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", path, ErrInvalidYAML, err)
		}
		return items, nil
	}

	var item T
	if err := root.Decode(&item); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrInvalidYAML, err)
	}
	return []*T{&item}, nil
}

func decodeJSONOneOrMany[T any](data []byte, path string) ([]*T, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []*T
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", path, ErrInvalidJSON, err)
		}
		return items, nil
	}

	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrInvalidJSON, err)
	}
	return []*T{&item}, nil
}
