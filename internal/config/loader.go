package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// NamedSuite pairs a loaded suite with the file it came from. Dir is the
// suite file's directory; dataset and schema references resolve against it.
type NamedSuite struct {
	Name  string
	Dir   string
	Suite *Suite
}

// LoadSuites loads one suite from a file target, or every *.rivet.yaml /
// *.rivet.yml under a directory target sorted by filename for a stable
// execution order.
func LoadSuites(path string) ([]NamedSuite, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %s", path)
	}

	if !info.IsDir() {
		suite, err := loadSuiteFile(path)
		if err != nil {
			return nil, err
		}
		return []NamedSuite{{
			Name:  filepath.Base(path),
			Dir:   filepath.Dir(path),
			Suite: suite,
		}}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isSuiteFile(d.Name()) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning directory %s: %w", path, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no .rivet.yaml files found in directory: %s", path)
	}

	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})

	suites := make([]NamedSuite, 0, len(files))
	for _, file := range files {
		suite, err := loadSuiteFile(file)
		if err != nil {
			return nil, err
		}
		suites = append(suites, NamedSuite{
			Name:  filepath.Base(file),
			Dir:   filepath.Dir(file),
			Suite: suite,
		})
	}

	return suites, nil
}

// isSuiteFile matches the `<name>.rivet.yaml` / `<name>.rivet.yml` convention.
func isSuiteFile(name string) bool {
	ext := filepath.Ext(name)
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	return strings.Contains(name, ".rivet.")
}

func loadSuiteFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %s: %w", path, err)
	}

	if err := suite.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite %s: %w", path, err)
	}

	return &suite, nil
}

// ResolvePath resolves a suite-relative reference (dataset file, schema file)
// against the suite's directory. Absolute paths pass through unchanged.
func ResolvePath(dir, ref string) string {
	if filepath.IsAbs(ref) || dir == "" {
		return ref
	}
	return filepath.Join(dir, ref)
}
