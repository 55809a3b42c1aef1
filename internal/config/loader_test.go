package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSuite = `name: User API
description: Sample suite
env: staging
vars:
  baseUrl: https://api.example.com
tests:
  - name: Get user
    request:
      method: GET
      url: "{{baseUrl}}/users/1"
    expect:
      status: 200
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadSuitesSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "users.rivet.yaml", sampleSuite)

	suites, err := LoadSuites(path)
	if err != nil {
		t.Fatalf("LoadSuites() error: %v", err)
	}

	if len(suites) != 1 {
		t.Fatalf("LoadSuites() returned %d suites, want 1", len(suites))
	}
	if suites[0].Name != "users.rivet.yaml" {
		t.Errorf("suite name = %q, want %q", suites[0].Name, "users.rivet.yaml")
	}
	if suites[0].Dir != dir {
		t.Errorf("suite dir = %q, want %q", suites[0].Dir, dir)
	}
	if suites[0].Suite.Name != "User API" {
		t.Errorf("suite.Name = %q, want %q", suites[0].Suite.Name, "User API")
	}
	if suites[0].Suite.Env != "staging" {
		t.Errorf("suite.Env = %q, want %q", suites[0].Suite.Env, "staging")
	}
	if len(suites[0].Suite.Tests) != 1 {
		t.Errorf("len(Tests) = %d, want 1", len(suites[0].Suite.Tests))
	}
}

func TestLoadSuitesDirectory(t *testing.T) {
	dir := t.TempDir()

	second := strings.Replace(sampleSuite, "User API", "Second Suite", 1)
	writeFile(t, dir, "b.rivet.yml", second)
	writeFile(t, dir, "a.rivet.yaml", sampleSuite)
	// Files outside the naming convention are ignored.
	writeFile(t, dir, "config.yaml", "some: config")
	writeFile(t, dir, "notes.rivet.txt", "not yaml")

	suites, err := LoadSuites(dir)
	if err != nil {
		t.Fatalf("LoadSuites() error: %v", err)
	}

	if len(suites) != 2 {
		t.Fatalf("LoadSuites() returned %d suites, want 2", len(suites))
	}
	// Sorted by filename for a stable execution order.
	if suites[0].Name != "a.rivet.yaml" || suites[1].Name != "b.rivet.yml" {
		t.Errorf("suite order = [%s, %s], want [a.rivet.yaml, b.rivet.yml]", suites[0].Name, suites[1].Name)
	}
	if suites[1].Suite.Name != "Second Suite" {
		t.Errorf("second suite name = %q, want %q", suites[1].Suite.Name, "Second Suite")
	}
}

func TestLoadSuitesDirectoryWithoutSuites(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "some: config")

	_, err := LoadSuites(dir)
	if err == nil || !strings.Contains(err.Error(), "no .rivet.yaml files found") {
		t.Errorf("LoadSuites() error = %v, want 'no .rivet.yaml files found'", err)
	}
}

func TestLoadSuitesNonexistentPath(t *testing.T) {
	_, err := LoadSuites("/nonexistent/path")
	if err == nil || !strings.Contains(err.Error(), "path does not exist") {
		t.Errorf("LoadSuites() error = %v, want 'path does not exist'", err)
	}
}

func TestLoadSuitesInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.rivet.yaml", "invalid: yaml: content: [")

	_, err := LoadSuites(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("LoadSuites() error = %v, want 'failed to parse YAML'", err)
	}
}

func TestLoadSuitesValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.rivet.yaml", `name: Broken
tests:
  - name: No method
    request:
      url: https://example.com
`)

	_, err := LoadSuites(path)
	if err == nil || !strings.Contains(err.Error(), "no request method") {
		t.Errorf("LoadSuites() error = %v, want 'no request method'", err)
	}
}

func TestIsSuiteFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"api.rivet.yaml", true},
		{"api.rivet.yml", true},
		{"config.yaml", false},
		{"rivet.yaml", false},
		{"api.rivet.txt", false},
		{"deep.rivet.backup.yaml", true},
	}

	for _, tt := range tests {
		if got := isSuiteFile(tt.name); got != tt.want {
			t.Errorf("isSuiteFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/suites", "data.csv"); got != filepath.Join("/suites", "data.csv") {
		t.Errorf("ResolvePath relative = %q", got)
	}
	if got := ResolvePath("/suites", "/abs/data.csv"); got != "/abs/data.csv" {
		t.Errorf("ResolvePath absolute = %q", got)
	}
}
