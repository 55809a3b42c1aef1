package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFullSuiteLifecycle drives a realistic suite through setup, data-driven
// tests, and teardown against a stateful in-memory API.
func TestFullSuiteLifecycle(t *testing.T) {
	var mu sync.Mutex
	sessions := map[string]bool{}

	mux := http.NewServeMux()
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			sessions["current"] = true
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"token":"abc123"}`)
		case http.MethodDelete:
			delete(sessions, "current")
			w.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		active := sessions["current"]
		mu.Unlock()
		if !active {
			http.Error(w, "no session", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []string{"a", "b"},
			"count": 2,
			"owner": r.URL.Query().Get("owner"),
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "owners.csv"),
		[]byte("owner\nalice\nbob\n"), 0o644))

	suiteYAML := fmt.Sprintf(`
name: Items API
description: Session lifecycle around the items endpoint
vars:
  baseUrl: %s
setup:
  - name: open session
    request:
      method: POST
      url: "{{baseUrl}}/session"
    expect:
      status: 201
      jsonpath:
        $.token: abc123
dataset:
  file: owners.csv
tests:
  - name: list items
    request:
      method: GET
      url: "{{baseUrl}}/items"
      params:
        owner: "{{owner}}"
    expect:
      status: 200
      headers:
        Content-Type: application/json
      jsonpath:
        $.count: 2
        $.items[0]: a
        $.owner: "{{owner}}"
teardown:
  - name: close session
    request:
      method: DELETE
      url: "{{baseUrl}}/session"
    expect:
      status: 204
`, server.URL)
	path := filepath.Join(dir, "items.rivet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(suiteYAML), 0o644))

	reporter := &countingReporter{}
	results, err := NewRunner(WithReporter(reporter)).Run(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, results, 1)

	suite := results[0]
	assert.Equal(t, "Items API", suite.Name)
	// setup + 2 rows + teardown
	assert.Len(t, suite.Results, 4)
	assert.Equal(t, 4, suite.Passed)
	assert.Zero(t, suite.Failed)

	assert.Equal(t, "Setup: open session", reporter.stepNames[0])
	assert.Equal(t, "Teardown: close session", reporter.stepNames[len(reporter.stepNames)-1])

	// Session was actually closed by teardown.
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, sessions)
}

// TestEndToEndStatusFlip pins the pass/fail flip when the server's answer
// changes out from under an expectation.
func TestEndToEndStatusFlip(t *testing.T) {
	status := http.StatusOK
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	path := filepath.Join(dir, "flip.rivet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(`
name: Flip
tests:
  - name: check
    request:
      method: GET
      url: "%s/"
    expect:
      status: 200
`, server.URL)), 0o644))

	results, err := NewRunner().Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, results[0].Passed)
	assert.Zero(t, results[0].Failed)

	mu.Lock()
	status = http.StatusNotFound
	mu.Unlock()

	results, err = NewRunner().Run(context.Background(), path)
	require.NoError(t, err)
	assert.Zero(t, results[0].Passed)
	assert.Equal(t, 1, results[0].Failed)
	assert.Contains(t, results[0].Results[0].Error, "200")
	assert.Contains(t, results[0].Results[0].Error, "404")
}
