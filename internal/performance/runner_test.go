package performance

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writePerfSuite(t *testing.T, url string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
name: Perf
vars:
  baseUrl: %s
tests:
  - name: ping
    request:
      method: GET
      url: "{{baseUrl}}/ping"
    expect:
      status: 200
`, url)
	path := filepath.Join(dir, "perf.rivet.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPerformanceRun(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	var out bytes.Buffer
	perf := NewRunner(RunnerConfig{
		Duration:       500 * time.Millisecond,
		Concurrency:    2,
		Pattern:        PatternConstant,
		ReportInterval: 100 * time.Millisecond,
		Out:            &out,
	})

	results, err := perf.Run(context.Background(), writePerfSuite(t, server.URL))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if results.TotalRequests == 0 {
		t.Fatal("no requests recorded")
	}
	if int64(results.TotalRequests) > hits.Load() {
		t.Errorf("recorded %d requests but server saw %d", results.TotalRequests, hits.Load())
	}
	if results.SuccessRate != 1.0 {
		t.Errorf("SuccessRate = %v, want 1.0", results.SuccessRate)
	}
	if !Passed(results) {
		t.Error("verdict should pass at 100% success")
	}
	if results.StatusCodes[200] != results.TotalRequests {
		t.Errorf("StatusCodes = %v", results.StatusCodes)
	}
	// Body-less GETs still account for their request-line and header bytes.
	if results.BytesSent < int64(results.TotalRequests)*100 {
		t.Errorf("BytesSent = %d for %d requests, want >= 100 each", results.BytesSent, results.TotalRequests)
	}
	if !strings.Contains(out.String(), "Performance Test Results") {
		t.Error("final summary not printed")
	}
}

func TestPerformanceRunConnectionErrors(t *testing.T) {
	// Nothing listens on this port.
	var out bytes.Buffer
	perf := NewRunner(RunnerConfig{
		Duration:       300 * time.Millisecond,
		Concurrency:    1,
		Pattern:        PatternConstant,
		ReportInterval: time.Second,
		Timeout:        time.Second,
		Out:            &out,
	})

	results, err := perf.Run(context.Background(), writePerfSuite(t, "http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if results.ConnectionErrors == 0 {
		t.Fatal("expected connection errors")
	}
	if results.ConnectionErrors != results.FailedRequests {
		t.Errorf("connection errors %d should all count as failures (%d)",
			results.ConnectionErrors, results.FailedRequests)
	}
	if results.TotalRequests != results.FailedRequests {
		t.Errorf("connection errors must count toward totals: %d vs %d",
			results.TotalRequests, results.FailedRequests)
	}
	if results.SuccessRate != 0 {
		t.Errorf("SuccessRate = %v, want 0", results.SuccessRate)
	}
	if Passed(results) {
		t.Error("verdict should fail")
	}
}

func TestPerformanceRunFailedAssertionsLowerSuccessRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	var out bytes.Buffer
	perf := NewRunner(RunnerConfig{
		Duration:       300 * time.Millisecond,
		Concurrency:    1,
		Pattern:        PatternConstant,
		ReportInterval: time.Second,
		Out:            &out,
	})

	results, err := perf.Run(context.Background(), writePerfSuite(t, server.URL))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if results.SuccessRate != 0 {
		t.Errorf("SuccessRate = %v, want 0 when every assertion fails", results.SuccessRate)
	}
	if results.ConnectionErrors != 0 {
		t.Errorf("5xx responses are not connection errors, got %d", results.ConnectionErrors)
	}
	if results.StatusCodes[500] != results.TotalRequests {
		t.Errorf("StatusCodes = %v", results.StatusCodes)
	}
}

func TestPerformanceRunUsesFirstSuiteOnly(t *testing.T) {
	var firstHits, secondHits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/first":
			firstHits.Add(1)
		case "/second":
			secondHits.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	suite := func(path string) string {
		return fmt.Sprintf("name: %s\ntests:\n  - name: hit\n    request:\n      method: GET\n      url: \"%s/%s\"\n", path, server.URL, path)
	}
	for name, body := range map[string]string{
		"a.rivet.yaml": suite("first"),
		"b.rivet.yaml": suite("second"),
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var out bytes.Buffer
	perf := NewRunner(RunnerConfig{
		Duration:       300 * time.Millisecond,
		Concurrency:    1,
		Pattern:        PatternConstant,
		ReportInterval: time.Second,
		Out:            &out,
	})
	if _, err := perf.Run(context.Background(), dir); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if firstHits.Load() == 0 {
		t.Error("first suite never ran")
	}
	if secondHits.Load() != 0 {
		t.Errorf("second suite ran %d times, want 0", secondHits.Load())
	}
}
