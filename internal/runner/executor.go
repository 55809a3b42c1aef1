package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/rivet/internal/config"
	"github.com/wesleyorama2/rivet/pkg/jsonpath"
	"github.com/wesleyorama2/rivet/pkg/jsonschema"
)

// TestResult is the outcome of one step execution. ResponseStatus is zero
// when no response was received (transport failure or timeout).
type TestResult struct {
	Name           string
	Passed         bool
	Duration       time.Duration
	Error          string
	ResponseStatus int
	ResponseBody   string
}

// Executor issues one HTTP call from a templated request description and
// applies the step's expectation. Execute never returns an error: every
// failure mode is captured in the TestResult.
type Executor struct {
	client *http.Client
}

// NewExecutor creates an executor whose calls are bounded by timeout.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{
		client: &http.Client{Timeout: timeout},
	}
}

// Execute resolves the request against vars, dispatches it, and validates the
// response. schemaDir is the directory schema references resolve against.
func (e *Executor) Execute(ctx context.Context, name string, req config.Request, expect *config.Expectation, vars *Context, schemaDir string) TestResult {
	start := time.Now()

	resp, body, err := e.dispatch(ctx, req, vars)
	duration := time.Since(start)

	if err != nil {
		return TestResult{
			Name:     name,
			Passed:   false,
			Duration: duration,
			Error:    err.Error(),
		}
	}

	result := TestResult{
		Name:           name,
		Duration:       duration,
		ResponseStatus: resp.StatusCode,
		ResponseBody:   body,
	}

	if expect == nil {
		// No expectations: the request passes iff it did not error.
		result.Passed = resp.StatusCode < 400
		if !result.Passed {
			result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return result
	}

	if err := validate(resp, body, expect, vars, schemaDir); err != nil {
		result.Passed = false
		result.Error = err.Error()
		return result
	}

	result.Passed = true
	return result
}

// dispatch builds and sends the HTTP call, returning the response with its
// fully read body.
func (e *Executor) dispatch(ctx context.Context, req config.Request, vars *Context) (*http.Response, string, error) {
	rawURL := vars.Substitute(req.URL)
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, "", fmt.Errorf("invalid URL %q: missing scheme or host", rawURL)
	}

	if len(req.Params) > 0 {
		query := target.Query()
		for key, value := range req.Params {
			query.Add(vars.Substitute(key), vars.Substitute(value))
		}
		target.RawQuery = query.Encode()
	}

	var bodyReader io.Reader
	if req.Body != "" {
		bodyReader = strings.NewReader(vars.Substitute(req.Body))
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), bodyReader)
	if err != nil {
		return nil, "", fmt.Errorf("invalid HTTP method %q: %w", req.Method, err)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(vars.Substitute(key), vars.Substitute(value))
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	return resp, string(body), nil
}

// validate applies an expectation to a response. The first failing rule wins:
// later rules are not evaluated and not aggregated.
func validate(resp *http.Response, body string, expect *config.Expectation, vars *Context, schemaDir string) error {
	if expect.Status != nil {
		expected := expect.Status.Code
		if !expect.Status.IsCode {
			resolved := vars.Substitute(expect.Status.Text)
			code, err := strconv.Atoi(resolved)
			if err != nil {
				return fmt.Errorf("invalid status code %q", resolved)
			}
			expected = code
		}
		if resp.StatusCode != expected {
			return fmt.Errorf("expected status %d but got %d", expected, resp.StatusCode)
		}
	}

	for _, name := range sortedKeys(expect.Headers) {
		want := vars.Substitute(expect.Headers[name])
		got := resp.Header.Get(name)
		if got != want {
			return fmt.Errorf("expected header %s to be %q but got %q", name, want, got)
		}
	}

	if expect.Schema != "" {
		schemaBytes, err := os.ReadFile(config.ResolvePath(schemaDir, expect.Schema))
		if err != nil {
			return fmt.Errorf("failed to read schema %s: %w", expect.Schema, err)
		}
		if err := jsonschema.Validate(body, string(schemaBytes)); err != nil {
			return err
		}
	}

	if len(expect.JSONPath) > 0 {
		if !gjson.Valid(body) {
			return fmt.Errorf("response body is not valid JSON")
		}
		paths := make([]string, 0, len(expect.JSONPath))
		for path := range expect.JSONPath {
			paths = append(paths, path)
		}
		sort.Strings(paths)

		for _, path := range paths {
			if err := validatePath(body, path, expect.JSONPath[path], vars); err != nil {
				return err
			}
		}
	}

	return nil
}

// validatePath evaluates one JSONPath rule against the body.
func validatePath(body, path string, expected interface{}, vars *Context) error {
	actual, err := jsonpath.Lookup(body, path)
	if err != nil {
		return fmt.Errorf("jsonpath '%s': %w", path, err)
	}

	expectedValue := coerceExpected(expected, vars)
	if !valuesEqual(expectedValue, actual) {
		return fmt.Errorf("jsonpath assertion failed for '%s': expected %v but got %s",
			path, expectedValue, actual.Raw)
	}
	return nil
}

// coerceExpected substitutes template strings on the expected side and
// opportunistically coerces them: integer first, then boolean, else string.
// The coercion is deliberately asymmetric; actual values are never coerced.
func coerceExpected(expected interface{}, vars *Context) interface{} {
	s, ok := expected.(string)
	if !ok {
		return expected
	}

	resolved := vars.Substitute(s)
	if n, err := strconv.ParseInt(resolved, 10, 64); err == nil {
		return n
	}
	if resolved == "true" {
		return true
	}
	if resolved == "false" {
		return false
	}
	return resolved
}

// valuesEqual compares a coerced expected value against the actual JSON value.
func valuesEqual(expected interface{}, actual gjson.Result) bool {
	switch exp := expected.(type) {
	case nil:
		return actual.Type == gjson.Null
	case bool:
		return actual.IsBool() && actual.Bool() == exp
	case int:
		return actual.Type == gjson.Number && actual.Num == float64(exp)
	case int64:
		return actual.Type == gjson.Number && actual.Num == float64(exp)
	case float64:
		return actual.Type == gjson.Number && actual.Num == exp
	case string:
		return actual.Type == gjson.String && actual.Str == exp
	default:
		// Structured expectations (maps, lists) compare by JSON shape.
		expJSON, err := json.Marshal(normalizeYAML(expected))
		if err != nil {
			return false
		}
		var expValue, actValue interface{}
		if err := json.Unmarshal(expJSON, &expValue); err != nil {
			return false
		}
		if err := json.Unmarshal([]byte(actual.Raw), &actValue); err != nil {
			return false
		}
		return reflect.DeepEqual(expValue, actValue)
	}
}

// normalizeYAML rewrites yaml.v3's map[string]interface{} trees so they can
// be marshalled with encoding/json regardless of nesting.
func normalizeYAML(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = normalizeYAML(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
