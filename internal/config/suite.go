// Package config defines the suite data model and the loaders that turn
// .rivet.yaml files and CSV datasets into it.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Suite is the unit of test organization: ordered test steps plus optional
// setup/teardown sequences and an optional dataset descriptor. A Suite is
// immutable once loaded; runners clone it per worker rather than share it.
type Suite struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Env         string            `yaml:"env,omitempty" json:"env,omitempty"`
	Vars        map[string]string `yaml:"vars,omitempty" json:"vars,omitempty"`
	Setup       []Step            `yaml:"setup,omitempty" json:"setup,omitempty"`
	Tests       []Step            `yaml:"tests" json:"tests"`
	Dataset     *Dataset          `yaml:"dataset,omitempty" json:"dataset,omitempty"`
	Teardown    []Step            `yaml:"teardown,omitempty" json:"teardown,omitempty"`
}

// Step is one named request-plus-expectation pair, the atomic schedulable unit.
type Step struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Request     Request      `yaml:"request" json:"request"`
	Expect      *Expectation `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// Request describes one templated HTTP call. Every string field may contain
// {{var}} or ${VAR:default} placeholders resolved just before dispatch.
type Request struct {
	Method  string            `yaml:"method" json:"method"`
	URL     string            `yaml:"url" json:"url"`
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Params  map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	Body    string            `yaml:"body,omitempty" json:"body,omitempty"`
}

// Expectation is the set of assertions a response must satisfy.
type Expectation struct {
	Status   *StatusExpectation     `yaml:"status,omitempty" json:"status,omitempty"`
	Schema   string                 `yaml:"schema,omitempty" json:"schema,omitempty"`
	JSONPath map[string]interface{} `yaml:"jsonpath,omitempty" json:"jsonpath,omitempty"`
	Headers  map[string]string      `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// StatusExpectation is either a literal status code or a template string that
// is substituted and parsed to an integer at validation time.
type StatusExpectation struct {
	Code   int
	Text   string
	IsCode bool
}

// UnmarshalYAML accepts a bare integer or a string.
func (s *StatusExpectation) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		if err := value.Decode(&s.Code); err != nil {
			return err
		}
		s.IsCode = true
		return nil
	}

	if err := value.Decode(&s.Text); err != nil {
		return fmt.Errorf("status must be an integer or a string, got %s", value.Tag)
	}
	return nil
}

// MarshalYAML writes the same shape back out.
func (s StatusExpectation) MarshalYAML() (interface{}, error) {
	if s.IsCode {
		return s.Code, nil
	}
	return s.Text, nil
}

// Dataset references a CSV file whose rows fan out the suite's test steps.
// Parallel, when set, overrides the runner's configured parallelism for rows.
type Dataset struct {
	File     string `yaml:"file" json:"file"`
	Parallel int    `yaml:"parallel,omitempty" json:"parallel,omitempty"`
}

// Clone returns a deep copy of the suite so workers never share mutable state.
func (s *Suite) Clone() *Suite {
	if s == nil {
		return nil
	}

	clone := *s
	clone.Vars = cloneStringMap(s.Vars)
	clone.Setup = cloneSteps(s.Setup)
	clone.Tests = cloneSteps(s.Tests)
	clone.Teardown = cloneSteps(s.Teardown)
	if s.Dataset != nil {
		ds := *s.Dataset
		clone.Dataset = &ds
	}
	return &clone
}

func cloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i, step := range steps {
		out[i] = step
		out[i].Request.Headers = cloneStringMap(step.Request.Headers)
		out[i].Request.Params = cloneStringMap(step.Request.Params)
		if step.Expect != nil {
			expect := *step.Expect
			expect.Headers = cloneStringMap(step.Expect.Headers)
			if step.Expect.JSONPath != nil {
				expect.JSONPath = make(map[string]interface{}, len(step.Expect.JSONPath))
				for k, v := range step.Expect.JSONPath {
					expect.JSONPath[k] = v
				}
			}
			if step.Expect.Status != nil {
				status := *step.Expect.Status
				expect.Status = &status
			}
			out[i].Expect = &expect
		}
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate performs the fail-fast structural checks that must pass before any
// request is dispatched.
func (s *Suite) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("suite name cannot be empty")
	}

	for _, group := range []struct {
		kind  string
		steps []Step
	}{
		{"setup", s.Setup},
		{"test", s.Tests},
		{"teardown", s.Teardown},
	} {
		for i, step := range group.steps {
			if step.Name == "" {
				return fmt.Errorf("%s step %d has no name", group.kind, i+1)
			}
			if step.Request.Method == "" {
				return fmt.Errorf("%s step '%s' has no request method", group.kind, step.Name)
			}
			if step.Request.URL == "" {
				return fmt.Errorf("%s step '%s' has no request URL", group.kind, step.Name)
			}
		}
	}

	if s.Dataset != nil {
		if s.Dataset.File == "" {
			return fmt.Errorf("dataset file cannot be empty")
		}
		if s.Dataset.Parallel < 0 {
			return fmt.Errorf("dataset parallel cannot be negative")
		}
	}

	return nil
}
