package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qtoken/internal/query"
	"github.com/roach88/qtoken/internal/schema"
	"github.com/roach88/qtoken/internal/token"
)

// Scenario defines one compile scenario: a request against a schema and
// the expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is a directory of CUE schema files, relative to the scenario
	// file. Empty means the built-in sample schema.
	Schema string `yaml:"schema,omitempty"`

	// Options names the enabled sub-token options. Empty means all.
	Options []string `yaml:"options,omitempty"`

	// Auth denies routes and types by name.
	Auth schema.Rules `yaml:"auth,omitempty"`

	Request RequestStep `yaml:"request"`
	Expect  Expect      `yaml:"expect"`
}

// RequestStep is the YAML form of a query.Request.
type RequestStep struct {
	Root           string          `yaml:"root"`
	Columns        []ColumnStep    `yaml:"columns,omitempty"`
	Filters        []FilterStep    `yaml:"filters,omitempty"`
	Orders         []OrderStep     `yaml:"orders,omitempty"`
	Pagination     *PaginationStep `yaml:"pagination,omitempty"`
	DisableFilters bool            `yaml:"disable_filters,omitempty"`
}

// ColumnStep is one projected token.
type ColumnStep struct {
	Token string `yaml:"token"`
	Name  string `yaml:"name,omitempty"`
}

// FilterStep is either a condition (token, op, value) or a group.
type FilterStep struct {
	Token string     `yaml:"token,omitempty"`
	Op    string     `yaml:"op,omitempty"`
	Value any        `yaml:"value,omitempty"`
	Group *GroupStep `yaml:"group,omitempty"`
}

// GroupStep joins filters, optionally under a quantifier prefix.
type GroupStep struct {
	Or      bool         `yaml:"or,omitempty"`
	Prefix  string       `yaml:"prefix,omitempty"`
	Filters []FilterStep `yaml:"filters"`
}

// OrderStep sorts by a token.
type OrderStep struct {
	Token      string `yaml:"token"`
	Descending bool   `yaml:"descending,omitempty"`
}

// PaginationStep selects either the first rows or one page.
type PaginationStep struct {
	Firsts int `yaml:"firsts,omitempty"`
	Size   int `yaml:"size,omitempty"`
	Page   int `yaml:"page,omitempty"`
}

// Expect lists the checked parts of the outcome. Empty fields are not
// checked.
type Expect struct {
	// Error is the expected error code, e.g. "INVALID_TOKEN" or the
	// resolver's "UNKNOWN_TOKEN". When set, compilation must fail.
	Error string `yaml:"error,omitempty"`

	Logical  string   `yaml:"logical,omitempty"`
	Filtered string   `yaml:"filtered,omitempty"`
	Physical string   `yaml:"physical,omitempty"`
	Columns  []string `yaml:"columns,omitempty"` // column keys in order
	Warnings []string `yaml:"warnings,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative schema directory is resolved against the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Schema != "" && !filepath.IsAbs(s.Schema) {
		s.Schema = filepath.Join(filepath.Dir(path), s.Schema)
	}
	if s.Schema != "" {
		if info, err := os.Stat(s.Schema); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("invalid scenario: schema directory not found: %s", s.Schema)
		}
	}
	return s, nil
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// ParseRequest parses a standalone request document, the "request"
// section of a scenario.
func ParseRequest(data []byte) (*RequestStep, error) {
	var r RequestStep
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateRequest("request", r); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return &r, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, ok := token.ParseOptions(s.Options); !ok {
		return fmt.Errorf("options: unknown option in %v", s.Options)
	}

	if err := validateRequest("request", s.Request); err != nil {
		return err
	}

	if s.Expect.Error != "" && (s.Expect.Logical != "" || s.Expect.Filtered != "" || len(s.Expect.Columns) > 0) {
		return fmt.Errorf("expect: error excludes logical, filtered and columns")
	}
	return nil
}

func validateRequest(field string, r RequestStep) error {
	if r.Root == "" {
		return fmt.Errorf("%s.root is required", field)
	}
	for i, c := range r.Columns {
		if c.Token == "" {
			return fmt.Errorf("%s.columns[%d]: token is required", field, i)
		}
	}
	for i, f := range r.Filters {
		if err := validateFilter(fmt.Sprintf("%s.filters[%d]", field, i), f); err != nil {
			return err
		}
	}
	for i, o := range r.Orders {
		if o.Token == "" {
			return fmt.Errorf("%s.orders[%d]: token is required", field, i)
		}
	}
	if p := r.Pagination; p != nil {
		if p.Firsts != 0 && (p.Size != 0 || p.Page != 0) {
			return fmt.Errorf("%s.pagination: firsts excludes size and page", field)
		}
		if p.Firsts == 0 && p.Size == 0 {
			return fmt.Errorf("%s.pagination: firsts or size is required", field)
		}
	}
	return nil
}

func validateFilter(field string, f FilterStep) error {
	if f.Group != nil {
		if f.Token != "" || f.Op != "" || f.Value != nil {
			return fmt.Errorf("%s: group excludes token, op and value", field)
		}
		for i, member := range f.Group.Filters {
			if err := validateFilter(fmt.Sprintf("%s.group.filters[%d]", field, i), member); err != nil {
				return err
			}
		}
		return nil
	}
	if f.Token == "" {
		return fmt.Errorf("%s: token is required", field)
	}
	if f.Op == "" {
		return fmt.Errorf("%s: op is required", field)
	}
	return nil
}

// QueryRequest converts the request step into a query.Request.
func (r RequestStep) QueryRequest() query.Request {
	req := query.Request{
		Root:           r.Root,
		DisableFilters: r.DisableFilters,
	}
	for _, c := range r.Columns {
		req.Columns = append(req.Columns, query.Column{Token: c.Token, DisplayName: c.Name})
	}
	req.Filters = filters(r.Filters)
	for _, o := range r.Orders {
		req.Orders = append(req.Orders, query.Order{Token: o.Token, Descending: o.Descending})
	}
	if p := r.Pagination; p != nil {
		if p.Firsts != 0 {
			req.Pagination = query.Firsts(p.Firsts)
		} else {
			req.Pagination = query.Paginate(p.Size, p.Page)
		}
	}
	return req
}

func filters(steps []FilterStep) []query.Filter {
	var out []query.Filter
	for _, f := range steps {
		if f.Group != nil {
			out = append(out, query.Group{
				Or:      f.Group.Or,
				Prefix:  f.Group.Prefix,
				Filters: filters(f.Group.Filters),
			})
			continue
		}
		out = append(out, query.Condition{
			Token:     f.Token,
			Operation: query.Operation(f.Op),
			Value:     f.Value,
		})
	}
	return out
}
