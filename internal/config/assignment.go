package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/segmentio/encoding/json"
	"gopkg.in/yaml.v3"

	"github.com/UCL-RITS/Submitty/pkg/types"
)

// ErrInvalidAssignment is returned for assignment files that fail to parse or validate.
var ErrInvalidAssignment = errors.New("invalid assignment")

//go:embed assignment.schema.json
var assignmentSchemaJSON []byte

const assignmentSchemaURL = "assignment.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func assignmentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(assignmentSchemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("parse assignment schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(assignmentSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add assignment schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(assignmentSchemaURL)
	})
	return schema, schemaErr
}

// LoadAssignment reads an assignment file. A relative expected_dir is
// resolved against the directory holding the file.
func LoadAssignment(path string) (*types.Assignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assignment: %w", err)
	}
	a, err := ParseAssignment(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if a.Name == "" {
		a.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if a.ExpectedDir != "" && !filepath.IsAbs(a.ExpectedDir) {
		a.ExpectedDir = filepath.Join(filepath.Dir(path), a.ExpectedDir)
	}
	return a, nil
}

// ParseAssignment parses YAML (or JSON) assignment data and validates it
// against the embedded schema. Absent stream policies default to dont_check.
func ParseAssignment(data []byte) (*types.Assignment, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse: %w", ErrInvalidAssignment, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidAssignment)
	}

	// Re-encode through JSON so the schema sees plain JSON values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAssignment, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAssignment, err)
	}

	sch, err := assignmentSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAssignment, err)
	}

	var a types.Assignment
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAssignment, err)
	}

	seen := make(map[string]bool, len(a.TestCases))
	for i := range a.TestCases {
		tc := &a.TestCases[i]
		if seen[tc.Title] {
			return nil, fmt.Errorf("%w: duplicate test case title %q", ErrInvalidAssignment, tc.Title)
		}
		seen[tc.Title] = true

		if tc.CoutCheck == "" {
			tc.CoutCheck = types.PolicyDontCheck
		}
		if tc.CerrCheck == "" {
			tc.CerrCheck = types.PolicyDontCheck
		}
	}
	return &a, nil
}
