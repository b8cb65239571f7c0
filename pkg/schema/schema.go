package schema

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/agentmem/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Issue is a single violation found while validating a candidate memory
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationError lists every violation found in a candidate. It is always
// wrapped in a *model.Error with CodeSchemaValidation.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return strings.Join(msgs, "; ")
}

// Validator checks candidates against one schema version
type Validator interface {
	// Version returns the meta.version literal handled by this validator
	Version() string
	// Validate checks a decoded JSON value and converts it into a Memory
	Validate(candidate any) (*model.Memory, error)
	// JSONSchema returns the published JSON Schema document for this version
	JSONSchema() *jsonschema.Schema
}

var validators = map[string]Validator{}

func register(v Validator) {
	validators[v.Version()] = v
}

func init() {
	register(&v1{})
}

// For returns the validator registered for version
func For(version string) (Validator, bool) {
	v, ok := validators[version]
	return v, ok
}

// Versions returns all known schema versions in ascending order
func Versions() []string {
	versions := make([]string, 0, len(validators))
	for v := range validators {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions
}

// Validate dispatches candidate to the validator named by its meta.version
// field. Missing or unknown versions fail closed.
func Validate(candidate any) (*model.Memory, error) {
	version, issue := versionOf(candidate)
	if issue != nil {
		return nil, newValidationError([]Issue{*issue})
	}

	v, ok := For(version)
	if !ok {
		return nil, newValidationError([]Issue{{
			Path:    "meta.version",
			Message: "unsupported schema version " + quote(version),
		}})
	}

	return v.Validate(candidate)
}

// ValidateJSON decodes data and validates the result
func ValidateJSON(data []byte) (*model.Memory, error) {
	var candidate any
	if err := json.Unmarshal(data, &candidate); err != nil {
		return nil, goerr.Wrap(err, "failed to parse memory JSON")
	}
	return Validate(candidate)
}

// JSONSchema returns the JSON Schema document for version
func JSONSchema(version string) (*jsonschema.Schema, error) {
	v, ok := For(version)
	if !ok {
		return nil, goerr.New("unsupported schema version", goerr.V("version", version))
	}
	return v.JSONSchema(), nil
}

func versionOf(candidate any) (string, *Issue) {
	obj, ok := candidate.(map[string]any)
	if !ok {
		return "", &Issue{Message: "expected object, got " + typeName(candidate)}
	}
	meta, ok := obj["meta"].(map[string]any)
	if !ok {
		return "", &Issue{Path: "meta", Message: "required object"}
	}
	version, ok := meta["version"].(string)
	if !ok {
		return "", &Issue{Path: "meta.version", Message: "required string"}
	}
	return version, nil
}

func newValidationError(issues []Issue) error {
	return model.NewError(model.CodeSchemaValidation, "schema validation failed", &ValidationError{Issues: issues})
}

func quote(s string) string {
	return "\"" + s + "\""
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}
