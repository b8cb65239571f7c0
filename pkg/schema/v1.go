package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/agentmem/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

const maxGoalLength = 500

// v1 implements schema version "1.0"
type v1 struct{}

func (v *v1) Version() string {
	return model.SchemaVersion
}

func (v *v1) Validate(candidate any) (*model.Memory, error) {
	root, ok := candidate.(map[string]any)
	if !ok {
		return nil, newValidationError([]Issue{{Message: "expected object, got " + typeName(candidate)}})
	}

	c := &checker{}

	if meta, ok := c.object(root, "", "meta", false); ok {
		c.uuid(meta, "meta", "id")
		c.timestamp(meta, "meta", "createdAt")
		c.str(meta, "meta", "project", 1, 0)
		c.literal(meta, "meta", "agent", model.AgentClaude)
		c.literal(meta, "meta", "version", model.SchemaVersion)
	}

	if ctx, ok := c.object(root, "", "context", false); ok {
		c.str(ctx, "context", "goal", 1, maxGoalLength)
		c.stringList(ctx, "context", "techStack", false)
		c.stringList(ctx, "context", "constraints", false)
	}

	if state, ok := c.object(root, "", "state", false); ok {
		c.stringList(state, "state", "implemented", false)
		c.stringList(state, "state", "pending", false)
		c.stringList(state, "state", "filesTouched", true)
	}

	if items, ok := c.array(root, "", "decisions", false); ok {
		for i, item := range items {
			path := fmt.Sprintf("decisions[%d]", i)
			d, ok := item.(map[string]any)
			if !ok {
				c.fail(path, "expected object, got "+typeName(item))
				continue
			}
			c.str(d, path, "decision", 1, 0)
			c.str(d, path, "rationale", 1, 0)
		}
	}

	c.stringList(root, "", "nextActions", false)

	if raw, ok := c.object(root, "", "raw", true); ok {
		c.literal(raw, "raw", "source", model.RawSourceConversation)
		if v, exists := raw["excerpt"]; exists {
			if _, ok := v.(string); !ok {
				c.fail("raw.excerpt", "expected string, got "+typeName(v))
			}
		}
	}

	if len(c.issues) > 0 {
		return nil, newValidationError(c.issues)
	}

	return decode(root)
}

// decode converts an already validated JSON value into a Memory. Unknown
// keys are dropped.
func decode(root map[string]any) (*model.Memory, error) {
	data, err := json.Marshal(root)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode validated memory")
	}

	var m model.Memory
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, goerr.Wrap(err, "failed to decode validated memory")
	}

	// filesTouched is omitted from JSON when empty, so nil is its only empty form
	if len(m.State.FilesTouched) == 0 {
		m.State.FilesTouched = nil
	}

	return &m, nil
}

func (v *v1) JSONSchema() *jsonschema.Schema {
	nonEmpty := func() *jsonschema.Schema {
		return &jsonschema.Schema{Type: "string", MinLength: intPtr(1)}
	}
	nonEmptyList := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Type: "array", Description: desc, Items: nonEmpty()}
	}
	literal := func(v string) *jsonschema.Schema {
		var c any = v
		return &jsonschema.Schema{Type: "string", Const: &c}
	}

	return &jsonschema.Schema{
		Schema:      "https://json-schema.org/draft/2020-12/schema",
		Title:       "Agent memory v" + model.SchemaVersion,
		Description: "Point-in-time snapshot of an AI coding agent's working context",
		Type:        "object",
		Required:    []string{"meta", "context", "state", "decisions", "nextActions"},
		Properties: map[string]*jsonschema.Schema{
			"meta": {
				Type:        "object",
				Description: "Generated on save. Callers must not supply it.",
				Required:    []string{"id", "createdAt", "project", "agent", "version"},
				Properties: map[string]*jsonschema.Schema{
					"id":        {Type: "string", Format: "uuid"},
					"createdAt": {Type: "string", Format: "date-time"},
					"project":   nonEmpty(),
					"agent":     literal(model.AgentClaude),
					"version":   literal(model.SchemaVersion),
				},
			},
			"context": {
				Type:     "object",
				Required: []string{"goal", "techStack", "constraints"},
				Properties: map[string]*jsonschema.Schema{
					"goal": {
						Type:        "string",
						Description: "What the session is trying to achieve",
						MinLength:   intPtr(1),
						MaxLength:   intPtr(maxGoalLength),
					},
					"techStack":   nonEmptyList("Languages, frameworks and tools in use"),
					"constraints": nonEmptyList("Requirements the work must respect"),
				},
			},
			"state": {
				Type:     "object",
				Required: []string{"implemented", "pending"},
				Properties: map[string]*jsonschema.Schema{
					"implemented":  nonEmptyList("Work already done"),
					"pending":      nonEmptyList("Work started but not finished"),
					"filesTouched": nonEmptyList("Files created or modified"),
				},
			},
			"decisions": {
				Type:        "array",
				Description: "Decisions in chronological order",
				Items: &jsonschema.Schema{
					Type:     "object",
					Required: []string{"decision", "rationale"},
					Properties: map[string]*jsonschema.Schema{
						"decision":  nonEmpty(),
						"rationale": nonEmpty(),
					},
				},
			},
			"nextActions": nonEmptyList("Ordered list of what to do next"),
			"raw": {
				Type:     "object",
				Required: []string{"source"},
				Properties: map[string]*jsonschema.Schema{
					"source":  literal(model.RawSourceConversation),
					"excerpt": {Type: "string"},
				},
			},
		},
	}
}

func intPtr(n int) *int {
	return &n
}

type checker struct {
	issues []Issue
}

func (c *checker) fail(path, msg string) {
	c.issues = append(c.issues, Issue{Path: path, Message: msg})
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// lookup returns the value of key. A missing required key is recorded as an
// issue; a missing optional key is not.
func (c *checker) lookup(parent map[string]any, prefix, key string, optional bool) (any, bool) {
	v, exists := parent[key]
	if !exists {
		if !optional {
			c.fail(join(prefix, key), "required")
		}
		return nil, false
	}
	return v, true
}

func (c *checker) object(parent map[string]any, prefix, key string, optional bool) (map[string]any, bool) {
	v, ok := c.lookup(parent, prefix, key, optional)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	if !ok {
		c.fail(join(prefix, key), "expected object, got "+typeName(v))
		return nil, false
	}
	return obj, true
}

func (c *checker) array(parent map[string]any, prefix, key string, optional bool) ([]any, bool) {
	v, ok := c.lookup(parent, prefix, key, optional)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		c.fail(join(prefix, key), "expected array, got "+typeName(v))
		return nil, false
	}
	return arr, true
}

// str checks a required string field. maxLen of 0 means unbounded. Lengths
// are counted in characters, not bytes.
func (c *checker) str(parent map[string]any, prefix, key string, minLen, maxLen int) (string, bool) {
	path := join(prefix, key)
	v, ok := c.lookup(parent, prefix, key, false)
	if !ok {
		return "", false
	}
	return c.checkString(path, v, minLen, maxLen)
}

func (c *checker) checkString(path string, v any, minLen, maxLen int) (string, bool) {
	s, ok := v.(string)
	if !ok {
		c.fail(path, "expected string, got "+typeName(v))
		return "", false
	}
	n := utf8.RuneCountInString(s)
	if n < minLen {
		if minLen == 1 {
			c.fail(path, "must not be empty")
		} else {
			c.fail(path, fmt.Sprintf("must be at least %d characters", minLen))
		}
		return "", false
	}
	if maxLen > 0 && n > maxLen {
		c.fail(path, fmt.Sprintf("must be at most %d characters", maxLen))
		return "", false
	}
	return s, true
}

func (c *checker) stringList(parent map[string]any, prefix, key string, optional bool) {
	arr, ok := c.array(parent, prefix, key, optional)
	if !ok {
		return
	}
	path := join(prefix, key)
	for i, item := range arr {
		c.checkString(fmt.Sprintf("%s[%d]", path, i), item, 1, 0)
	}
}

func (c *checker) literal(parent map[string]any, prefix, key, want string) {
	s, ok := c.str(parent, prefix, key, 0, 0)
	if ok && s != want {
		c.fail(join(prefix, key), "expected "+quote(want)+", got "+quote(s))
	}
}

func (c *checker) uuid(parent map[string]any, prefix, key string) {
	s, ok := c.str(parent, prefix, key, 1, 0)
	if ok && (s == model.LatestMemoryID.String() || !model.IsValidID(s)) {
		c.fail(join(prefix, key), "must be a canonical UUID")
	}
}

// timestamp requires an RFC 3339 instant in UTC ("Z" suffix), the form
// produced by the normalizer.
func (c *checker) timestamp(parent map[string]any, prefix, key string) {
	s, ok := c.str(parent, prefix, key, 1, 0)
	if !ok {
		return
	}
	if !strings.HasSuffix(s, "Z") {
		c.fail(join(prefix, key), "must be an ISO-8601 UTC timestamp")
		return
	}
	if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
		c.fail(join(prefix, key), "must be an ISO-8601 UTC timestamp")
	}
}
