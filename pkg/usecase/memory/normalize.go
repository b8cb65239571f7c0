package memory

import (
	"time"

	"github.com/m-mizutani/agentmem/pkg/model"
	"github.com/m-mizutani/agentmem/pkg/schema"
)

// ISO-8601 in UTC with millisecond precision
const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	timeNow = time.Now
	newID   = model.NewMemoryID
)

// Top-level input fields carried into the record unchanged. Anything else,
// including "project", is dropped.
var passthroughKeys = []string{"context", "state", "decisions", "nextActions", "raw"}

// Normalize turns untrusted input (typically decoded JSON) into a validated
// memory with freshly generated metadata. Input carrying a "meta" key is
// rejected before any validation.
func Normalize(input any) (*model.Memory, error) {
	obj, _ := input.(map[string]any)

	if _, exists := obj["meta"]; exists {
		return nil, model.NewError(model.CodeInvalidInputMeta,
			`input must not contain "meta" field; it is generated automatically`, nil)
	}

	project := model.UnknownProject
	if p, ok := obj["project"].(string); ok && p != "" {
		project = p
	}

	candidate := map[string]any{
		"meta": map[string]any{
			"id":        newID().String(),
			"createdAt": timeNow().UTC().Format(timestampFormat),
			"project":   project,
			"agent":     model.AgentClaude,
			"version":   model.SchemaVersion,
		},
	}
	for _, key := range passthroughKeys {
		if v, ok := obj[key]; ok {
			candidate[key] = v
		}
	}

	return schema.Validate(candidate)
}
