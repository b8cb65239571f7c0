package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersion is the version tag written into every new memory
	SchemaVersion = "1.0"

	// AgentClaude is the fixed tag identifying the producing agent type
	AgentClaude = "claude"

	// UnknownProject is used when the caller does not name a project
	UnknownProject = "unknown"

	// RawSourceConversation is the only accepted provenance marker
	RawSourceConversation = "conversation"
)

type MemoryID string

// LatestMemoryID is a sentinel resolved by the storage layer to the most recently written memory
const LatestMemoryID MemoryID = "latest"

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

func (id MemoryID) String() string {
	return string(id)
}

// IsLatest reports whether id is the "latest" sentinel
func (id MemoryID) IsLatest() bool {
	return id == LatestMemoryID
}

// IsValidID returns true for the "latest" sentinel or a canonical UUID string
func IsValidID(id string) bool {
	if MemoryID(id) == LatestMemoryID {
		return true
	}
	return isCanonicalUUID(id)
}

// SanitizeID returns id unchanged if it is safe to use as a file name stem.
// Every identifier that becomes part of a filesystem path must pass through here.
func SanitizeID(id string) (MemoryID, error) {
	if MemoryID(id) == LatestMemoryID {
		return LatestMemoryID, nil
	}
	if !isCanonicalUUID(id) {
		return "", NewError(CodeInvalidID, "invalid memory ID: "+quoteID(id), nil)
	}
	return MemoryID(id), nil
}

// isCanonicalUUID accepts only the 36 character hyphenated form. uuid.Parse
// also accepts urn: and braced forms, which must not reach a file name.
func isCanonicalUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	if _, err := uuid.Parse(s); err != nil {
		return false
	}
	return true
}

func quoteID(id string) string {
	const max = 64
	if len(id) > max {
		id = id[:max] + "..."
	}
	return "\"" + id + "\""
}

// Memory is a point-in-time snapshot of an agent's working context
type Memory struct {
	Meta        Meta       `json:"meta"`
	Context     Context    `json:"context"`
	State       State      `json:"state"`
	Decisions   []Decision `json:"decisions"`
	NextActions []string   `json:"nextActions"`
	Raw         *Raw       `json:"raw,omitempty"`
}

// Meta is generated at normalization time and never supplied by callers
type Meta struct {
	ID        MemoryID  `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Project   string    `json:"project"`
	Agent     string    `json:"agent"`
	Version   string    `json:"version"`
}

type Context struct {
	Goal        string   `json:"goal"`
	TechStack   []string `json:"techStack"`
	Constraints []string `json:"constraints"`
}

type State struct {
	Implemented  []string `json:"implemented"`
	Pending      []string `json:"pending"`
	FilesTouched []string `json:"filesTouched,omitempty"`
}

// Decision is kept in chronological order within Memory.Decisions
type Decision struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale"`
}

// Raw marks where the memory content came from
type Raw struct {
	Source  string `json:"source"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Summary is a best-effort inventory entry returned by listing
type Summary struct {
	ID        MemoryID  `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Project   string    `json:"project"`
}
