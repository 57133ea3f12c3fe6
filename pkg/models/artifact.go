package models

import (
	"encoding/json"
	"time"
)

// Artifact is one immutable, versioned output of an agent.
type Artifact struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"project_id"`
	RunID          string          `json:"run_id"`
	Type           ArtifactType    `json:"type"`
	Version        int             `json:"version"`
	Payload        json.RawMessage `json:"payload"`
	SourceSpecID   string          `json:"source_spec_id"`
	ParentArtifactID *string       `json:"parent_artifact_id,omitempty"`
	Model          string          `json:"model,omitempty"`
	PromptVersion  string          `json:"prompt_version,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Key identifies the (project, type) series an Artifact belongs to.
type Key struct {
	ProjectID string
	Type      ArtifactType
}
