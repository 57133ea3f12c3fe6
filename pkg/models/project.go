package models

import "time"

// Project is the top-level container a spec and its runs belong to.
type Project struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	Status    ProjectStatus `json:"status"`
}

// Spec is one immutable, versioned generation brief for a project.
type Spec struct {
	ID              string       `json:"id"`
	ProjectID       string       `json:"project_id"`
	Version         int          `json:"version"`
	Decade          string       `json:"decade"`
	LocationPreset  string       `json:"location_preset"`
	Tone            string       `json:"tone"`
	Theme           string       `json:"theme"`
	CastSize        int          `json:"cast_size"`
	CastNames       []string     `json:"cast_names,omitempty"`
	PrimaryAxis     PrimaryAxis  `json:"primary_axis"`
	TargetLength    TargetLength `json:"target_length"`
	CreatedAt       time.Time    `json:"created_at"`
}

// CreateSpecRequest is the payload accepted by POST /projects/{id}/specs.
type CreateSpecRequest struct {
	Decade         string       `json:"decade"`
	LocationPreset string       `json:"location_preset"`
	Tone           string       `json:"tone"`
	Theme          string       `json:"theme"`
	CastSize       int          `json:"cast_size"`
	CastNames      []string     `json:"cast_names,omitempty"`
	PrimaryAxis    PrimaryAxis  `json:"primary_axis"`
	TargetLength   TargetLength `json:"target_length"`
}
