package api

// CreateProjectRequest is the HTTP request body for POST /projects.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// RegenerateRequest is the HTTP request body for
// POST /projects/{id}/regenerate.
type RegenerateRequest struct {
	Scope string `json:"scope"`
}

// ExportRequest is the HTTP request body for POST /projects/{id}/export.
// Types is optional; an empty slice exports every artifact type the
// project has at least one version of.
type ExportRequest struct {
	Types []string `json:"types,omitempty"`
}
