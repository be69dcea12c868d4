package types

import "time"

// FileKind classifies a staged upload.
type FileKind string

const (
	KindReceptor    FileKind = "receptor"
	KindLigand      FileKind = "ligand"
	KindLigandList  FileKind = "ligand_list"
	KindUnsupported FileKind = "unsupported"
)

// Workspace is an isolated per-job directory scope for one prep session.
type Workspace struct {
	ID        string    `json:"workspaceID"`
	Owner     string    `json:"owner,omitempty"`
	Root      string    `json:"root"`
	CreatedAt time.Time `json:"createdAt"`
}

// StagedFile records one ingested file. Records are immutable; a
// re-upload creates a new record rather than mutating an old one.
type StagedFile struct {
	ID           int64     `json:"id,omitempty"`
	WorkspaceID  string    `json:"workspaceID"`
	OriginalName string    `json:"originalName"`
	Kind         FileKind  `json:"kind"`
	StoredPath   string    `json:"storedPath"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ResidueCandidate is a non-standard residue found in a structure,
// derived per inspect call and never persisted.
type ResidueCandidate struct {
	Name  string `json:"name"`
	Chain string `json:"chain"`
	Count int    `json:"count"`
}

// WorkspaceListResponse is the response for listing workspaces.
type WorkspaceListResponse struct {
	Workspaces []Workspace `json:"workspaces"`
}
