package types

import "time"

// CenterEntry is one docking-box center keyed by receptor tag. The
// ledger keeps at most one current entry per tag; later saves for the
// same tag override the current value.
type CenterEntry struct {
	Tag       string    `json:"tag"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Size      float64   `json:"size"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// JobParameters is the cluster submission configuration supplied
// wholesale at build time. Validated before any script is rendered.
type JobParameters struct {
	Queue          string `json:"queue" validate:"required"`
	Project        string `json:"project" validate:"required"`
	Walltime       string `json:"walltime" validate:"required"`
	Cores          int    `json:"cores" validate:"required,min=1"`
	MemPerCoreMB   int    `json:"memPerCoreMB" validate:"required,min=1"`
	NumConformers  int    `json:"numConformers" validate:"min=0"`
	NumPoses       int    `json:"numPoses" validate:"required,min=1"`
	ExecutablePath string `json:"executablePath,omitempty"`
	EnvBlock       string `json:"envBlock,omitempty"`
}

// BuildArtifact is the result of a successful bundle build. Created
// once per build; never mutated.
type BuildArtifact struct {
	ArchivePath string    `json:"archivePath"`
	Manifest    []string  `json:"manifest"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BuildRequest is the request body for building a job bundle.
type BuildRequest struct {
	Parameters JobParameters `json:"parameters"`
}

// CenterRequest is the request body for saving a docking-box center.
type CenterRequest struct {
	Tag  string  `json:"tag"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Size float64 `json:"size"`
}

// CleanRequest is the request body for receptor cleanup.
type CleanRequest struct {
	File   string   `json:"file,omitempty"` // workspace-relative; latest receptor when empty
	Remove []string `json:"remove"`
}
