package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dockforge/dockforge/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS workspaces (
    id TEXT PRIMARY KEY,
    owner TEXT,
    root TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS staged_files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    workspace_id TEXT NOT NULL,
    original_name TEXT NOT NULL,
    kind TEXT NOT NULL,
    stored_path TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_staged_files_ws ON staged_files(workspace_id);

CREATE TABLE IF NOT EXISTS builds (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    workspace_id TEXT NOT NULL,
    archive TEXT NOT NULL,
    manifest TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// Store is the SQLite-backed registry of workspaces, staged files and
// completed builds.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the record store under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dataDir, err)
	}

	dbPath := filepath.Join(dataDir, "dockforge.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init record store schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddWorkspace records a newly created workspace.
func (s *Store) AddWorkspace(ws *types.Workspace) error {
	_, err := s.db.Exec(
		`INSERT INTO workspaces (id, owner, root, created_at) VALUES (?, ?, ?, ?)`,
		ws.ID, ws.Owner, ws.Root, ws.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record workspace %s: %w", ws.ID, err)
	}
	return nil
}

// AddStagedFile records one ingested file. Records are never updated
// in place; a re-upload inserts a new row.
func (s *Store) AddStagedFile(f *types.StagedFile) error {
	res, err := s.db.Exec(
		`INSERT INTO staged_files (workspace_id, original_name, kind, stored_path, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.WorkspaceID, f.OriginalName, string(f.Kind), f.StoredPath, f.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record staged file %s: %w", f.OriginalName, err)
	}
	f.ID, _ = res.LastInsertId()
	return nil
}

// StagedFiles returns the staged files of a workspace, optionally
// filtered by kind, in insertion order.
func (s *Store) StagedFiles(workspaceID string, kind types.FileKind) ([]types.StagedFile, error) {
	query := `SELECT id, workspace_id, original_name, kind, stored_path, created_at FROM staged_files WHERE workspace_id = ?`
	args := []any{workspaceID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list staged files for %s: %w", workspaceID, err)
	}
	defer rows.Close()

	var files []types.StagedFile
	for rows.Next() {
		var f types.StagedFile
		var created string
		if err := rows.Scan(&f.ID, &f.WorkspaceID, &f.OriginalName, &f.Kind, &f.StoredPath, &created); err != nil {
			return nil, fmt.Errorf("scan staged file: %w", err)
		}
		f.CreatedAt, _ = time.Parse(time.RFC3339, created)
		files = append(files, f)
	}
	return files, rows.Err()
}

// AddBuild records a completed bundle build.
func (s *Store) AddBuild(workspaceID string, artifact *types.BuildArtifact) error {
	manifest, err := json.Marshal(artifact.Manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO builds (workspace_id, archive, manifest, created_at) VALUES (?, ?, ?, ?)`,
		workspaceID, artifact.ArchivePath, string(manifest), artifact.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record build for %s: %w", workspaceID, err)
	}
	return nil
}

// LatestBuild returns the most recent build artifact for a workspace,
// or nil when the workspace has never been built.
func (s *Store) LatestBuild(workspaceID string) (*types.BuildArtifact, error) {
	row := s.db.QueryRow(
		`SELECT archive, manifest, created_at FROM builds WHERE workspace_id = ? ORDER BY id DESC LIMIT 1`,
		workspaceID,
	)

	var a types.BuildArtifact
	var manifest, created string
	if err := row.Scan(&a.ArchivePath, &manifest, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load latest build for %s: %w", workspaceID, err)
	}
	if err := json.Unmarshal([]byte(manifest), &a.Manifest); err != nil {
		return nil, fmt.Errorf("decode manifest for %s: %w", workspaceID, err)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &a, nil
}
