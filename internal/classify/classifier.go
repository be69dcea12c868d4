package classify

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/dockforge/dockforge/internal/store"
	"github.com/dockforge/dockforge/pkg/types"
)

const sniffLen = 4096

// Classifier inspects uploads, decides their ingestion kind, and
// materializes them under a workspace. Staged files are recorded in
// the store when one is attached.
type Classifier struct {
	store *store.Store
}

// New creates a classifier. The store may be nil (records are then
// kept only on disk).
func New(st *store.Store) *Classifier {
	return &Classifier{store: st}
}

// DetectKind routes a file into the closed kind set by extension and a
// content sniff of its head bytes.
func DetectKind(name string, head []byte) types.FileKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdbqt":
		return types.KindReceptor
	case ".pdb", ".ent":
		if hasAtomRecords(head) {
			return types.KindReceptor
		}
		return types.KindUnsupported
	case ".sdf", ".mol", ".mol2", ".smi", ".smiles":
		return types.KindLigand
	case ".csv", ".txt":
		if hasSmilesColumn(head) {
			return types.KindLigandList
		}
		return types.KindUnsupported
	default:
		if hasAtomRecords(head) {
			return types.KindReceptor
		}
		return types.KindUnsupported
	}
}

// IngestFile stages a single upload into the role subfolder of the
// workspace. Unrecognized content fails with ErrUnsupportedFormat and
// nothing is written.
func (c *Classifier) IngestFile(ws *types.Workspace, roleDir, name string, r io.Reader) (*types.StagedFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", name, err)
	}

	kind := DetectKind(name, head(data))
	if kind == types.KindUnsupported {
		return nil, fmt.Errorf("%s: %w", name, types.ErrUnsupportedFormat)
	}

	dest := filepath.Join(ws.Root, roleDir, filepath.Base(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}

	return c.record(ws, name, kind, dest)
}

// IngestArchive expands a zip upload into the role subfolder,
// preserving the archive's relative structure, and classifies each
// member independently. Any entry resolving outside the target
// subfolder rejects the whole archive before anything is extracted.
// An empty archive yields zero staged files and no error.
func (c *Classifier) IngestArchive(ws *types.Workspace, roleDir string, data []byte) ([]types.StagedFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	target := filepath.Join(ws.Root, roleDir)

	// Path-traversal guard first, so a hostile archive leaves nothing behind.
	for _, f := range zr.File {
		if !entryWithin(target, f.Name) {
			return nil, &types.InvalidArchiveEntryError{Entry: f.Name}
		}
	}

	var staged []types.StagedFile
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		dest := filepath.Join(target, filepath.FromSlash(f.Name))
		if err := extractMember(f, dest); err != nil {
			return staged, fmt.Errorf("extract %s: %w", f.Name, err)
		}

		data, err := os.ReadFile(dest)
		if err != nil {
			return staged, fmt.Errorf("reread %s: %w", f.Name, err)
		}

		rec, err := c.record(ws, f.Name, DetectKind(f.Name, head(data)), dest)
		if err != nil {
			return staged, err
		}
		staged = append(staged, *rec)
	}
	return staged, nil
}

func (c *Classifier) record(ws *types.Workspace, name string, kind types.FileKind, dest string) (*types.StagedFile, error) {
	rec := &types.StagedFile{
		WorkspaceID:  ws.ID,
		OriginalName: name,
		Kind:         kind,
		StoredPath:   dest,
		CreatedAt:    time.Now(),
	}
	if c.store != nil {
		if err := c.store.AddStagedFile(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func extractMember(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// entryWithin reports whether an archive member name stays inside dir
// once resolved.
func entryWithin(dir, name string) bool {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return false
	}
	full := filepath.Join(dir, filepath.FromSlash(name))
	return full == dir || strings.HasPrefix(full, dir+string(os.PathSeparator))
}

func head(data []byte) []byte {
	if len(data) > sniffLen {
		return data[:sniffLen]
	}
	return data
}

func hasAtomRecords(head []byte) bool {
	for _, line := range strings.Split(string(head), "\n") {
		if strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM") {
			return true
		}
	}
	return false
}

// hasSmilesColumn reports whether the first line looks like a CSV
// header with a SMILES column.
func hasSmilesColumn(head []byte) bool {
	line := string(head)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	for _, col := range strings.Split(line, ",") {
		if strings.EqualFold(strings.TrimSpace(col), "smiles") {
			return true
		}
	}
	return false
}
