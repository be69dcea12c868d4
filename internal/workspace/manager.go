package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dockforge/dockforge/pkg/types"
	"github.com/google/uuid"
)

// Canonical subfolders every workspace is created with. The layout is
// part of the bundle contract and must not change.
const (
	DirReceptors = "Receptors"
	DirLigands   = "Ligands"
	DirScripts   = "LSF"
)

const stampLayout = "01-02-2006-15-04-05"

var tokenRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Manager allocates and resolves per-job workspace directories under a
// single configured root. It never deletes a workspace; cleanup is an
// external policy.
type Manager struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a workspace manager rooted at dir.
func NewManager(dir string) (*Manager, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create workspace root %s: %w", abs, err)
	}
	return &Manager{
		root:  abs,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the configured workspace root.
func (m *Manager) Root() string {
	return m.root
}

// Create allocates a uniquely-named workspace directory with the
// canonical subfolders and returns its handle. The id embeds the
// creation timestamp and a caller token; a short random suffix keeps
// ids collision-free under same-second churn.
func (m *Manager) Create(owner string) (*types.Workspace, error) {
	now := time.Now()
	id := fmt.Sprintf("%s-%s-%s", now.Format(stampLayout), ownerToken(owner), uuid.New().String()[:8])

	root := filepath.Join(m.root, id)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", id, err)
	}
	for _, sub := range []string{DirReceptors, DirLigands, DirScripts} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return nil, fmt.Errorf("create workspace %s subfolder %s: %w", id, sub, err)
		}
	}

	return &types.Workspace{
		ID:        id,
		Owner:     owner,
		Root:      root,
		CreatedAt: now,
	}, nil
}

// Resolve returns the handle for an existing workspace id. Ids that do
// not name a directory directly under the root, including anything
// trying to traverse out of it, fail with ErrWorkspaceNotFound.
func (m *Manager) Resolve(id string) (*types.Workspace, error) {
	if id == "" || id != filepath.Base(filepath.Clean(id)) || strings.HasPrefix(id, ".") {
		return nil, fmt.Errorf("workspace %q: %w", id, types.ErrWorkspaceNotFound)
	}

	root := filepath.Join(m.root, id)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("workspace %q: %w", id, types.ErrWorkspaceNotFound)
	}

	return &types.Workspace{
		ID:        id,
		Root:      root,
		CreatedAt: info.ModTime(),
	}, nil
}

// List returns the ids of all workspaces under the root, oldest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Lock returns the mutex serializing ledger mutation and bundle builds
// for one workspace. Distinct workspaces never share a lock.
func (m *Manager) Lock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// Path joins a workspace-relative path onto the workspace root,
// rejecting anything that resolves outside it.
func Path(ws *types.Workspace, rel string) (string, error) {
	full := filepath.Join(ws.Root, filepath.Clean("/"+rel))
	if full != ws.Root && !strings.HasPrefix(full, ws.Root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q: %w", rel, types.ErrWorkspaceNotFound)
	}
	return full, nil
}

func ownerToken(owner string) string {
	if i := strings.IndexByte(owner, '@'); i > 0 {
		owner = owner[:i]
	}
	owner = tokenRe.ReplaceAllString(owner, "_")
	if owner == "" {
		return "anon"
	}
	return owner
}
