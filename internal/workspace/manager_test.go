package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dockforge/dockforge/pkg/types"
)

func TestCreate_CanonicalSubfolders(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	ws, err := m.Create("jdoe@example.edu")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	for _, sub := range []string{DirReceptors, DirLigands, DirScripts} {
		info, err := os.Stat(filepath.Join(ws.Root, sub))
		if err != nil || !info.IsDir() {
			t.Errorf("expected subfolder %s in workspace, stat err: %v", sub, err)
		}
	}
}

func TestCreate_UniqueIDs(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		ws, err := m.Create("jdoe")
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if seen[ws.ID] {
			t.Fatalf("duplicate workspace id %s", ws.ID)
		}
		seen[ws.ID] = true
	}
}

func TestResolve(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	ws, err := m.Create("jdoe")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := m.Resolve(ws.ID)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got.Root != ws.Root {
		t.Errorf("expected root %s, got %s", ws.Root, got.Root)
	}
}

func TestResolve_NotFound(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	for _, id := range []string{"nope", "", "../outside", "a/b", ".."} {
		_, err := m.Resolve(id)
		if !errors.Is(err, types.ErrWorkspaceNotFound) {
			t.Errorf("Resolve(%q): expected ErrWorkspaceNotFound, got %v", id, err)
		}
	}
}

func TestPath_TraversalGuard(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	ws, err := m.Create("jdoe")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	p, err := Path(ws, "Receptors/a.pdb")
	if err != nil {
		t.Fatalf("Path() error: %v", err)
	}
	if p != filepath.Join(ws.Root, "Receptors", "a.pdb") {
		t.Errorf("unexpected path %s", p)
	}

	// Clean pins relative paths inside the root, so traversal cannot
	// escape even with leading dot-dots.
	p, err = Path(ws, "../../etc/passwd")
	if err != nil {
		t.Fatalf("Path() error: %v", err)
	}
	if p != filepath.Join(ws.Root, "etc", "passwd") {
		t.Errorf("expected traversal pinned under root, got %s", p)
	}
}

func TestLock_PerWorkspace(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}

	a := m.Lock("ws-a")
	b := m.Lock("ws-b")
	if a == b {
		t.Error("expected distinct locks for distinct workspaces")
	}
	if m.Lock("ws-a") != a {
		t.Error("expected stable lock per workspace id")
	}
}

func TestOwnerToken(t *testing.T) {
	if got := ownerToken("j doe@example.edu"); got != "j_doe" {
		t.Errorf("expected j_doe, got %s", got)
	}
	if got := ownerToken(""); got != "anon" {
		t.Errorf("expected anon, got %s", got)
	}
}
