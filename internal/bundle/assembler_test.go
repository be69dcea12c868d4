package bundle

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/dockforge/dockforge/internal/centers"
	"github.com/dockforge/dockforge/internal/workspace"
	"github.com/dockforge/dockforge/pkg/types"
)

const receptorPDB = `HEADER    TEST
ATOM      1  N   ALA A   1      11.104   6.134  -6.504  1.00  0.00           N
END
`

func validParams() types.JobParameters {
	return types.JobParameters{
		Queue:         "normal",
		Project:       "docking",
		Walltime:      "96:00",
		Cores:         16,
		MemPerCoreMB:  2000,
		NumConformers: 64,
		NumPoses:      9,
	}
}

func setupWorkspace(t *testing.T) (*workspace.Manager, *types.Workspace) {
	t.Helper()
	m, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager() error: %v", err)
	}
	ws, err := m.Create("jdoe")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return m, ws
}

func stageReceptor(t *testing.T, ws *types.Workspace, name string) {
	t.Helper()
	path := filepath.Join(ws.Root, workspace.DirReceptors, name)
	if err := os.WriteFile(path, []byte(receptorPDB), 0644); err != nil {
		t.Fatal(err)
	}
}

func stageLigand(t *testing.T, ws *types.Workspace, name string) {
	t.Helper()
	path := filepath.Join(ws.Root, workspace.DirLigands, name)
	if err := os.WriteFile(path, []byte("mol\n"), 0644); err != nil {
		t.Fatal(err)
	}
}

func saveCenter(t *testing.T, m *workspace.Manager, ws *types.Workspace, tag string, x, y, z, size float64) {
	t.Helper()
	l := centers.New(ws.Root, m.Lock(ws.ID))
	if err := l.Append(types.CenterEntry{Tag: tag, X: x, Y: y, Z: z, Size: size}); err != nil {
		t.Fatalf("Append(%s) error: %v", tag, err)
	}
}

func TestBuild_FullCoverage(t *testing.T) {
	m, ws := setupWorkspace(t)
	stageReceptor(t, ws, "recA.pdb")
	stageReceptor(t, ws, "recB.pdb")
	stageLigand(t, ws, "lig1.sdf")
	saveCenter(t, m, ws, "recA", 1, 2, 3, 20)
	saveCenter(t, m, ws, "recB", 4, 5, 6, 22)

	artifact, err := New(m, nil).Build(ws, validParams())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if _, err := os.Stat(artifact.ArchivePath); err != nil {
		t.Fatalf("expected archive on disk: %v", err)
	}
	if !strings.Contains(filepath.Base(artifact.ArchivePath), ws.ID) {
		t.Errorf("archive name should embed workspace id, got %s", artifact.ArchivePath)
	}

	want := []string{
		"job/Receptors/recA.pdb",
		"job/Receptors/recB.pdb",
		"job/Ligands/lig1.sdf",
		"job/" + centers.Filename,
	}
	for _, entry := range want {
		if !contains(artifact.Manifest, entry) {
			t.Errorf("manifest missing %s; got %v", entry, artifact.Manifest)
		}
	}
	scripts := 0
	for _, entry := range artifact.Manifest {
		if strings.HasPrefix(entry, "job/"+workspace.DirScripts+"/") {
			scripts++
		}
	}
	if scripts != 3 { // confgen + docking + composite submit
		t.Errorf("expected 3 scripts in manifest, got %d: %v", scripts, artifact.Manifest)
	}

	// Archive entries match the manifest.
	zr, err := zip.OpenReader(artifact.ArchivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != len(artifact.Manifest) {
		t.Errorf("expected %d archive entries, got %d", len(artifact.Manifest), len(zr.File))
	}
}

func TestBuild_MissingCenters(t *testing.T) {
	m, ws := setupWorkspace(t)
	stageReceptor(t, ws, "recA.pdb")
	stageReceptor(t, ws, "recB.pdb")
	stageReceptor(t, ws, "recC.pdb")
	saveCenter(t, m, ws, "recA", 1, 2, 3, 20)

	_, err := New(m, nil).Build(ws, validParams())
	var missing *types.MissingCenterError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingCenterError, got %v", err)
	}
	// Every uncovered tag is reported, not just the first.
	if len(missing.Tags) != 2 || missing.Tags[0] != "recB" || missing.Tags[1] != "recC" {
		t.Errorf("expected tags [recB recC], got %v", missing.Tags)
	}

	// No partial artifact and no job tree.
	entries, _ := os.ReadDir(ws.Root)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".zip") || e.Name() == jobDirName {
			t.Errorf("failed build left artifact %s", e.Name())
		}
	}
}

func TestBuild_PrefersCleanedReceptor(t *testing.T) {
	m, ws := setupWorkspace(t)
	stageReceptor(t, ws, "recA.pdb")
	stageReceptor(t, ws, "recA.cleaned.pdb")
	saveCenter(t, m, ws, "recA", 1, 2, 3, 20)

	artifact, err := New(m, nil).Build(ws, validParams())
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if !contains(artifact.Manifest, "job/Receptors/recA.cleaned.pdb") {
		t.Errorf("expected cleaned receptor in bundle, got %v", artifact.Manifest)
	}
	if contains(artifact.Manifest, "job/Receptors/recA.pdb") {
		t.Error("raw receptor should be superseded by its cleaned copy")
	}

	// The finalized centers file is annotated with the bundled filename.
	data, err := os.ReadFile(filepath.Join(ws.Root, jobDirName, centers.Filename))
	if err != nil {
		t.Fatalf("read finalized centers: %v", err)
	}
	if !strings.Contains(string(data), "recA.cleaned.pdb,1,2,3,20") {
		t.Errorf("expected renamed center row, got:\n%s", data)
	}
}

func TestBuild_MissingParameter(t *testing.T) {
	m, ws := setupWorkspace(t)
	stageReceptor(t, ws, "recA.pdb")
	saveCenter(t, m, ws, "recA", 1, 2, 3, 20)

	params := validParams()
	params.Queue = ""

	_, err := New(m, nil).Build(ws, params)
	var missing *types.MissingParameterError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingParameterError, got %v", err)
	}
	if missing.Name != "queue" {
		t.Errorf("expected queue reported, got %s", missing.Name)
	}
}

func TestBuild_NoConformerStage(t *testing.T) {
	m, ws := setupWorkspace(t)
	stageReceptor(t, ws, "recA.pdb")
	saveCenter(t, m, ws, "recA", 1, 2, 3, 20)

	params := validParams()
	params.NumConformers = 0

	artifact, err := New(m, nil).Build(ws, params)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	for _, entry := range artifact.Manifest {
		if strings.Contains(entry, "confgen") || strings.HasSuffix(entry, "submit_all.sh") {
			t.Errorf("unexpected conformer-stage script %s", entry)
		}
	}
}

func TestBuild_LedgerUntouchedByBuild(t *testing.T) {
	m, ws := setupWorkspace(t)
	stageReceptor(t, ws, "recA.cleaned.pdb")
	saveCenter(t, m, ws, "recA", 1, 2, 3, 20)

	if _, err := New(m, nil).Build(ws, validParams()); err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	snap, err := centers.New(ws.Root, m.Lock(ws.ID)).Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if len(snap) != 1 || snap[0].Tag != "recA" {
		t.Errorf("build must not rewrite live ledger tags, got %v", snap)
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
