// Package bundle assembles the final job archive from workspace
// artifacts: validated parameters, staged receptors and ligands, the
// finalized center snapshot, and rendered submission scripts.
package bundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/zip"

	"github.com/dockforge/dockforge/internal/centers"
	"github.com/dockforge/dockforge/internal/metrics"
	"github.com/dockforge/dockforge/internal/residue"
	"github.com/dockforge/dockforge/internal/script"
	"github.com/dockforge/dockforge/internal/store"
	"github.com/dockforge/dockforge/internal/workspace"
	"github.com/dockforge/dockforge/pkg/types"
)

// jobDirName is the assembled tree kept at the workspace root; zip
// entry names are rooted at it.
const jobDirName = "job"

var validate = validator.New()

// Assembler builds downloadable job bundles. Each build runs under its
// workspace lock; builds in different workspaces never interfere.
type Assembler struct {
	manager *workspace.Manager
	store   *store.Store // optional
}

// New creates a bundle assembler.
func New(mgr *workspace.Manager, st *store.Store) *Assembler {
	return &Assembler{manager: mgr, store: st}
}

// Build validates coverage and parameters, assembles the job tree in a
// temporary location, archives it, and moves both into place only on
// full success. A failed build leaves no partially-visible artifact
// and the workspace intact for retry.
func (a *Assembler) Build(ws *types.Workspace, params types.JobParameters) (*types.BuildArtifact, error) {
	lock := a.manager.Lock(ws.ID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	artifact, err := a.build(ws, params, start)
	if err != nil {
		metrics.BuildsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.BuildsTotal.WithLabelValues("ok").Inc()
	metrics.BuildDuration.Observe(time.Since(start).Seconds())
	return artifact, nil
}

func (a *Assembler) build(ws *types.Workspace, params types.JobParameters, buildTime time.Time) (*types.BuildArtifact, error) {
	if err := validate.Struct(params); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return nil, &types.MissingParameterError{Template: "job", Name: strings.ToLower(errs[0].Field())}
		}
		return nil, fmt.Errorf("validate parameters: %w", err)
	}

	receptors, err := stagedReceptors(ws)
	if err != nil {
		return nil, err
	}
	if len(receptors) == 0 {
		return nil, fmt.Errorf("workspace %s: no staged receptors", ws.ID)
	}

	snapshot, err := centers.SnapshotAt(ws.Root)
	if err != nil {
		return nil, err
	}
	covered := make(map[string]bool, len(snapshot))
	for _, e := range snapshot {
		covered[residue.Tag(e.Tag)] = true
	}

	var missing []string
	for tag := range receptors {
		if !covered[tag] {
			missing = append(missing, tag)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &types.MissingCenterError{Tags: missing}
	}

	tmp, err := os.MkdirTemp(ws.Root, ".build-*")
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", ws.ID, err)
	}
	defer os.RemoveAll(tmp)

	rename := make(map[string]string, len(receptors))
	for tag, src := range receptors {
		name := filepath.Base(src)
		rename[tag] = name
		if err := copyFile(src, filepath.Join(tmp, workspace.DirReceptors, name)); err != nil {
			return nil, fmt.Errorf("stage receptor %s: %w", tag, err)
		}
	}

	if err := copyTree(filepath.Join(ws.Root, workspace.DirLigands), filepath.Join(tmp, workspace.DirLigands)); err != nil {
		return nil, fmt.Errorf("stage ligands: %w", err)
	}

	if err := centers.FinalizeAt(ws.Root, filepath.Join(tmp, centers.Filename), rename); err != nil {
		return nil, err
	}

	if err := renderScripts(tmp, ws, params, buildTime); err != nil {
		return nil, err
	}

	manifest, err := collectManifest(tmp)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", ws.ID, err)
	}

	archiveName := fmt.Sprintf("%s-%s.zip", ws.ID, buildTime.Format("20060102-150405"))
	archivePath := filepath.Join(ws.Root, archiveName)
	if err := writeArchive(tmp, archivePath, manifest, buildTime); err != nil {
		return nil, err
	}

	// Replace the visible job tree last; the archive already exists.
	jobRoot := filepath.Join(ws.Root, jobDirName)
	if err := os.RemoveAll(jobRoot); err != nil {
		return nil, fmt.Errorf("build %s: %w", ws.ID, err)
	}
	if err := os.Rename(tmp, jobRoot); err != nil {
		return nil, fmt.Errorf("build %s: %w", ws.ID, err)
	}

	artifact := &types.BuildArtifact{
		ArchivePath: archivePath,
		Manifest:    manifest,
		CreatedAt:   buildTime,
	}
	if a.store != nil {
		if err := a.store.AddBuild(ws.ID, artifact); err != nil {
			return nil, err
		}
	}
	return artifact, nil
}

// stagedReceptors maps receptor tag to the file that should ship in
// the bundle, preferring a cleaned copy over the raw structure with
// the same stem.
func stagedReceptors(ws *types.Workspace) (map[string]string, error) {
	dir := filepath.Join(ws.Root, workspace.DirReceptors)
	chosen := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdb", ".pdbqt", ".ent":
		default:
			return nil
		}
		tag := residue.Tag(path)
		prev, ok := chosen[tag]
		if !ok || (!isCleaned(prev) && isCleaned(path)) {
			chosen[tag] = path
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return chosen, nil
		}
		return nil, fmt.Errorf("scan receptors: %w", err)
	}
	return chosen, nil
}

func isCleaned(path string) bool {
	return strings.HasSuffix(path, residue.CleanedSuffix)
}

func renderScripts(tmp string, ws *types.Workspace, params types.JobParameters, buildTime time.Time) error {
	scriptsDir := filepath.Join(tmp, workspace.DirScripts)
	if err := os.MkdirAll(scriptsDir, 0755); err != nil {
		return fmt.Errorf("create script folder: %w", err)
	}

	base := map[string]string{
		"timestamp":    buildTime.Format("2006-01-02 15:04:05"),
		"project":      params.Project,
		"walltime":     params.Walltime,
		"queue":        params.Queue,
		"cores":        strconv.Itoa(params.Cores),
		"mem_per_core": strconv.Itoa(params.MemPerCoreMB),
		"env_block":    params.EnvBlock,
	}

	confgenName := "run_confgen_" + script.SanitizeName(ws.ID) + ".lsf"
	dockingName := "run_docking_" + script.SanitizeName(ws.ID) + ".lsf"
	withConformers := params.NumConformers > 0

	if withConformers {
		p := clone(base)
		p["jobname"] = "confgen_" + script.SanitizeName(ws.ID)
		p["num_conformers"] = strconv.Itoa(params.NumConformers)
		if err := renderTo(scriptsDir, confgenName, script.TemplateConfGen, p); err != nil {
			return err
		}
	}

	p := clone(base)
	p["jobname"] = "vina_" + script.SanitizeName(ws.ID)
	p["num_poses"] = strconv.Itoa(params.NumPoses)
	p["centers_csv"] = centers.Filename
	if params.ExecutablePath != "" {
		p["executable_path"] = params.ExecutablePath
	}
	if err := renderTo(scriptsDir, dockingName, script.TemplateDocking, p); err != nil {
		return err
	}

	if withConformers {
		p := map[string]string{
			"timestamp":       base["timestamp"],
			"confgen_script":  workspace.DirScripts + "/" + confgenName,
			"docking_script":  workspace.DirScripts + "/" + dockingName,
			"confgen_jobname": "confgen_" + script.SanitizeName(ws.ID),
		}
		if err := renderTo(scriptsDir, "submit_all.sh", script.TemplateSubmit, p); err != nil {
			return err
		}
	}
	return nil
}

func renderTo(dir, name, templateID string, params map[string]string) error {
	out, err := script.Render(templateID, params)
	if err != nil {
		return err
	}
	mode := os.FileMode(0644)
	if strings.HasSuffix(name, ".sh") {
		mode = 0755
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(out), mode); err != nil {
		return fmt.Errorf("write script %s: %w", name, err)
	}
	return nil
}

// collectManifest walks the assembled tree and returns sorted
// archive-relative entry names.
func collectManifest(root string) ([]string, error) {
	var manifest []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		manifest = append(manifest, jobDirName+"/"+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(manifest)
	return manifest, nil
}

// writeArchive zips the assembled tree. The archive is written next to
// its final location and renamed into place so a failed build never
// leaves a partial file behind. Entry order and timestamps are fixed,
// so identical trees produce identical archives.
func writeArchive(root, dest string, manifest []string, buildTime time.Time) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".archive-*")
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := zip.NewWriter(tmp)
	for _, entry := range manifest {
		src := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(entry, jobDirName+"/")))
		if err := addEntry(zw, src, entry, buildTime); err != nil {
			zw.Close()
			tmp.Close()
			return fmt.Errorf("archive %s: %w", entry, err)
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("publish archive: %w", err)
	}
	return nil
}

func addEntry(zw *zip.Writer, src, name string, buildTime time.Time) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: buildTime,
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == src {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		return copyFile(path, filepath.Join(dst, rel))
	})
}

func clone(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
