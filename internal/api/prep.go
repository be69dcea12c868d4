package api

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dockforge/dockforge/internal/centers"
	"github.com/dockforge/dockforge/internal/residue"
	"github.com/dockforge/dockforge/internal/workspace"
	"github.com/dockforge/dockforge/pkg/types"
)

// listResidues reports the non-standard residues of a staged receptor.
// Without an explicit file the newest receptor is inspected, preferring
// a cleaned copy so the removal panel reflects prior cleanups.
func (s *Server) listResidues(c echo.Context) error {
	ws, err := s.manager.Resolve(c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}

	path, err := s.receptorPath(ws, c.QueryParam("file"))
	if err != nil {
		return jsonError(c, err)
	}
	if path == "" {
		return c.JSON(http.StatusOK, map[string]any{"residues": []types.ResidueCandidate{}})
	}

	f, err := os.Open(path)
	if err != nil {
		return jsonError(c, err)
	}
	defer f.Close()

	candidates, err := residue.ListResidues(filepath.Base(path), f)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"file":     relTo(ws, path),
		"residues": candidates,
	})
}

// cleanReceptor writes a cleaned copy of a staged receptor with the
// requested residues removed. The source stays untouched; one failed
// file never aborts other prep work in the workspace.
func (s *Server) cleanReceptor(c echo.Context) error {
	ws, err := s.manager.Resolve(c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}

	var req types.CleanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	src, err := s.receptorPath(ws, req.File)
	if err != nil {
		return jsonError(c, err)
	}
	if src == "" {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no staged receptor to clean"})
	}

	remove := make(map[string]bool, len(req.Remove))
	for _, r := range req.Remove {
		remove[strings.ToUpper(strings.TrimSpace(r))] = true
	}

	dst := filepath.Join(filepath.Dir(src), residue.CleanedName(filepath.Base(src)))
	if err := residue.Clean(src, dst, remove); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"cleaned": relTo(ws, dst)})
}

func (s *Server) saveCenter(c echo.Context) error {
	ws, err := s.manager.Resolve(c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}

	var req types.CenterRequest
	if err := c.Bind(&req); err != nil || req.Tag == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "receptor tag is required"})
	}

	ledger := centers.New(ws.Root, s.manager.Lock(ws.ID))
	entry := types.CenterEntry{Tag: req.Tag, X: req.X, Y: req.Y, Z: req.Z, Size: req.Size}
	if err := ledger.Append(entry); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"saved": req.Tag})
}

func (s *Server) listCenters(c echo.Context) error {
	ws, err := s.manager.Resolve(c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}

	snap, err := centers.New(ws.Root, s.manager.Lock(ws.ID)).Snapshot()
	if err != nil {
		return jsonError(c, err)
	}
	if snap == nil {
		snap = []types.CenterEntry{}
	}
	return c.JSON(http.StatusOK, map[string]any{"centers": snap})
}

// receptorPath resolves an explicit workspace-relative receptor path,
// or picks the newest staged receptor, cleaned copies first.
func (s *Server) receptorPath(ws *types.Workspace, rel string) (string, error) {
	if rel != "" {
		path, err := workspace.Path(ws, rel)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(path); err != nil {
			return "", types.ErrWorkspaceNotFound
		}
		return path, nil
	}

	dir := filepath.Join(ws.Root, workspace.DirReceptors)
	var cleaned, raw []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".pdb", ".pdbqt", ".ent":
		default:
			return nil
		}
		if strings.HasSuffix(path, residue.CleanedSuffix) {
			cleaned = append(cleaned, path)
		} else {
			raw = append(raw, path)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}

	pick := func(paths []string) string {
		sort.Slice(paths, func(i, j int) bool {
			return mtime(paths[i]).After(mtime(paths[j]))
		})
		if len(paths) == 0 {
			return ""
		}
		return paths[0]
	}
	if p := pick(cleaned); p != "" {
		return p, nil
	}
	return pick(raw), nil
}

func mtime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func relTo(ws *types.Workspace, path string) string {
	rel, err := filepath.Rel(ws.Root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
