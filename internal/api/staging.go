package api

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dockforge/dockforge/internal/centers"
	"github.com/dockforge/dockforge/internal/metrics"
	"github.com/dockforge/dockforge/internal/workspace"
	"github.com/dockforge/dockforge/pkg/types"
)

// upload stages a multipart file under a workspace. The "role" field
// selects the target subfolder; zip uploads are expanded member by
// member, anything else is classified as a single file. A "centers"
// role replaces the workspace ledger file wholesale.
func (s *Server) upload(c echo.Context) error {
	ws, err := s.manager.Resolve(c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file field is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return jsonError(c, err)
	}
	defer src.Close()

	role := c.FormValue("role")
	var roleDir string
	switch role {
	case "receptors":
		roleDir = workspace.DirReceptors
	case "ligands":
		roleDir = workspace.DirLigands
	case "centers":
		return s.uploadCenters(c, ws, src)
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "role must be receptors, ligands or centers"})
	}

	if strings.EqualFold(filepath.Ext(fh.Filename), ".zip") {
		data, err := io.ReadAll(src)
		if err != nil {
			return jsonError(c, err)
		}
		staged, err := s.classifier.IngestArchive(ws, roleDir, data)
		if err != nil {
			return jsonError(c, err)
		}
		for _, f := range staged {
			metrics.UploadsTotal.WithLabelValues(string(f.Kind)).Inc()
		}
		return c.JSON(http.StatusCreated, map[string]any{"staged": staged})
	}

	rec, err := s.classifier.IngestFile(ws, roleDir, fh.Filename, src)
	if err != nil {
		return jsonError(c, err)
	}
	metrics.UploadsTotal.WithLabelValues(string(rec.Kind)).Inc()
	return c.JSON(http.StatusCreated, map[string]any{"staged": []types.StagedFile{*rec}})
}

// uploadCenters replaces the workspace ledger wholesale. The upload is
// read and checked in full, then swapped in via temp file and rename,
// so a failed request leaves the current ledger untouched.
func (s *Server) uploadCenters(c echo.Context, ws *types.Workspace, src io.Reader) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return jsonError(c, err)
	}
	if err := centers.CheckHeader(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	lock := s.manager.Lock(ws.ID)
	lock.Lock()
	defer lock.Unlock()

	tmp, err := os.CreateTemp(ws.Root, ".centers-*")
	if err != nil {
		return jsonError(c, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return jsonError(c, err)
	}
	if err := tmp.Close(); err != nil {
		return jsonError(c, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(ws.Root, centers.Filename)); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"saved": centers.Filename})
}

type fetchRequest struct {
	Code   string `json:"code"`
	Chains string `json:"chains,omitempty"`
}

// fetchStructure downloads a receptor from the structure archive and
// stages it like an upload. The fetch runs under the request context
// bounded by the configured timeout, never under the workspace lock.
func (s *Server) fetchStructure(c echo.Context) error {
	ws, err := s.manager.Resolve(c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}

	var req fetchRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "structure code is required"})
	}

	ctx, cancel := contextWithTimeout(c, s.cfg.FetchTimeout)
	defer cancel()

	tmp, err := os.MkdirTemp(ws.Root, ".fetch-*")
	if err != nil {
		return jsonError(c, err)
	}
	defer os.RemoveAll(tmp)

	path, err := s.fetcher.Fetch(ctx, req.Code, req.Chains, tmp)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues("error").Inc()
		return jsonError(c, err)
	}
	metrics.FetchesTotal.WithLabelValues("ok").Inc()

	f, err := os.Open(path)
	if err != nil {
		return jsonError(c, err)
	}
	defer f.Close()

	rec, err := s.classifier.IngestFile(ws, workspace.DirReceptors, filepath.Base(path), f)
	if err != nil {
		return jsonError(c, err)
	}
	metrics.UploadsTotal.WithLabelValues(string(rec.Kind)).Inc()

	log.Printf("dockforge: fetched %s into workspace %s", req.Code, ws.ID)
	return c.JSON(http.StatusCreated, map[string]any{"staged": []types.StagedFile{*rec}})
}

func contextWithTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}
