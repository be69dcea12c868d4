package api

import (
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dockforge/dockforge/pkg/types"
)

// build assembles the downloadable job bundle for a workspace.
// Validation failures abort the whole build; nothing partial ever
// becomes visible.
func (s *Server) build(c echo.Context) error {
	ws, err := s.manager.Resolve(c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}

	var req types.BuildRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	params := s.applyDefaults(req.Parameters)

	artifact, err := s.assembler.Build(ws, params)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"archive":  filepath.Base(artifact.ArchivePath),
		"manifest": artifact.Manifest,
		"builtAt":  artifact.CreatedAt,
	})
}

// downloadBundle streams the newest archive of a workspace.
func (s *Server) downloadBundle(c echo.Context) error {
	ws, err := s.manager.Resolve(c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}

	if s.store != nil {
		if artifact, err := s.store.LatestBuild(ws.ID); err == nil && artifact != nil {
			return c.Attachment(artifact.ArchivePath, filepath.Base(artifact.ArchivePath))
		}
	}

	// No record store (or no record): fall back to the newest archive
	// in the workspace itself.
	archives, err := filepath.Glob(filepath.Join(ws.Root, ws.ID+"-*.zip"))
	if err != nil || len(archives) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "workspace has no built bundle"})
	}
	sort.Strings(archives)
	newest := archives[len(archives)-1]
	return c.Attachment(newest, filepath.Base(newest))
}

// applyDefaults fills unset submission fields from server
// configuration so a minimal build request still renders.
func (s *Server) applyDefaults(p types.JobParameters) types.JobParameters {
	if strings.TrimSpace(p.Queue) == "" {
		p.Queue = s.cfg.DefaultQueue
	}
	if strings.TrimSpace(p.Project) == "" {
		p.Project = s.cfg.DefaultProject
	}
	if strings.TrimSpace(p.Walltime) == "" {
		p.Walltime = s.cfg.DefaultWalltime
	}
	if p.EnvBlock == "" {
		p.EnvBlock = s.cfg.DefaultEnvBlock
	}
	if p.Cores == 0 {
		p.Cores = 16
	}
	if p.MemPerCoreMB == 0 {
		p.MemPerCoreMB = 2000
	}
	if p.NumPoses == 0 {
		p.NumPoses = 9
	}
	return p
}
