package api

import (
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/dockforge/dockforge/internal/metrics"
	"github.com/dockforge/dockforge/internal/workspace"
	"github.com/dockforge/dockforge/pkg/types"
)

type createWorkspaceRequest struct {
	Owner string `json:"owner"`
}

func (s *Server) createWorkspace(c echo.Context) error {
	var req createWorkspaceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ws, err := s.manager.Create(req.Owner)
	if err != nil {
		return jsonError(c, err)
	}
	if s.store != nil {
		if err := s.store.AddWorkspace(ws); err != nil {
			log.Printf("dockforge: workspace %s not recorded: %v", ws.ID, err)
		}
	}
	metrics.WorkspacesCreated.Inc()

	return c.JSON(http.StatusCreated, ws)
}

func (s *Server) listWorkspaces(c echo.Context) error {
	ids, err := s.manager.List()
	if err != nil {
		return jsonError(c, err)
	}

	resp := types.WorkspaceListResponse{Workspaces: make([]types.Workspace, 0, len(ids))}
	for _, id := range ids {
		ws, err := s.manager.Resolve(id)
		if err != nil {
			continue
		}
		resp.Workspaces = append(resp.Workspaces, *ws)
	}
	return c.JSON(http.StatusOK, resp)
}

// serveFile streams a workspace-relative file to the viewer. Paths are
// pinned under the workspace root.
func (s *Server) serveFile(c echo.Context) error {
	ws, err := s.manager.Resolve(c.Param("id"))
	if err != nil {
		return jsonError(c, err)
	}

	rel := c.QueryParam("rel")
	if rel == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "rel query parameter is required"})
	}

	path, err := workspace.Path(ws, rel)
	if err != nil {
		return jsonError(c, err)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "file not found"})
	}
	return c.File(path)
}
