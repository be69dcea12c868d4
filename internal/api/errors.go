package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dockforge/dockforge/pkg/types"
)

// jsonError maps pipeline errors onto HTTP statuses. Validation-style
// failures keep their detail so the caller can act on them.
func jsonError(c echo.Context, err error) error {
	var (
		archiveErr   *types.InvalidArchiveEntryError
		malformedErr *types.MalformedStructureError
		paramErr     *types.MissingParameterError
		centerErr    *types.MissingCenterError
	)

	switch {
	case errors.Is(err, types.ErrWorkspaceNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, types.ErrUnsupportedFormat):
		return c.JSON(http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
	case errors.Is(err, types.ErrFetchTimeout):
		return c.JSON(http.StatusGatewayTimeout, map[string]string{"error": err.Error()})
	case errors.As(err, &archiveErr):
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
			"entry": archiveErr.Entry,
		})
	case errors.As(err, &malformedErr):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
			"file":  malformedErr.File,
		})
	case errors.As(err, &paramErr):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{
			"error":     err.Error(),
			"parameter": paramErr.Name,
		})
	case errors.As(err, &centerErr):
		return c.JSON(http.StatusConflict, map[string]any{
			"error":       err.Error(),
			"missingTags": centerErr.Tags,
		})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
