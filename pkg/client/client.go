// Package client is an HTTP client for the dockforge API, used by the
// CLI and by scripts that drive job preparation headlessly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dockforge/dockforge/pkg/types"
)

// Client is an HTTP client for the dockforge API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new dockforge API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

func decodeOrError(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("api error (%d): %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("api error: status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateWorkspace allocates a new prep workspace.
func (c *Client) CreateWorkspace(ctx context.Context, owner string) (*types.Workspace, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/workspaces", map[string]string{"owner": owner})
	if err != nil {
		return nil, err
	}
	var ws types.Workspace
	if err := decodeOrError(resp, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

// ListWorkspaces returns all known workspaces.
func (c *Client) ListWorkspaces(ctx context.Context) ([]types.Workspace, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/workspaces", nil)
	if err != nil {
		return nil, err
	}
	var list types.WorkspaceListResponse
	if err := decodeOrError(resp, &list); err != nil {
		return nil, err
	}
	return list.Workspaces, nil
}

// UploadFile stages a single file or zip under a workspace role.
func (c *Client) UploadFile(ctx context.Context, workspaceID, role, filename string, r io.Reader) ([]types.StagedFile, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("role", role); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/workspaces/"+workspaceID+"/uploads", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	var out struct {
		Staged []types.StagedFile `json:"staged"`
	}
	if err := decodeOrError(resp, &out); err != nil {
		return nil, err
	}
	return out.Staged, nil
}

// FetchStructure downloads a receptor from the structure archive into
// the workspace.
func (c *Client) FetchStructure(ctx context.Context, workspaceID, code, chains string) ([]types.StagedFile, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/workspaces/"+workspaceID+"/fetch",
		map[string]string{"code": code, "chains": chains})
	if err != nil {
		return nil, err
	}
	var out struct {
		Staged []types.StagedFile `json:"staged"`
	}
	if err := decodeOrError(resp, &out); err != nil {
		return nil, err
	}
	return out.Staged, nil
}

// SaveCenter records a docking-box center for a receptor tag.
func (c *Client) SaveCenter(ctx context.Context, workspaceID string, center types.CenterRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/workspaces/"+workspaceID+"/centers", center)
	if err != nil {
		return err
	}
	return decodeOrError(resp, nil)
}

// Build assembles the job bundle and returns its archive name and
// manifest.
func (c *Client) Build(ctx context.Context, workspaceID string, params types.JobParameters) (string, []string, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/workspaces/"+workspaceID+"/build",
		types.BuildRequest{Parameters: params})
	if err != nil {
		return "", nil, err
	}
	var out struct {
		Archive  string   `json:"archive"`
		Manifest []string `json:"manifest"`
	}
	if err := decodeOrError(resp, &out); err != nil {
		return "", nil, err
	}
	return out.Archive, out.Manifest, nil
}

// DownloadBundle streams the newest archive of a workspace to w.
func (c *Client) DownloadBundle(ctx context.Context, workspaceID string, w io.Writer) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/workspaces/"+workspaceID+"/bundle", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api error: status %d", resp.StatusCode)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download bundle: %w", err)
	}
	return nil
}
