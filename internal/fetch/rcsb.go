// Package fetch retrieves receptor structures from the RCSB archive so
// a workspace can be seeded without a local file.
package fetch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dockforge/dockforge/pkg/types"
)

// Client downloads PDB entries. The context supplied to Fetch bounds
// the whole download; the workspace lock is never held across it.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a fetch client against baseURL
// (e.g. "https://files.rcsb.org/view").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// Fetch downloads entry code into destDir as <code>.pdb, optionally
// keeping only the chains listed in the comma-separated chains string.
// A context deadline turns into ErrFetchTimeout.
func (c *Client) Fetch(ctx context.Context, code, chains, destDir string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("fetch: empty structure code")
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("fetch %s: %w", code, err)
	}

	url := fmt.Sprintf("%s/%s.pdb", c.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", code, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("fetch %s: %w", code, types.ErrFetchTimeout)
		}
		return "", fmt.Errorf("fetch %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", code, resp.StatusCode)
	}

	wanted := chainSet(chains)
	dest := filepath.Join(destDir, code+".pdb")
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", code, err)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	w := bufio.NewWriter(out)
	for sc.Scan() {
		line := sc.Text()
		if len(wanted) > 0 && isAtomLine(line) {
			if len(line) < 22 || !wanted[strings.ToUpper(line[21:22])] {
				continue
			}
		}
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		out.Close()
		os.Remove(dest)
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("fetch %s: %w", code, types.ErrFetchTimeout)
		}
		return "", fmt.Errorf("fetch %s: %w", code, err)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("fetch %s: %w", code, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("fetch %s: %w", code, err)
	}
	return dest, nil
}

func isAtomLine(line string) bool {
	return strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM")
}

func chainSet(chains string) map[string]bool {
	set := make(map[string]bool)
	for _, c := range strings.Split(chains, ",") {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			set[c] = true
		}
	}
	return set
}
