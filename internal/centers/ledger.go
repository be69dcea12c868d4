// Package centers maintains the per-workspace docking-box center
// ledger: an explicit CSV log with at most one current row per
// receptor tag.
package centers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dockforge/dockforge/pkg/types"
)

// Filename is the ledger file at the workspace root. The header and
// column layout are a compatibility contract with the cluster-side
// docking scripts.
const Filename = "vina_centers.csv"

// DefaultBoxSize is applied when a save omits the box size.
const DefaultBoxSize = 20

var header = []string{"PDB_ID", "X", "Y", "Z", "SIZE"}

// Ledger is the center table of one workspace. All mutation goes
// through the workspace lock so concurrent saves for the same tag
// serialize last-writer-wins.
type Ledger struct {
	path string
	mu   *sync.Mutex
}

// New opens the ledger of the workspace rooted at root. The mutex must
// be the per-workspace lock from the workspace manager.
func New(root string, mu *sync.Mutex) *Ledger {
	return &Ledger{path: filepath.Join(root, Filename), mu: mu}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Append adds or overwrites the entry for e.Tag. Tag order is
// first-seen; a later save for a known tag replaces its values in
// place. The file is rewritten atomically so a failed write never
// corrupts existing rows.
func (l *Ledger) Append(e types.CenterEntry) error {
	if e.Tag == "" {
		return fmt.Errorf("center entry: empty receptor tag")
	}
	if e.Size <= 0 {
		e.Size = DefaultBoxSize
	}
	e.CreatedAt = time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}

	replaced := false
	for i := range entries {
		if entries[i].Tag == e.Tag {
			entries[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, e)
	}

	return writeCSV(l.path, entries, nil)
}

// Snapshot returns the latest entry per tag in first-seen tag order.
func (l *Ledger) Snapshot() ([]types.CenterEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// Finalize writes a copy of the current snapshot to path, mapping tags
// through rename (tags absent from the map pass through unchanged).
// The live ledger is never touched, and repeated calls with the same
// map produce identical output.
func (l *Ledger) Finalize(path string, rename map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}
	return writeCSV(path, entries, rename)
}

// SnapshotAt reads the ledger of the workspace rooted at root without
// taking any lock. The caller must already hold the workspace lock.
func SnapshotAt(root string) ([]types.CenterEntry, error) {
	l := &Ledger{path: filepath.Join(root, Filename)}
	return l.read()
}

// FinalizeAt writes a renamed snapshot of the ledger at root to path
// without taking any lock. The caller must already hold the workspace
// lock.
func FinalizeAt(root, path string, rename map[string]string) error {
	l := &Ledger{path: filepath.Join(root, Filename)}
	entries, err := l.read()
	if err != nil {
		return err
	}
	return writeCSV(path, entries, rename)
}

// CheckHeader verifies that uploaded ledger content starts with the
// canonical header row, so a wholesale replacement cannot smuggle in
// an incompatible column layout.
func CheckHeader(data []byte) error {
	rec, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return fmt.Errorf("ledger upload: %w", err)
	}
	if len(rec) != len(header) {
		return fmt.Errorf("ledger upload: expected header %s", strings.Join(header, ","))
	}
	for i, col := range header {
		if strings.TrimSpace(rec[i]) != col {
			return fmt.Errorf("ledger upload: expected header %s", strings.Join(header, ","))
		}
	}
	return nil
}

func (l *Ledger) read() ([]types.CenterEntry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger %s: %w", l.path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", l.path, err)
	}

	var entries []types.CenterEntry
	for i, rec := range records {
		if i == 0 || len(rec) < 5 {
			continue // header
		}
		var vals [4]float64
		for j := range vals {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("parse ledger %s row %d: bad number %q", l.path, i+1, rec[j+1])
			}
			vals[j] = v
		}
		entries = append(entries, types.CenterEntry{Tag: rec[0], X: vals[0], Y: vals[1], Z: vals[2], Size: vals[3]})
	}
	return entries, nil
}

// writeCSV writes entries to path via a temp file and rename, so
// readers never observe a half-written ledger.
func writeCSV(path string, entries []types.CenterEntry, rename map[string]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".centers-*")
	if err != nil {
		return fmt.Errorf("write ledger %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger %s: %w", path, err)
	}
	for _, e := range entries {
		tag := e.Tag
		if renamed, ok := rename[tag]; ok {
			tag = renamed
		}
		row := []string{tag, coord(e.X), coord(e.Y), coord(e.Z), coord(e.Size)}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("write ledger %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write ledger %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write ledger %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace ledger %s: %w", path, err)
	}
	return nil
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
