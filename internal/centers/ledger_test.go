package centers

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dockforge/dockforge/pkg/types"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(t.TempDir(), &sync.Mutex{})
}

func TestAppend_OverwritesSameTag(t *testing.T) {
	l := testLedger(t)

	if err := l.Append(types.CenterEntry{Tag: "1abc", X: 1, Y: 2, Z: 3, Size: 20}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := l.Append(types.CenterEntry{Tag: "1abc", X: 7, Y: 8, Z: 9, Size: 22}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	snap, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if len(snap) != 1 {
		t.Fatalf("expected one entry for tag, got %d", len(snap))
	}
	if snap[0].X != 7 || snap[0].Y != 8 || snap[0].Z != 9 || snap[0].Size != 22 {
		t.Errorf("expected later values to win, got %+v", snap[0])
	}
}

func TestSnapshot_FirstSeenOrder(t *testing.T) {
	l := testLedger(t)

	for _, tag := range []string{"b", "a", "c"} {
		if err := l.Append(types.CenterEntry{Tag: tag, X: 1, Y: 1, Z: 1, Size: 20}); err != nil {
			t.Fatalf("Append(%s) error: %v", tag, err)
		}
	}
	// Overwrite must not move a tag to the end.
	if err := l.Append(types.CenterEntry{Tag: "b", X: 5, Y: 5, Z: 5, Size: 20}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	snap, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	var order []string
	for _, e := range snap {
		order = append(order, e.Tag)
	}
	if strings.Join(order, ",") != "b,a,c" {
		t.Errorf("expected first-seen order b,a,c; got %v", order)
	}
}

func TestAppend_DefaultBoxSize(t *testing.T) {
	l := testLedger(t)

	if err := l.Append(types.CenterEntry{Tag: "1abc", X: 1, Y: 2, Z: 3}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	snap, _ := l.Snapshot()
	if snap[0].Size != DefaultBoxSize {
		t.Errorf("expected default size %d, got %v", DefaultBoxSize, snap[0].Size)
	}
}

func TestAppend_EmptyTag(t *testing.T) {
	l := testLedger(t)
	if err := l.Append(types.CenterEntry{X: 1}); err == nil {
		t.Error("expected error for empty tag")
	}
}

func TestLedgerFileFormat(t *testing.T) {
	root := t.TempDir()
	l := New(root, &sync.Mutex{})

	if err := l.Append(types.CenterEntry{Tag: "1abc", X: 1.5, Y: 2, Z: 3, Size: 20}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, Filename))
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "PDB_ID,X,Y,Z,SIZE" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "1abc,1.5,2,3,20" {
		t.Errorf("unexpected row %q", lines[1])
	}
}

func TestCheckHeader(t *testing.T) {
	if err := CheckHeader([]byte("PDB_ID,X,Y,Z,SIZE\n1abc,1,2,3,20\n")); err != nil {
		t.Errorf("expected canonical header accepted, got %v", err)
	}
	for _, bad := range []string{
		"foo,bar\n",
		"PDB_ID,X,Y,Z\n",
		"pdb,x,y,z,size\n1abc,1,2,3,20\n",
	} {
		if err := CheckHeader([]byte(bad)); err == nil {
			t.Errorf("expected header %q rejected", bad)
		}
	}
}

func TestSnapshot_BadNumberErrors(t *testing.T) {
	dir := t.TempDir()
	content := "PDB_ID,X,Y,Z,SIZE\n1abc,1,oops,3,20\n"
	if err := os.WriteFile(filepath.Join(dir, Filename), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	l := New(dir, &sync.Mutex{})
	if _, err := l.Snapshot(); err == nil || !strings.Contains(err.Error(), "oops") {
		t.Errorf("expected parse error naming the bad value, got %v", err)
	}
}

func TestFinalize_RenamedCopyLeavesLedgerIntact(t *testing.T) {
	root := t.TempDir()
	l := New(root, &sync.Mutex{})

	if err := l.Append(types.CenterEntry{Tag: "1abc", X: 1, Y: 2, Z: 3, Size: 20}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := l.Append(types.CenterEntry{Tag: "2xyz", X: 4, Y: 5, Z: 6, Size: 22}); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	dest := filepath.Join(root, "job-centers.csv")
	rename := map[string]string{"1abc": "1abc.cleaned.pdb"}
	if err := l.Finalize(dest, rename); err != nil {
		t.Fatalf("Finalize() error: %v", err)
	}

	out, _ := os.ReadFile(dest)
	if !strings.Contains(string(out), "1abc.cleaned.pdb,1,2,3,20") {
		t.Errorf("expected renamed row, got:\n%s", out)
	}
	if !strings.Contains(string(out), "2xyz,4,5,6,22") {
		t.Errorf("expected unmapped tag passed through, got:\n%s", out)
	}

	// Live ledger untouched.
	snap, _ := l.Snapshot()
	if snap[0].Tag != "1abc" {
		t.Errorf("Finalize must not mutate the ledger, got tag %s", snap[0].Tag)
	}

	// Idempotent across repeated calls with the same map.
	if err := l.Finalize(dest, rename); err != nil {
		t.Fatalf("second Finalize() error: %v", err)
	}
	again, _ := os.ReadFile(dest)
	if string(again) != string(out) {
		t.Error("expected Finalize to be idempotent for a fixed rename map")
	}
}

func TestAppend_ConcurrentSameTag(t *testing.T) {
	l := testLedger(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = l.Append(types.CenterEntry{Tag: "1abc", X: float64(i), Y: 0, Z: 0, Size: 20})
		}(i)
	}
	wg.Wait()

	snap, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if len(snap) != 1 {
		t.Errorf("expected a single row after concurrent saves, got %d", len(snap))
	}
}
