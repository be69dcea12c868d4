// Package residue inspects and rewrites PDB structure files at the
// record-line level. It is a pure filter: no coordinate math, no
// chemistry beyond residue names.
package residue

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dockforge/dockforge/pkg/types"
)

// CleanedSuffix marks files produced by Clean.
const CleanedSuffix = ".cleaned.pdb"

// standard residues and waters are never offered for removal.
var standard = map[string]bool{
	"ALA": true, "ARG": true, "ASN": true, "ASP": true, "CYS": true,
	"GLN": true, "GLU": true, "GLY": true, "HIS": true, "ILE": true,
	"LEU": true, "LYS": true, "MET": true, "PHE": true, "PRO": true,
	"SER": true, "THR": true, "TRP": true, "TYR": true, "VAL": true,
	"HOH": true, "WAT": true, "H2O": true, "TIP3": true,
}

// known record names used to tell a PDB file from arbitrary text.
var recordNames = map[string]bool{
	"HEADER": true, "TITLE": true, "COMPND": true, "REMARK": true,
	"SEQRES": true, "CRYST1": true, "ATOM": true, "HETATM": true,
	"ANISOU": true, "TER": true, "CONECT": true, "MASTER": true,
	"END": true, "ENDMDL": true, "MODEL": true, "ROOT": true,
	"BRANCH": true, "TORSDOF": true,
}

// ListResidues returns the distinct non-standard residues of a
// structure with per-chain atom counts, in first-seen order. The
// result is transient; nothing is persisted.
func ListResidues(name string, r io.Reader) ([]types.ResidueCandidate, error) {
	var (
		out   []types.ResidueCandidate
		index = make(map[string]int)
		atoms int
		valid bool
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if isRecord(line) {
			valid = true
		}
		resname, chain, ok := atomResidue(line)
		if !ok {
			continue
		}
		atoms++
		if standard[resname] {
			continue
		}
		key := resname + "/" + chain
		if i, seen := index[key]; seen {
			out[i].Count++
			continue
		}
		index[key] = len(out)
		out = append(out, types.ResidueCandidate{Name: resname, Chain: chain, Count: 1})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", name, err)
	}
	if !valid || atoms == 0 {
		return nil, &types.MalformedStructureError{File: name, Reason: "no atom records"}
	}
	return out, nil
}

// Clean writes a copy of src to dst with all atoms of residues in
// remove dropped. The source file is untouched, and the filter is
// idempotent: cleaning an already-cleaned file is a no-op byte-wise.
func Clean(src, dst string, remove map[string]bool) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	var (
		buf   strings.Builder
		valid bool
		lines int
	)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		lines++
		if isRecord(line) {
			valid = true
		}
		if resname, _, ok := atomResidue(line); ok && remove[resname] {
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", src, err)
	}
	// An empty file counts as a vacuous structure: cleaning can strip
	// every record, and that output must stay cleanable.
	if lines > 0 && !valid {
		return &types.MalformedStructureError{File: filepath.Base(src), Reason: "not a structure file"}
	}

	if err := os.WriteFile(dst, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

// CleanedName maps a structure filename to its cleaned counterpart,
// stable under repeated application.
func CleanedName(name string) string {
	if strings.HasSuffix(name, CleanedSuffix) {
		return name
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return stem + CleanedSuffix
}

// Tag strips extensions and the cleaned marker from a receptor
// filename, yielding the tag centers are keyed by.
func Tag(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSuffix(base, ".cleaned")
}

func atomResidue(line string) (resname, chain string, ok bool) {
	if !strings.HasPrefix(line, "ATOM") && !strings.HasPrefix(line, "HETATM") {
		return "", "", false
	}
	if len(line) < 22 {
		return "", "", false
	}
	return strings.ToUpper(strings.TrimSpace(line[17:20])), strings.TrimSpace(line[21:22]), true
}

func isRecord(line string) bool {
	name := line
	if i := strings.IndexByte(name, ' '); i >= 0 {
		name = name[:i]
	}
	return recordNames[strings.ToUpper(name)]
}
