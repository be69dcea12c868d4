// Package script renders cluster submission scripts from a fixed set
// of named templates. Substitution is pure text over an enumerated
// placeholder set; nothing is ever executed here.
package script

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dockforge/dockforge/pkg/types"
)

// Template ids.
const (
	TemplateConfGen = "confgen"
	TemplateDocking = "docking"
	TemplateSubmit  = "submit"
)

// Template is one named submission script with its enumerated
// placeholder sets. Required placeholders must be supplied to Render;
// optional ones fall back to their defaults. Anything else in the
// params map is ignored.
type Template struct {
	ID       string
	Filename string
	Required []string
	Optional map[string]string
	body     string
}

const lsfHeader = `#!/bin/bash
# Auto-generated: {timestamp}
#BSUB -J {jobname}
#BSUB -P {project}
#BSUB -o logs/{jobname}_%J.out
#BSUB -e logs/{jobname}_%J.err
#BSUB -W {walltime}
#BSUB -q {queue}
#BSUB -n {cores}
#BSUB -R "span[hosts=1]"
#BSUB -R "rusage[mem={mem_per_core}]"

set -euo pipefail
cd "$LS_SUBCWD"
mkdir -p logs

{env_block}
`

var headerParams = []string{"timestamp", "jobname", "project", "walltime", "queue", "cores", "mem_per_core"}

var templates = map[string]*Template{
	TemplateConfGen: {
		ID:       TemplateConfGen,
		Filename: "run_confgen.lsf",
		Required: append([]string{"num_conformers"}, headerParams...),
		Optional: map[string]string{"env_block": ""},
		body: lsfHeader + `
PYBIN="$(command -v python3 || command -v python)"
echo "Using Python: $PYBIN"
"$PYBIN" 1_ConformerGeneration.py --folder Ligands --num-confs {num_conformers} --workers {cores}
`,
	},
	TemplateDocking: {
		ID:       TemplateDocking,
		Filename: "run_docking.lsf",
		Required: append([]string{"num_poses", "centers_csv"}, headerParams...),
		Optional: map[string]string{"env_block": "", "executable_path": "vina"},
		body: lsfHeader + `
export VINA_EXE="{executable_path}"
python 3_Complete_batch_docking.py \
  --receptors Receptors \
  --ligands Ligands \
  --centers_csv "{centers_csv}" \
  --poses {num_poses}
`,
	},
	TemplateSubmit: {
		ID:       TemplateSubmit,
		Filename: "submit_all.sh",
		Required: []string{"timestamp", "confgen_script", "docking_script", "confgen_jobname"},
		Optional: map[string]string{},
		body: `#!/bin/bash
# Auto-generated: {timestamp}
set -euo pipefail
bsub < {confgen_script}
bsub -w "done({confgen_jobname})" < {docking_script}
`,
	},
}

// Get returns a template by id.
func Get(id string) (*Template, error) {
	t, ok := templates[id]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", id)
	}
	return t, nil
}

// List returns all template ids in render order.
func List() []string {
	return []string{TemplateConfGen, TemplateDocking, TemplateSubmit}
}

// Render substitutes params into the named template. A required
// placeholder missing from params fails with MissingParameterError.
// Identical params always produce byte-identical output.
func Render(id string, params map[string]string) (string, error) {
	t, err := Get(id)
	if err != nil {
		return "", err
	}

	out := t.body
	for _, name := range t.Required {
		v, ok := params[name]
		if !ok || v == "" {
			return "", &types.MissingParameterError{Template: id, Name: name}
		}
		out = strings.ReplaceAll(out, "{"+name+"}", Escape(v))
	}
	for name, def := range t.Optional {
		v, ok := params[name]
		if !ok {
			v = def
		}
		if !rawParams[name] {
			v = Escape(v)
		}
		out = strings.ReplaceAll(out, "{"+name+"}", v)
	}
	return out, nil
}

// rawParams are substituted verbatim. The env block is operator
// configuration and legitimately spans lines.
var rawParams = map[string]bool{"env_block": true}

var (
	nameRe    = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	escapeRe  = regexp.MustCompile("[\"'`\\\\$]")
	newlineRe = regexp.MustCompile(`[\r\n\t]+`)
)

// SanitizeName maps an arbitrary string to a safe job name.
func SanitizeName(name string) string {
	return nameRe.ReplaceAllString(name, "_")
}

// Escape makes a user-supplied value safe to embed as a script
// literal: quotes, backslashes and expansion characters are dropped
// and newlines collapse to a single space.
func Escape(v string) string {
	v = newlineRe.ReplaceAllString(v, " ")
	return escapeRe.ReplaceAllString(v, "")
}
