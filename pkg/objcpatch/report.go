package objcpatch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind is the kind of Objective-C name that was renamed.
type Kind string

const (
	KindClass    Kind = "class"
	KindCategory Kind = "category"
)

// Rename records a single in-place rename.
type Rename struct {
	Kind   Kind   `yaml:"kind"`
	Arch   string `yaml:"arch"`
	Offset uint64 `yaml:"offset"`
	Old    string `yaml:"old"`
	New    string `yaml:"new"`
}

// Report collects the outcome of a patch run.
type Report struct {
	Path    string   `yaml:"path"`
	DryRun  bool     `yaml:"dry_run"`
	Renames []Rename `yaml:"renames"`
	Skipped []string `yaml:"skipped_slices,omitempty"`
}

func (r *Report) add(rn Rename) {
	r.Renames = append(r.Renames, rn)
}

// skip records slice as skipped unless renames were added after index since; those
// are already in the writable buffer so the slice counts as (partially) patched.
func (r *Report) skip(slice string, since int) bool {
	if len(r.Renames) > since {
		return false
	}
	r.Skipped = append(r.Skipped, slice)
	return true
}

// Count returns the number of renames of the given kind.
func (r *Report) Count(kind Kind) int {
	var n int
	for _, rn := range r.Renames {
		if rn.Kind == kind {
			n++
		}
	}
	return n
}

// WriteYAML writes the rename map to path.
func (r *Report) WriteYAML(path string) error {
	dat, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal rename map: %w", err)
	}
	if err := os.WriteFile(path, dat, 0o644); err != nil {
		return fmt.Errorf("failed to write rename map %s: %w", path, err)
	}
	return nil
}
