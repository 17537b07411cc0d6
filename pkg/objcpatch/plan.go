package objcpatch

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

var (
	// ErrNotMachO is returned when the target is neither a thin nor a universal Mach-O.
	ErrNotMachO = errors.New("the provided file is not a valid Mach-O binary")
	// ErrEmptyPattern is returned when a replacement is configured without a pattern.
	ErrEmptyPattern = errors.New("replacement pattern cannot be empty")
	// ErrLengthMismatch is returned when pattern and replacement differ in length.
	ErrLengthMismatch = errors.New("for binary safety, the replacement pattern and the replacement string must be the same length")
)

// Plan describes a single patch run.
type Plan struct {
	Path        string
	Quiet       bool
	DryRun      bool
	Exclude     map[string]struct{}
	Pattern     string
	Replacement string

	Seed    uint64 // 0 picks a random seed
	MapFile string // where to write the rename map (optional)
	Confirm func(path string) bool

	Output io.Writer // progress output (defaults to os.Stdout)
}

// NewExcludeSet builds an exclusion set from a list of class names.
func NewExcludeSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}

// Validate checks the length preserving invariant of replace mode.
func (p *Plan) Validate() error {
	if p.Path == "" {
		return fmt.Errorf("no binary to patch")
	}
	if p.Pattern == "" && p.Replacement != "" {
		return ErrEmptyPattern
	}
	if len(p.Pattern) != len(p.Replacement) {
		return ErrLengthMismatch
	}
	return nil
}

// ReplaceMode reports whether the plan substitutes a pattern instead of randomizing.
func (p *Plan) ReplaceMode() bool {
	return p.Pattern != ""
}

// Excluded reports whether a class name must be left untouched.
func (p *Plan) Excluded(name string) bool {
	_, ok := p.Exclude[name]
	return ok
}

func (p *Plan) output() io.Writer {
	if p.Quiet {
		return io.Discard
	}
	if p.Output == nil {
		return os.Stdout
	}
	return p.Output
}
