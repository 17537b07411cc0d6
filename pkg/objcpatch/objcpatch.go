// Package objcpatch renames Objective-C class and category names inside Mach-O binaries
// without changing the size or layout of the file.
package objcpatch

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/blacktop/go-macho"
	"github.com/blacktop/objcpatch/internal/magic"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Patcher runs a Plan against a Mach-O file.
type Patcher struct {
	plan    *Plan
	renamer Renamer
}

// NewPatcher validates the plan and returns a Patcher for it.
func NewPatcher(p *Plan) (*Patcher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Patcher{plan: p, renamer: NewRenamer(p)}, nil
}

// WithRenamer overrides the renamer chosen from the plan.
func (pt *Patcher) WithRenamer(r Renamer) *Patcher {
	pt.renamer = r
	return pt
}

// Run patches every architecture slice of the target and, unless this is a dry run,
// overwrites the target with the result.
func (pt *Patcher) Run() (*Report, error) {
	p := pt.plan
	out := p.output()

	if ok, err := magic.IsMachO(p.Path); !ok {
		if errors.Is(err, magic.ErrNotMachO) {
			return nil, ErrNotMachO
		}
		return nil, fmt.Errorf("failed to open binary: %w", err)
	}

	info, err := os.Stat(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", p.Path, err)
	}
	original, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("error reading file into buffer: %w", err)
	}
	writable := bytes.Clone(original)

	report := &Report{Path: p.Path, DryRun: p.DryRun}
	var signed bool

	archs, isFat, err := readFatHeader(original)
	switch {
	case isFat && err != nil:
		return nil, errors.Wrap(err, "failed to parse universal header")
	case isFat:
		for _, arch := range archs {
			s, err := openSlice(original, arch.Offset, arch.Size)
			if err != nil {
				log.WithField("arch", arch.CPU.String()).Errorf("Failed to get object for architecture: %v", err)
				report.Skipped = append(report.Skipped, arch.String())
				continue
			}
			before := len(report.Renames)
			if err := PatchSlice(s, original, writable, p, pt.renamer, report); err != nil {
				log.WithField("arch", s.Arch).Errorf("Failed to patch Mach-O slice: %v", err)
				if report.skip(arch.String(), before) {
					continue
				}
			}
			signed = signed || s.Signed()
		}
	case isThin(original):
		s, err := openSlice(original, 0, uint64(len(original)))
		if err != nil {
			return nil, errors.Wrap(ErrNotMachO, err.Error())
		}
		if err := PatchSlice(s, original, writable, p, pt.renamer, report); err != nil {
			return nil, fmt.Errorf("failed to patch Mach-O file: %w", err)
		}
		signed = s.Signed()
	default:
		return nil, ErrNotMachO
	}

	if p.MapFile != "" {
		if err := report.WriteYAML(p.MapFile); err != nil {
			return nil, err
		}
	}

	if p.DryRun {
		fmt.Fprintln(out, "\nDry run complete. Binary was not modified.")
		return report, nil
	}

	if p.Confirm != nil && !p.Confirm(p.Path) {
		log.Warn("aborted; binary was not modified")
		return report, nil
	}

	if err := os.WriteFile(p.Path, writable, info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("error writing file: %w", err)
	}
	log.WithFields(log.Fields{
		"classes":    report.Count(KindClass),
		"categories": report.Count(KindCategory),
		"size":       humanize.Bytes(uint64(len(writable))),
	}).Debug("Wrote patched binary")

	fmt.Fprintf(out, "\nSuccessfully patched binary in-place: %s\n", p.Path)

	if signed && len(report.Renames) > 0 {
		log.Warn("code signature has been invalidated (MachO may need to be re-signed)")
	}

	return report, nil
}

// openSlice parses the Mach-O image at [offset, offset+size) of dat.
func openSlice(dat []byte, offset, size uint64) (*Slice, error) {
	if offset > uint64(len(dat)) || size > uint64(len(dat))-offset {
		return nil, fmt.Errorf("slice (offset=%#x, size=%#x) is out of bounds", offset, size)
	}
	m, err := macho.NewFile(io.NewSectionReader(bytes.NewReader(dat), int64(offset), int64(size)))
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return NewSlice(m, offset, size), nil
}

// OpenSlices parses every architecture slice of the Mach-O at path. Universal slices
// that fail to parse are logged and left out.
func OpenSlices(path string) ([]*Slice, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	archs, isFat, err := readFatHeader(dat)
	if isFat {
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse universal header")
		}
		var slices []*Slice
		for _, arch := range archs {
			s, err := openSlice(dat, arch.Offset, arch.Size)
			if err != nil {
				log.WithField("arch", arch.CPU.String()).Errorf("Failed to get object for architecture: %v", err)
				continue
			}
			slices = append(slices, s)
		}
		return slices, nil
	}

	if !isThin(dat) {
		return nil, ErrNotMachO
	}
	s, err := openSlice(dat, 0, uint64(len(dat)))
	if err != nil {
		return nil, errors.Wrap(ErrNotMachO, err.Error())
	}
	return []*Slice{s}, nil
}
