package objcpatch

import (
	"bytes"
	"fmt"
	"io"

	"github.com/apex/log"
	"github.com/blacktop/objcpatch/internal/colors"
)

var (
	classTag    = colors.BoldCyan().SprintFunc()
	categoryTag = colors.BoldMagenta().SprintFunc()
	newName     = colors.Green().SprintFunc()
	skipped     = colors.Yellow().SprintFunc()
	archName    = colors.Bold().SprintFunc()
	fileOffset  = colors.Faint().SprintFunc()
)

// patcher holds the state shared by the section patchers of one slice.
type patcher struct {
	slice    *Slice
	original []byte // every resolving read comes from here
	writable []byte // every write goes here
	plan     *Plan
	renamer  Renamer
	report   *Report
	out      io.Writer
}

// PatchSlice renames the class and category names of a single architecture slice.
//
// original and writable must both hold the entire file; only writable is modified.
// Sections whose contents fall outside the file are skipped.
func PatchSlice(s *Slice, original, writable []byte, p *Plan, r Renamer, rep *Report) error {
	if len(original) != len(writable) {
		return fmt.Errorf("buffer size mismatch: original=%d, writable=%d", len(original), len(writable))
	}
	pt := &patcher{
		slice:    s,
		original: original,
		writable: writable,
		plan:     p,
		renamer:  r,
		report:   rep,
		out:      p.output(),
	}

	fmt.Fprintf(pt.out, "--- Patching architecture: %s (slice offset: %d) ---\n", archName(s.Arch), s.Offset)

	for _, sec := range s.Sections {
		if sec.Name != ClassNameSection && sec.Name != CategoryListSection {
			continue
		}
		dat, err := s.data(original, sec)
		if err != nil {
			log.WithFields(log.Fields{
				"arch":    s.Arch,
				"section": sec.Seg + "." + sec.Name,
			}).Debugf("skipping section: %v", err)
			continue
		}
		if sec.Name == ClassNameSection {
			pt.patchClassNames(sec, dat)
		} else {
			pt.patchCategoryList(dat)
		}
	}

	return nil
}

// patchClassNames walks the NUL terminated names packed in __objc_classname.
func (pt *patcher) patchClassNames(sec Section, dat []byte) {
	base := pt.slice.Offset + sec.Offset

	for cur := 0; cur < len(dat); {
		end := bytes.IndexByte(dat[cur:], 0)
		if end < 0 {
			end = len(dat) - cur // unterminated tail ends at the section bound
		}
		if end == 0 {
			cur++
			continue
		}
		name := string(dat[cur : cur+end])
		off := base + uint64(cur)
		cur += end + 1

		if pt.plan.Excluded(name) {
			fmt.Fprintf(pt.out, "%s Skipping excluded class: %s\n", classTag("[CLASS]"), skipped(name))
			continue
		}

		pt.rename(KindClass, classTag("[CLASS]"), name, off)
	}
}

// patchCategoryList follows every category_t pointer in __objc_catlist to the
// category's name and renames it.
func (pt *patcher) patchCategoryList(dat []byte) {
	s := pt.slice
	ptrSize := s.PointerSize()

	for i := 0; i+ptrSize <= len(dat); i += ptrSize {
		catAddr, _ := s.readPointer(dat, uint64(i))

		catOff, ok := s.Resolve(catAddr)
		if !ok {
			log.WithField("addr", fmt.Sprintf("%#x", catAddr)).Debug("category pointer is not mapped")
			continue
		}
		// category_t.name is the first field of the record
		nameAddr, ok := s.readPointer(pt.original, catOff)
		if !ok {
			log.WithField("offset", fmt.Sprintf("%#x", catOff)).Debug("category record is out of bounds")
			continue
		}
		nameOff, ok := s.Resolve(nameAddr)
		if !ok {
			log.WithField("addr", fmt.Sprintf("%#x", nameAddr)).Debug("category name pointer is not mapped")
			continue
		}
		name, ok := s.cstring(pt.original, nameOff)
		if !ok || len(name) == 0 {
			continue
		}

		pt.rename(KindCategory, categoryTag("[CATEGORY]"), name, nameOff)
	}
}

// rename computes the new name and copies exactly len(name) bytes into the writable
// buffer at off; the terminator is never written.
func (pt *patcher) rename(kind Kind, tag, name string, off uint64) {
	renamed, ok := pt.renamer.Rename(name)
	if !ok {
		return
	}
	if len(renamed) != len(name) {
		log.WithFields(log.Fields{
			"name":    name,
			"renamed": renamed,
		}).Error("refusing to write a rename that changes the name length")
		return
	}
	if off+uint64(len(name)) > uint64(len(pt.writable)) {
		return
	}

	fmt.Fprintf(pt.out, "%s Found: %s at file offset %s\n", tag, name, fileOffset(off))
	copy(pt.writable[off:off+uint64(len(name))], renamed)
	fmt.Fprintf(pt.out, "  -> Replaced with: %s\n", newName(renamed))

	if pt.report != nil {
		pt.report.add(Rename{
			Kind:   kind,
			Arch:   pt.slice.Arch,
			Offset: off,
			Old:    name,
			New:    renamed,
		})
	}
}

// cstring reads a NUL terminated string at off, bounded by the end of the slice.
func (s *Slice) cstring(buf []byte, off uint64) (string, bool) {
	end := uint64(len(buf))
	if s.Size > 0 && s.Offset+s.Size < end {
		end = s.Offset + s.Size
	}
	return cstring(buf[:end], off)
}

// cstring reads a NUL terminated string at off, bounded by the end of buf.
func cstring(buf []byte, off uint64) (string, bool) {
	if off >= uint64(len(buf)) {
		return "", false
	}
	rest := buf[off:]
	if end := bytes.IndexByte(rest, 0); end >= 0 {
		return string(rest[:end]), true
	}
	return string(rest), true
}
