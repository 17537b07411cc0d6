package objcpatch

import (
	"encoding/binary"
	"fmt"

	"github.com/blacktop/go-macho"
	"github.com/blacktop/go-macho/types"
)

const (
	// ClassNameSection is the flat table of NUL terminated class names
	ClassNameSection = "__objc_classname"
	// CategoryListSection is the array of pointers to category_t records
	CategoryListSection = "__objc_catlist"
)

// Segment is the part of a segment load command needed to translate addresses.
type Segment struct {
	Name   string
	Addr   uint64
	Memsz  uint64
	Offset uint64 // fileoff, relative to the start of the slice
	Filesz uint64
}

func (s Segment) contains(addr uint64) bool {
	return addr >= s.Addr && addr-s.Addr < s.Memsz
}

// Section is a named file range inside a slice.
type Section struct {
	Seg    string
	Name   string
	Addr   uint64
	Offset uint64 // relative to the start of the slice
	Size   uint64
}

// Slice is one architecture image inside a (possibly universal) Mach-O file.
type Slice struct {
	Arch      string
	Offset    uint64 // byte offset of the image within the file
	Size      uint64
	Is64      bool
	ByteOrder binary.ByteOrder
	Segments  []Segment
	Sections  []Section

	signed bool
}

// NewSlice collects the segments and sections of a parsed Mach-O image located at
// offset within the file.
func NewSlice(m *macho.File, offset, size uint64) *Slice {
	s := &Slice{
		Arch:      m.CPU.String(),
		Offset:    offset,
		Size:      size,
		Is64:      m.Magic == types.Magic64,
		ByteOrder: m.ByteOrder,
		signed:    len(m.GetLoadsByName("LC_CODE_SIGNATURE")) > 0,
	}
	if s.ByteOrder == nil {
		s.ByteOrder = binary.LittleEndian
	}
	for _, seg := range m.Segments() {
		s.Segments = append(s.Segments, Segment{
			Name:   seg.Name,
			Addr:   seg.Addr,
			Memsz:  seg.Memsz,
			Offset: seg.Offset,
			Filesz: seg.Filesz,
		})
	}
	for _, sec := range m.Sections {
		s.Sections = append(s.Sections, Section{
			Seg:    sec.Seg,
			Name:   sec.Name,
			Addr:   sec.Addr,
			Offset: uint64(sec.Offset),
			Size:   sec.Size,
		})
	}
	return s
}

// PointerSize is 8 for 64-bit images and 4 otherwise.
func (s *Slice) PointerSize() int {
	if s.Is64 {
		return 8
	}
	return 4
}

// Signed reports whether the image carries an LC_CODE_SIGNATURE.
func (s *Slice) Signed() bool { return s.signed }

// Resolve translates a virtual address into an offset from the start of the file.
//
// The first segment whose [vmaddr, vmaddr+vmsize) range contains addr wins. Segments
// that have no file backing (i.e. __PAGEZERO) are never used.
func (s *Slice) Resolve(addr uint64) (uint64, bool) {
	for _, seg := range s.Segments {
		if seg.Filesz == 0 {
			continue
		}
		if seg.contains(addr) {
			return s.Offset + seg.Offset + (addr - seg.Addr), true
		}
	}
	return 0, false
}

// Segment returns the segment containing addr.
func (s *Slice) Segment(addr uint64) *Segment {
	for i := range s.Segments {
		if s.Segments[i].Filesz != 0 && s.Segments[i].contains(addr) {
			return &s.Segments[i]
		}
	}
	return nil
}

// data returns the bytes of sec in buf, which must hold the whole file.
func (s *Slice) data(buf []byte, sec Section) ([]byte, error) {
	start := s.Offset + sec.Offset
	end := start + sec.Size
	if end < start || end > uint64(len(buf)) || (s.Size > 0 && sec.Offset+sec.Size > s.Size) {
		return nil, fmt.Errorf("section %s.%s (offset=%#x, size=%#x) is out of bounds", sec.Seg, sec.Name, sec.Offset, sec.Size)
	}
	return buf[start:end], nil
}

// readPointer reads a pointer sized value at off in buf.
func (s *Slice) readPointer(buf []byte, off uint64) (uint64, bool) {
	size := uint64(s.PointerSize())
	if off > uint64(len(buf)) || uint64(len(buf))-off < size {
		return 0, false
	}
	if s.Is64 {
		return s.ByteOrder.Uint64(buf[off:]), true
	}
	return uint64(s.ByteOrder.Uint32(buf[off:])), true
}
