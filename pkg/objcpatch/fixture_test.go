package objcpatch

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const (
	cpuX86_64 = 0x01000007
	cpuArm64  = 0x0100000c
	cpuI386   = 0x00000007

	fixtureSize    = 0x800
	textFileOff    = 0x000
	textFileSize   = 0x400
	classNameOff   = 0x200
	catNameOff     = 0x300
	dataFileOff    = 0x400
	dataFileSize   = 0x400
	catListOff     = 0x400
	catRecordsOff  = 0x500
	catRecordSize  = 0x20
	textAddr64     = 0x100000000
	dataAddr64     = 0x100004000
	textAddr32     = 0x1000
	dataAddr32     = 0x5000
	lcSegment      = 0x1
	lcSegment64    = 0x19
	segCmdSize32   = 56
	segCmdSize64   = 72
	sectSize32     = 68
	sectSize64     = 80
	mhExecute      = 0x2
	unmappedVMAddr = 0xdeadbeef0
)

// fixture describes a small synthetic Mach-O image.
type fixture struct {
	is64       bool
	cpu        uint32
	classNames []string // packed back to back in __objc_classname
	categories []string // one category_t per name, referenced from __objc_catlist
	extraPtrs  []uint64 // raw __objc_catlist entries appended after the real ones
}

// built is a fixture rendered to bytes plus the file offsets of its names.
type built struct {
	data       []byte
	classOffs  map[string]uint64
	catOffs    map[string]uint64
	textAddr   uint64
	dataAddr   uint64
	classTable []byte
}

type section struct {
	name, seg  string
	addr, size uint64
	offset     uint32
}

type segment struct {
	name                        string
	addr, memsz, offset, filesz uint64
	sections                    []section
}

func (f fixture) addrs() (uint64, uint64) {
	if f.is64 {
		return textAddr64, dataAddr64
	}
	return textAddr32, dataAddr32
}

func (f fixture) ptrSize() int {
	if f.is64 {
		return 8
	}
	return 4
}

func (f fixture) build(t *testing.T) built {
	t.Helper()

	textAddr, dataAddr := f.addrs()
	b := built{
		data:      make([]byte, fixtureSize),
		classOffs: make(map[string]uint64),
		catOffs:   make(map[string]uint64),
		textAddr:  textAddr,
		dataAddr:  dataAddr,
	}
	le := binary.LittleEndian

	// __objc_classname
	cur := classNameOff
	for _, name := range f.classNames {
		b.classOffs[name] = uint64(cur)
		cur += copy(b.data[cur:], name)
		b.data[cur] = 0
		cur++
	}
	b.classTable = b.data[classNameOff:cur]
	if cur > catNameOff {
		t.Fatalf("class names overflow into category names")
	}

	// category names, category_t records and __objc_catlist
	ptr := f.ptrSize()
	putPtr := func(off int, v uint64) {
		if f.is64 {
			le.PutUint64(b.data[off:], v)
		} else {
			le.PutUint32(b.data[off:], uint32(v))
		}
	}
	nameCur := catNameOff
	for i, name := range f.categories {
		b.catOffs[name] = uint64(nameCur)
		nameAddr := textAddr + uint64(nameCur-textFileOff)
		nameCur += copy(b.data[nameCur:], name)
		b.data[nameCur] = 0
		nameCur++

		recOff := catRecordsOff + i*catRecordSize
		putPtr(recOff, nameAddr)
		putPtr(catListOff+i*ptr, dataAddr+uint64(recOff-dataFileOff))
	}
	if nameCur > textFileSize {
		t.Fatalf("category names overflow __TEXT")
	}
	for i, raw := range f.extraPtrs {
		putPtr(catListOff+(len(f.categories)+i)*ptr, raw)
	}
	catListSize := uint64((len(f.categories) + len(f.extraPtrs)) * ptr)

	var segs []segment
	if f.is64 {
		segs = append(segs, segment{name: "__PAGEZERO", addr: 0, memsz: textAddr64})
	}
	segs = append(segs,
		segment{
			name: "__TEXT", addr: textAddr, memsz: textFileSize, offset: textFileOff, filesz: textFileSize,
			sections: []section{
				{name: ClassNameSection, seg: "__TEXT", addr: textAddr + classNameOff, size: uint64(len(b.classTable)), offset: classNameOff},
			},
		},
		segment{
			name: "__DATA", addr: dataAddr, memsz: dataFileSize, offset: dataFileOff, filesz: dataFileSize,
			sections: []section{
				{name: CategoryListSection, seg: "__DATA", addr: dataAddr, size: catListSize, offset: catListOff},
				{name: "__objc_const", seg: "__DATA", addr: dataAddr + (catRecordsOff - dataFileOff), size: uint64(len(f.categories) * catRecordSize), offset: catRecordsOff},
			},
		},
	)

	f.writeHeader(b.data, segs)

	return b
}

func putName(b []byte, name string) {
	var n [16]byte
	copy(n[:], name)
	copy(b, n[:])
}

func (f fixture) writeHeader(dat []byte, segs []segment) {
	le := binary.LittleEndian

	hdrSize := 28
	segSize, sectSize := segCmdSize32, sectSize32
	magic := uint32(0xfeedface)
	if f.is64 {
		hdrSize, segSize, sectSize = 32, segCmdSize64, sectSize64
		magic = 0xfeedfacf
	}

	var sizeofcmds int
	for _, seg := range segs {
		sizeofcmds += segSize + len(seg.sections)*sectSize
	}

	le.PutUint32(dat[0:], magic)
	le.PutUint32(dat[4:], f.cpu)
	le.PutUint32(dat[8:], 0)
	le.PutUint32(dat[12:], mhExecute)
	le.PutUint32(dat[16:], uint32(len(segs)))
	le.PutUint32(dat[20:], uint32(sizeofcmds))
	le.PutUint32(dat[24:], 0)

	off := hdrSize
	for _, seg := range segs {
		cmdSize := segSize + len(seg.sections)*sectSize
		c := dat[off:]
		if f.is64 {
			le.PutUint32(c[0:], lcSegment64)
			le.PutUint32(c[4:], uint32(cmdSize))
			putName(c[8:], seg.name)
			le.PutUint64(c[24:], seg.addr)
			le.PutUint64(c[32:], seg.memsz)
			le.PutUint64(c[40:], seg.offset)
			le.PutUint64(c[48:], seg.filesz)
			le.PutUint32(c[56:], 7) // maxprot
			le.PutUint32(c[60:], 7) // initprot
			le.PutUint32(c[64:], uint32(len(seg.sections)))
			le.PutUint32(c[68:], 0)
		} else {
			le.PutUint32(c[0:], lcSegment)
			le.PutUint32(c[4:], uint32(cmdSize))
			putName(c[8:], seg.name)
			le.PutUint32(c[24:], uint32(seg.addr))
			le.PutUint32(c[28:], uint32(seg.memsz))
			le.PutUint32(c[32:], uint32(seg.offset))
			le.PutUint32(c[36:], uint32(seg.filesz))
			le.PutUint32(c[40:], 7)
			le.PutUint32(c[44:], 7)
			le.PutUint32(c[48:], uint32(len(seg.sections)))
			le.PutUint32(c[52:], 0)
		}
		s := c[segSize:]
		for _, sec := range seg.sections {
			putName(s[0:], sec.name)
			putName(s[16:], sec.seg)
			if f.is64 {
				le.PutUint64(s[32:], sec.addr)
				le.PutUint64(s[40:], sec.size)
				le.PutUint32(s[48:], sec.offset)
			} else {
				le.PutUint32(s[32:], uint32(sec.addr))
				le.PutUint32(s[36:], uint32(sec.size))
				le.PutUint32(s[40:], sec.offset)
			}
			s = s[sectSize:]
		}
		off += cmdSize
	}
}

// fatSlice is one image of a universal fixture.
type fatSlice struct {
	cpu  uint32
	data []byte
}

const fatAlign = 0x1000

// buildFat wraps the images in a universal (0xcafebabe) container and returns the
// file plus the offset of each image.
func buildFat(slices ...fatSlice) ([]byte, []uint64) {
	be := binary.BigEndian

	offs := make([]uint64, len(slices))
	size := uint64(fatAlign)
	for i, s := range slices {
		offs[i] = size
		size += (uint64(len(s.data)) + fatAlign - 1) &^ (fatAlign - 1)
	}

	dat := make([]byte, size)
	be.PutUint32(dat[0:], 0xcafebabe)
	be.PutUint32(dat[4:], uint32(len(slices)))
	for i, s := range slices {
		ent := dat[8+i*fatArchSize:]
		be.PutUint32(ent[0:], s.cpu)
		be.PutUint32(ent[4:], 0)
		be.PutUint32(ent[8:], uint32(offs[i]))
		be.PutUint32(ent[12:], uint32(len(s.data)))
		be.PutUint32(ent[16:], 12)
		copy(dat[offs[i]:], s.data)
	}
	return dat, offs
}

func writeFixture(t *testing.T, dat []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture")
	if err := os.WriteFile(path, dat, 0o755); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}
