package objcpatch

import (
	"encoding/binary"
	"fmt"

	"github.com/blacktop/go-macho/types"
)

const (
	magicFat64 = 0xcafebabf

	fatHeaderSize  = 8
	fatArchSize    = 20
	fatArch64Size  = 32
	maxFatArchs    = 128
	machoMagicSize = 4
)

// fatArch is one entry of a universal header.
type fatArch struct {
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Offset uint64
	Size   uint64
}

func (a fatArch) String() string {
	return fmt.Sprintf("%s (offset: %d, size: %d)", a.CPU, a.Offset, a.Size)
}

// isThin reports whether dat starts with a 32 or 64-bit Mach-O header in either byte order.
func isThin(dat []byte) bool {
	if len(dat) < machoMagicSize {
		return false
	}
	switch types.Magic(binary.LittleEndian.Uint32(dat)) {
	case types.Magic32, types.Magic64:
		return true
	}
	switch types.Magic(binary.BigEndian.Uint32(dat)) {
	case types.Magic32, types.Magic64:
		return true
	}
	return false
}

// readFatHeader parses the universal header at the start of dat.
//
// ok is false when dat does not start with a universal magic. Universal headers are
// always big endian.
func readFatHeader(dat []byte) (archs []fatArch, ok bool, err error) {
	if len(dat) < fatHeaderSize {
		return nil, false, nil
	}
	magic := binary.BigEndian.Uint32(dat)
	var entSize int
	switch magic {
	case uint32(types.MagicFat):
		entSize = fatArchSize
	case magicFat64:
		entSize = fatArch64Size
	default:
		return nil, false, nil
	}

	narch := binary.BigEndian.Uint32(dat[4:])
	if narch == 0 {
		return nil, true, fmt.Errorf("universal header has no architectures")
	}
	if narch > maxFatArchs {
		return nil, true, fmt.Errorf("universal header has too many architectures (%d)", narch)
	}
	if uint64(len(dat)) < fatHeaderSize+uint64(narch)*uint64(entSize) {
		return nil, true, fmt.Errorf("universal header is truncated")
	}

	for i := 0; i < int(narch); i++ {
		ent := dat[fatHeaderSize+i*entSize:]
		a := fatArch{
			CPU:    types.CPU(binary.BigEndian.Uint32(ent[0:])),
			SubCPU: types.CPUSubtype(binary.BigEndian.Uint32(ent[4:])),
		}
		if magic == magicFat64 {
			a.Offset = binary.BigEndian.Uint64(ent[8:])
			a.Size = binary.BigEndian.Uint64(ent[16:])
		} else {
			a.Offset = uint64(binary.BigEndian.Uint32(ent[8:]))
			a.Size = uint64(binary.BigEndian.Uint32(ent[12:]))
		}
		archs = append(archs, a)
	}

	return archs, true, nil
}
