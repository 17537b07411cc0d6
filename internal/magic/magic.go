package magic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

type Magic uint32

const (
	Magic32      Magic = 0xfeedface
	Magic64      Magic = 0xfeedfacf
	Cigam32      Magic = 0xcefaedfe
	Cigam64      Magic = 0xcffaedfe
	MagicFatBE   Magic = 0xcafebabe
	MagicFatLE   Magic = 0xbebafeca
	MagicFat64BE Magic = 0xcafebabf
	MagicFat64LE Magic = 0xbfbafeca
)

// ErrNotMachO is returned by IsMachO for files with an unknown magic.
var ErrNotMachO = errors.New("not a macho file")

// IsMachO reports whether the file starts with a thin or universal Mach-O magic.
func IsMachO(filePath string) (bool, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return false, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err = io.ReadFull(f, magic[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, ErrNotMachO
		}
		return false, fmt.Errorf("failed to read magic: %w", err)
	}

	switch Magic(binary.LittleEndian.Uint32(magic[:])) {
	case Magic32, Magic64, Cigam32, Cigam64, MagicFatBE, MagicFatLE, MagicFat64BE, MagicFat64LE:
		return true, nil
	default:
		return false, ErrNotMachO
	}
}
