package objcpatch

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"strings"
)

// Alphabet is the set of bytes random names are drawn from.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// A Renamer produces the replacement for an Objective-C name.
//
// The returned name always has the same length as the input. ok is false when the
// name should be left alone.
type Renamer interface {
	Rename(name string) (renamed string, ok bool)
}

// RandomRenamer replaces every name with a random alphanumeric string.
type RandomRenamer struct {
	rng *rand.Rand
}

// NewRandomRenamer returns a RandomRenamer seeded with seed, or with a random seed if
// seed is 0.
func NewRandomRenamer(seed uint64) *RandomRenamer {
	if seed == 0 {
		var b [8]byte
		if _, err := crand.Read(b[:]); err == nil {
			seed = binary.LittleEndian.Uint64(b[:])
		}
	}
	return &RandomRenamer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *RandomRenamer) Rename(name string) (string, bool) {
	b := make([]byte, len(name))
	for i := range b {
		b[i] = Alphabet[r.rng.IntN(len(Alphabet))]
	}
	return string(b), true
}

// ReplaceRenamer substitutes every non-overlapping occurrence of Pattern, left to right.
type ReplaceRenamer struct {
	Pattern     string
	Replacement string
}

func NewReplaceRenamer(pattern, replacement string) *ReplaceRenamer {
	return &ReplaceRenamer{Pattern: pattern, Replacement: replacement}
}

func (r *ReplaceRenamer) Rename(name string) (string, bool) {
	if r.Pattern == "" || !strings.Contains(name, r.Pattern) {
		return name, false
	}
	return strings.ReplaceAll(name, r.Pattern, r.Replacement), true
}

// NewRenamer picks the renamer matching the plan's mode.
func NewRenamer(p *Plan) Renamer {
	if p.ReplaceMode() {
		return NewReplaceRenamer(p.Pattern, p.Replacement)
	}
	return NewRandomRenamer(p.Seed)
}
