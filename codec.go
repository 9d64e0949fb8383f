// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"math"

	"github.com/gopack200/unpack200/internal/bitio"
)

// Codec is the immutable BHSD parameter quadruple describing one
// variable-length integer encoding (spec §3 "Codec (BHSD)").
type Codec struct {
	B, H, S, D int

	// L is the derived "low continuation" base: L = 256 - H.
	L int
	// Smallest and Largest bound the codec's representable range.
	Smallest int64
	Largest  int64
	// Cardinality is Largest-Smallest+1, used for delta wraparound.
	Cardinality int64
}

// IsSigned reports whether decoded magnitudes are mapped through the
// odd-negative/even-positive rule (spec §4.1).
func (c *Codec) IsSigned() bool { return c.S != 0 }

// IsDelta reports whether decoded values accumulate against a running
// total seeded at zero.
func (c *Codec) IsDelta() bool { return c.D != 0 }

// NewCodec validates and constructs a Codec. B must be in [1,5] and H in
// [1,256] (spec §3 invariant).
func NewCodec(B, H, S, D int) (*Codec, error) {
	if B < 1 || B > 5 {
		return nil, newErr(KindBadCodec, "codec", 0, errBadB)
	}
	if H < 1 || H > 256 {
		return nil, newErr(KindBadCodec, "codec", 0, errBadH)
	}
	c := &Codec{B: B, H: H, S: S, D: D, L: 256 - H}
	// The final byte of a B-byte coding is unconditionally taken in full
	// (0..255), not restricted to the low L values, so its position
	// contributes a full base-256 digit rather than another base-L one.
	card := int64(256)
	for i := 0; i < B-1; i++ {
		card *= int64(c.L)
	}
	c.Cardinality = card
	if c.IsSigned() {
		c.Smallest = -(card / 2)
		c.Largest = card/2 - 1
	} else {
		c.Smallest = 0
		c.Largest = card - 1
	}
	return c, nil
}

// mustCodec panics only at package init for the fixed named codecs; all
// user-facing construction goes through NewCodec.
func mustCodec(B, H, S, D int) *Codec {
	c, err := NewCodec(B, H, S, D)
	if err != nil {
		panic(err)
	}
	return c
}

// Named codecs (spec §4.1). Values match the canonical Pack200 codec
// table: BYTE1 is a raw unsigned byte, CHAR3 a 3-byte unsigned codec
// for the UTF-8 bank's characters, UNSIGNED5/UDELTA5/SIGNED5/DELTA5 the
// general-purpose 5-byte family (H=64 balances 1-byte-common-case density
// against worst-case 5-byte span), and BCI5/BRANCH5 the bytecode-index
// and signed-branch 5-byte codecs (H=4, favoring very small deltas).
var (
	BYTE1     = mustCodec(1, 256, 0, 0)
	CHAR3     = mustCodec(3, 128, 0, 0)
	UNSIGNED5 = mustCodec(5, 64, 0, 0)
	UDELTA5   = mustCodec(5, 64, 0, 1)
	SIGNED5   = mustCodec(5, 64, 1, 0)
	DELTA5    = mustCodec(5, 64, 1, 1)
	BCI5      = mustCodec(5, 4, 0, 0)
	BRANCH5   = mustCodec(5, 4, 1, 0)
)

var (
	errBadB = errKindOnly("B must be in [1,5]")
	errBadH = errKindOnly("H must be in [1,256]")
)

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
func errKindOnly(s string) error  { return simpleErr(s) }

// decodeMagnitude reads one raw (pre-sign, pre-delta) unsigned magnitude
// using the mixed-radix continuation scheme spec §4.1 describes: bytes in
// [0,L) at any non-final position terminate the numeral; bytes in [L,256)
// carry a continuation digit in [0,H) and recurse; the Bth byte, if
// reached, is always final and contributes its full 0..255 value.
func (c *Codec) decodeMagnitude(r *bitio.Reader) (int64, error) {
	return c.decodeMagnitudeAt(r, c.B)
}

func (c *Codec) decodeMagnitudeAt(r *bitio.Reader, remaining int) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if remaining == 1 {
		return int64(b), nil
	}
	if int(b) < c.L {
		return int64(b), nil
	}
	rest, err := c.decodeMagnitudeAt(r, remaining-1)
	if err != nil {
		return 0, err
	}
	return int64(int(b)-c.L) + int64(c.L)*rest, nil
}

// applySign maps a raw unsigned magnitude to a signed value per spec
// §4.1: odd values are negative (-((n+1)/2)), even values are positive
// (n/2).
func applySign(raw int64) int64 {
	if raw%2 != 0 {
		return -((raw + 1) / 2)
	}
	return raw / 2
}

// wrap folds v into [c.Smallest, c.Largest] using cardinality modular
// arithmetic (spec §4.1 "wrap-around... uses cardinality modular
// arithmetic").
func (c *Codec) wrap(v int64) int64 {
	if c.Cardinality == 0 {
		return v
	}
	m := ((v-c.Smallest)%c.Cardinality + c.Cardinality) % c.Cardinality
	return m + c.Smallest
}

// Decode decodes count integers using this codec as the outright (no
// meta-codec override) decoding rule, applying sign and delta per the
// codec's parameters.
func (c *Codec) Decode(r *bitio.Reader, count int) ([]int64, error) {
	out := make([]int64, count)
	var acc int64
	for i := 0; i < count; i++ {
		raw, err := c.decodeMagnitude(r)
		if err != nil {
			return nil, newErr(KindUnexpectedEOF, "codec", r.Pos(), err)
		}
		v := raw
		if c.IsSigned() {
			v = applySign(raw)
		} else if raw > c.Largest {
			return nil, newErr(KindOutOfRange, "codec", r.Pos(), nil)
		}
		if c.IsDelta() {
			acc += v
			acc = c.wrap(acc)
			v = acc
		}
		out[i] = v
	}
	return out, nil
}

// Float32FromBits reinterprets a decoded int's low 32 bits as an IEEE-754
// float (spec §4.3 "Int, Float... bit-reinterpreted for float").
func Float32FromBits(v int64) float32 {
	return math.Float32frombits(uint32(v))
}

// CombineHiLo recombines a hi/lo 32-bit pair into a 64-bit value (spec
// §4.3 "Long, Double... recombined (hi<<32 | lo & 0xFFFFFFFF)").
func CombineHiLo(hi, lo int64) int64 {
	return (hi << 32) | (lo & 0xFFFFFFFF)
}

// Float32ToBits and Float64ToBits are the class-file assembler's
// inverse of Float32FromBits/float64FromBits, used when re-serializing
// a decoded constant into its class-file IEEE-754 bit pattern.
func Float32ToBits(f float32) uint32 { return math.Float32bits(f) }

// Float64ToBits returns v's IEEE-754 bit pattern.
func Float64ToBits(v float64) uint64 { return math.Float64bits(v) }
