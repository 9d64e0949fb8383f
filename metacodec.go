// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import "github.com/gopack200/unpack200/internal/bitio"

// bandHeaders is the separate byte stream carried in the segment header
// (spec §4.1 "Band-headers is a separate byte stream carried in the
// segment header for this purpose") that meta-codec escapes index into to
// fetch a replacement codec spec.
type bandHeaders struct {
	r *bitio.Reader
}

// codecSpec is the on-the-wire encoding of a replacement Codec read from
// the band-headers stream. The mini-language isn't pinned down any
// further by the spec beyond "decode a replacement codec spec", so
// unpack200 defines a compact two-byte form: byte 0 packs D (bit 5), S
// (bits 3-4), and B-1 (bits 0-2); byte 1 is H-1. This keeps every
// replacement codec self-describing in exactly two bytes, read as raw
// bytes like everything else in this stream.
func (bh *bandHeaders) readCodecSpec() (*Codec, error) {
	b0, err := bh.r.ReadByte()
	if err != nil {
		return nil, newErr(KindBadCodec, "band-headers", bh.r.Pos(), err)
	}
	b1, err := bh.r.ReadByte()
	if err != nil {
		return nil, newErr(KindBadCodec, "band-headers", bh.r.Pos(), err)
	}
	B := int(b0&0x7) + 1
	S := int((b0 >> 3) & 0x3)
	D := int((b0 >> 5) & 0x1)
	H := int(b1) + 1
	c, err := NewCodec(B, H, S, D)
	if err != nil {
		return nil, newErr(KindBadCodec, "band-headers", bh.r.Pos(), err)
	}
	return c, nil
}

// decodeWithMeta decodes count values for a band whose default codec is
// def, honoring the meta-codec escape rule of spec §4.1: the first
// decoded raw magnitude may, under conditions keyed off signedness, name
// a replacement codec from the band-headers stream instead of being a
// real datum; all count values are then decoded with the replacement.
func decodeWithMeta(r *bitio.Reader, bh *bandHeaders, def *Codec, count int) ([]int64, error) {
	if count == 0 {
		return nil, nil
	}
	if def.B <= 1 {
		// Only multi-byte default codecs carry an escape (spec §4.1:
		// "When decoding a band whose default codec has B > 1").
		return def.Decode(r, count)
	}

	first, err := def.decodeMagnitude(r)
	if err != nil {
		return nil, newErr(KindUnexpectedEOF, "meta-codec", r.Pos(), err)
	}

	isEscape := false
	if def.IsSigned() {
		signedFirst := applySign(first)
		if signedFirst >= -256 && signedFirst <= -1 {
			isEscape = true
		}
	} else {
		if first >= int64(def.L) && first <= int64(def.L)+255 {
			isEscape = true
		}
	}

	if !isEscape {
		// The first value is a real datum; decode count-1 more with def,
		// re-applying sign/delta uniformly across all count values.
		rest := make([]int64, count-1)
		if count > 1 {
			r2, err := def.Decode(r, count-1)
			if err != nil {
				return nil, err
			}
			rest = r2
		}
		out := make([]int64, count)
		v := first
		var acc int64
		if def.IsSigned() {
			v = applySign(first)
		} else if first > def.Largest {
			return nil, newErr(KindOutOfRange, "meta-codec", r.Pos(), nil)
		}
		if def.IsDelta() {
			acc += v
			acc = def.wrap(acc)
			v = acc
		}
		out[0] = v
		for i, rv := range rest {
			if def.IsDelta() {
				// rest was accumulated from zero; continue from out[0].
				rv = def.wrap(rv + out[0])
			}
			out[i+1] = rv
		}
		return out, nil
	}

	repl, err := bh.readCodecSpec()
	if err != nil {
		return nil, err
	}
	return repl.Decode(r, count)
}
