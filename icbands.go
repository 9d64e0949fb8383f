// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"strings"

	"github.com/gopack200/unpack200/internal/bitio"
)

// IcTuple is one inner-class entry (spec §3 "IcTuple"). C2/N may be
// null (predicted from C by splitting on '$') rather than explicit.
type IcTuple struct {
	C, F       string
	C2         *string
	N          *string
	CIndex     uint32
	C2Index    uint32
	NIndex     uint32
	Flags      uint32
	Predicted  bool
}

// OuterName returns C2 if explicit, else the predicted outer name.
func (t *IcTuple) OuterName() string {
	if t.C2 != nil {
		return *t.C2
	}
	o, _ := predictICNames(t.C)
	return o
}

// SimpleName returns N if explicit, else the predicted simple name.
func (t *IcTuple) SimpleName() string {
	if t.N != nil {
		return *t.N
	}
	_, s := predictICNames(t.C)
	return s
}

// IsAnonymous reports whether the simple name is entirely digits (spec
// §3 "A tuple is anonymous if its simple name is all digits").
func (t *IcTuple) IsAnonymous() bool {
	s := t.SimpleName()
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// predictICNames splits a full binary name on its last '$' to derive the
// outer class name and the simple (inner) name (spec §3).
func predictICNames(full string) (outer, simple string) {
	i := strings.LastIndexByte(full, '$')
	if i < 0 {
		return full, full
	}
	return full[:i], full[i+1:]
}

// DecodeICBands decodes the global inner-class tuple table (spec §3,
// §4.7). Each tuple's C is a class reference; F is a flags word; C2/N are
// present only when bit 0 of the tuple's flags word says they were sent
// explicitly rather than derived.
func DecodeICBands(r *bitio.Reader, bh *bandHeaders, count uint32, cp *ConstantPool) ([]IcTuple, error) {
	if count == 0 {
		return nil, nil
	}
	cIdx, err := decodeUint32Bank(r, bh, count)
	if err != nil {
		return nil, newErr(KindInconsistent, "ic.c", r.Pos(), err)
	}
	flags, err := decodeUint32Bank(r, bh, count)
	if err != nil {
		return nil, newErr(KindInconsistent, "ic.f", r.Pos(), err)
	}
	// Bit 0 of each flag word marks "outer/name sent explicitly"; the
	// remainder is the real access-flags payload (spec §3 "F flags").
	nSent := 0
	for _, f := range flags {
		if f&0x1 != 0 {
			nSent++
		}
	}
	c2Idx, err := decodeUint32Bank(r, bh, uint32(nSent))
	if err != nil {
		return nil, newErr(KindInconsistent, "ic.c2", r.Pos(), err)
	}
	nIdx, err := decodeUint32Bank(r, bh, uint32(nSent))
	if err != nil {
		return nil, newErr(KindInconsistent, "ic.n", r.Pos(), err)
	}

	out := make([]IcTuple, count)
	si := 0
	for i := range out {
		if int(cIdx[i]) >= len(cp.Class) {
			return nil, newErr(KindOutOfRange, "ic.c", r.Pos(), nil)
		}
		cname, err := cp.ClassName(cIdx[i])
		if err != nil {
			return nil, err
		}
		t := IcTuple{C: cname, CIndex: cIdx[i], Flags: flags[i] >> 1}
		if flags[i]&0x1 != 0 {
			if int(c2Idx[si]) >= len(cp.Class) || int(nIdx[si]) >= len(cp.UTF8) {
				return nil, newErr(KindOutOfRange, "ic.c2/n", r.Pos(), nil)
			}
			c2name, err := cp.ClassName(c2Idx[si])
			if err != nil {
				return nil, err
			}
			nname := cp.UTF8[nIdx[si]]
			t.C2, t.N = &c2name, &nname
			t.C2Index, t.NIndex = c2Idx[si], nIdx[si]
			si++
		} else {
			t.Predicted = true
		}
		out[i] = t
	}
	return out, nil
}

// RelevantICTuples returns the tuples whose C or predicted/explicit
// outer component mentions className (spec §4.7 "intersect the global
// relevant-IC list... with the per-class local IC").
func RelevantICTuples(all []IcTuple, className string) []IcTuple {
	var out []IcTuple
	for _, t := range all {
		if t.C == className || t.OuterName() == className {
			out = append(out, t)
		}
	}
	return out
}
