// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"math"
	"strings"

	"github.com/gopack200/unpack200/internal/bitio"
)

// CPSignature is a method/field signature: a UTF-8 form (with class
// names stripped to 'L' placeholders) plus the class references that
// fill those placeholders (spec §4.3 "Signature").
type CPSignature struct {
	Form      string
	ClassRefs []uint32 // indices into the Class subpool
}

// CPDescriptor is a name+type pair (spec §4.3 "Descriptor").
type CPDescriptor struct {
	NameIndex uint32 // index into UTF8
	TypeIndex uint32 // index into Signature
}

// CPRef is a class+descriptor reference, shared by field/method/imethod
// refs (spec §4.3 "Field/Method/IMethod").
type CPRef struct {
	ClassIndex      uint32
	DescriptorIndex uint32
}

// ConstantPool is the decoded segment-wide constant pool: twelve
// subarrays in fixed archive order, plus running offsets mapping any
// subpool index to a segment-global index (spec §3, §4.3).
type ConstantPool struct {
	UTF8       []string
	Int        []int32
	Float      []float32
	Long       []int64
	Double     []float64
	StringRef  []uint32 // index into UTF8
	Class      []uint32 // index into UTF8
	Signature  []CPSignature
	Descriptor []CPDescriptor
	FieldRef   []CPRef
	MethodRef  []CPRef
	IMethodRef []CPRef

	offsets [12]int
}

// Subpool identifies one of the twelve constant-pool subarrays, in fixed
// archive order (spec §3).
type Subpool int

const (
	SPUTF8 Subpool = iota
	SPInt
	SPFloat
	SPLong
	SPDouble
	SPStringRef
	SPClass
	SPSignature
	SPDescriptor
	SPFieldRef
	SPMethodRef
	SPIMethodRef
	spCount
)

func (cp *ConstantPool) lens() [12]int {
	return [12]int{
		len(cp.UTF8), len(cp.Int), len(cp.Float), len(cp.Long), len(cp.Double),
		len(cp.StringRef), len(cp.Class), len(cp.Signature), len(cp.Descriptor),
		len(cp.FieldRef), len(cp.MethodRef), len(cp.IMethodRef),
	}
}

// computeOffsets fills cp.offsets with the running sum of preceding
// subpool lengths (spec §4.3 "Offsets").
func (cp *ConstantPool) computeOffsets() {
	lens := cp.lens()
	sum := 0
	for i := 0; i < int(spCount); i++ {
		cp.offsets[i] = sum
		sum += lens[i]
	}
}

// GlobalIndex maps a (subpool, local index) pair to a segment-global
// index (spec §3, §8 property 4).
func (cp *ConstantPool) GlobalIndex(s Subpool, local uint32) int {
	return cp.offsets[s] + int(local)
}

// ClassName resolves a Class subpool index to its binary name.
func (cp *ConstantPool) ClassName(classIdx uint32) (string, error) {
	if int(classIdx) >= len(cp.Class) {
		return "", newErr(KindOutOfRange, "cp.class", 0, nil)
	}
	utfIdx := cp.Class[classIdx]
	if int(utfIdx) >= len(cp.UTF8) {
		return "", newErr(KindOutOfRange, "cp.class->utf8", 0, nil)
	}
	return cp.UTF8[utfIdx], nil
}

// decodeUTF8Bank decodes the UTF-8 subpool (spec §4.3 "UTF-8"): prefix
// lengths (DELTA5), suffix lengths (UNSIGNED5, 0 = "big suffix" whose
// real length comes from an auxiliary band), and a flat character
// stream (CHAR3). Each string equals previous.substring(0,prefix) + new
// chars; the first entry is always the empty string (spec §8 property
// 3 / scenario S5).
func decodeUTF8Bank(r *bitio.Reader, bh *bandHeaders, count uint32) ([]string, error) {
	if count == 0 {
		return nil, nil
	}
	n := int(count)
	prefixes, err := decodeWithMeta(r, bh, DELTA5, n-1)
	if err != nil {
		return nil, newErr(KindInconsistent, "cp.utf8.prefix", r.Pos(), err)
	}
	suffixes, err := decodeWithMeta(r, bh, UNSIGNED5, n-1)
	if err != nil {
		return nil, newErr(KindInconsistent, "cp.utf8.suffix", r.Pos(), err)
	}

	bigSuffixes := make([]int64, n-1)
	for i, s := range suffixes {
		if s == 0 {
			bigSuffixes[i] = -1 // resolved below
		}
	}
	nBig := 0
	for _, v := range bigSuffixes {
		if v == -1 {
			nBig++
		}
	}
	if nBig > 0 {
		bigLens, err := decodeWithMeta(r, bh, UNSIGNED5, nBig)
		if err != nil {
			return nil, newErr(KindInconsistent, "cp.utf8.big_suffix", r.Pos(), err)
		}
		bi := 0
		for i := range bigSuffixes {
			if bigSuffixes[i] == -1 {
				bigSuffixes[i] = bigLens[bi]
				bi++
			} else {
				bigSuffixes[i] = suffixes[i]
			}
		}
	} else {
		copy(bigSuffixes, suffixes)
	}

	totalChars := int64(0)
	for _, s := range bigSuffixes {
		totalChars += s
	}
	chars, err := decodeWithMeta(r, bh, CHAR3, int(totalChars))
	if err != nil {
		return nil, newErr(KindInconsistent, "cp.utf8.chars", r.Pos(), err)
	}

	out := make([]string, n)
	out[0] = ""
	ci := 0
	for i := 0; i < n-1; i++ {
		prev := out[i]
		pfx := int(prefixes[i])
		if pfx < 0 || pfx > len(prev) {
			return nil, newErr(KindOutOfRange, "cp.utf8.prefix", r.Pos(), nil)
		}
		var b strings.Builder
		b.WriteString(prev[:pfx])
		nchars := int(bigSuffixes[i])
		for k := 0; k < nchars; k++ {
			b.WriteRune(rune(chars[ci]))
			ci++
		}
		out[i+1] = b.String()
	}
	return out, nil
}

func decodeIntBank(r *bitio.Reader, bh *bandHeaders, count uint32) ([]int32, error) {
	vals, err := decodeWithMeta(r, bh, UDELTA5, int(count))
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(vals))
	for i, v := range vals {
		out[i] = int32(v)
	}
	return out, nil
}

func decodeFloatBank(r *bitio.Reader, bh *bandHeaders, count uint32) ([]float32, error) {
	vals, err := decodeWithMeta(r, bh, UDELTA5, int(count))
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = Float32FromBits(v)
	}
	return out, nil
}

func decodeLongBank(r *bitio.Reader, bh *bandHeaders, count uint32) ([]int64, error) {
	hi, err := decodeWithMeta(r, bh, UDELTA5, int(count))
	if err != nil {
		return nil, err
	}
	lo, err := decodeWithMeta(r, bh, DELTA5, int(count))
	if err != nil {
		return nil, err
	}
	out := make([]int64, count)
	for i := range out {
		out[i] = CombineHiLo(hi[i], lo[i])
	}
	return out, nil
}

func decodeDoubleBank(r *bitio.Reader, bh *bandHeaders, count uint32) ([]float64, error) {
	longs, err := decodeLongBank(r, bh, count)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(longs))
	for i, v := range longs {
		out[i] = float64FromBits(v)
	}
	return out, nil
}

func decodeUint32Bank(r *bitio.Reader, bh *bandHeaders, count uint32) ([]uint32, error) {
	vals, err := decodeWithMeta(r, bh, UDELTA5, int(count))
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(vals))
	for i, v := range vals {
		if v < 0 {
			return nil, newErr(KindOutOfRange, "cp.ref", r.Pos(), nil)
		}
		out[i] = uint32(v)
	}
	return out, nil
}

// decodeSignatureBank decodes the Signature subpool (spec §4.3): a form
// index into a stripped-UTF8 band plus a flat class array filling the
// 'L' slots named by each form.
func decodeSignatureBank(r *bitio.Reader, bh *bandHeaders, count uint32, utf8 []string) ([]CPSignature, error) {
	forms, err := decodeUint32Bank(r, bh, count)
	if err != nil {
		return nil, newErr(KindInconsistent, "cp.signature.form", r.Pos(), err)
	}
	out := make([]CPSignature, count)
	totalL := 0
	formStrs := make([]string, count)
	for i, f := range forms {
		if int(f) >= len(utf8) {
			return nil, newErr(KindOutOfRange, "cp.signature.form", r.Pos(), nil)
		}
		formStrs[i] = utf8[f]
		totalL += strings.Count(formStrs[i], "L")
	}
	classes, err := decodeUint32Bank(r, bh, uint32(totalL))
	if err != nil {
		return nil, newErr(KindInconsistent, "cp.signature.classes", r.Pos(), err)
	}
	ci := 0
	for i := range out {
		nL := strings.Count(formStrs[i], "L")
		out[i] = CPSignature{Form: formStrs[i], ClassRefs: append([]uint32(nil), classes[ci:ci+nL]...)}
		ci += nL
	}
	return out, nil
}

func decodeDescriptorBank(r *bitio.Reader, bh *bandHeaders, count uint32) ([]CPDescriptor, error) {
	names, err := decodeUint32Bank(r, bh, count)
	if err != nil {
		return nil, err
	}
	types, err := decodeUint32Bank(r, bh, count)
	if err != nil {
		return nil, err
	}
	out := make([]CPDescriptor, count)
	for i := range out {
		out[i] = CPDescriptor{NameIndex: names[i], TypeIndex: types[i]}
	}
	return out, nil
}

func decodeRefBank(r *bitio.Reader, bh *bandHeaders, count uint32) ([]CPRef, error) {
	classes, err := decodeUint32Bank(r, bh, count)
	if err != nil {
		return nil, err
	}
	descrs, err := decodeUint32Bank(r, bh, count)
	if err != nil {
		return nil, err
	}
	out := make([]CPRef, count)
	for i := range out {
		out[i] = CPRef{ClassIndex: classes[i], DescriptorIndex: descrs[i]}
	}
	return out, nil
}

// DecodeConstantPool decodes all twelve subpools in fixed archive order
// and computes cross-subpool offsets (spec §4.3).
func DecodeConstantPool(r *bitio.Reader, bh *bandHeaders, counts CPCounts) (*ConstantPool, error) {
	cp := &ConstantPool{}
	var err error

	if cp.UTF8, err = decodeUTF8Bank(r, bh, counts.UTF8); err != nil {
		return nil, err
	}
	if cp.Int, err = decodeIntBank(r, bh, counts.Int); err != nil {
		return nil, err
	}
	if cp.Float, err = decodeFloatBank(r, bh, counts.Float); err != nil {
		return nil, err
	}
	if cp.Long, err = decodeLongBank(r, bh, counts.Long); err != nil {
		return nil, err
	}
	if cp.Double, err = decodeDoubleBank(r, bh, counts.Double); err != nil {
		return nil, err
	}
	if cp.StringRef, err = decodeUint32Bank(r, bh, counts.StringRef); err != nil {
		return nil, err
	}
	if cp.Class, err = decodeUint32Bank(r, bh, counts.Class); err != nil {
		return nil, err
	}
	if cp.Signature, err = decodeSignatureBank(r, bh, counts.Signature, cp.UTF8); err != nil {
		return nil, err
	}
	if cp.Descriptor, err = decodeDescriptorBank(r, bh, counts.Descriptor); err != nil {
		return nil, err
	}
	if cp.FieldRef, err = decodeRefBank(r, bh, counts.FieldRef); err != nil {
		return nil, err
	}
	if cp.MethodRef, err = decodeRefBank(r, bh, counts.MethodRef); err != nil {
		return nil, err
	}
	if cp.IMethodRef, err = decodeRefBank(r, bh, counts.InterfaceMethodRef); err != nil {
		return nil, err
	}

	for _, idx := range cp.Class {
		if int(idx) >= len(cp.UTF8) {
			return nil, newErr(KindOutOfRange, "cp.class", r.Pos(), nil)
		}
	}

	cp.computeOffsets()
	return cp, nil
}

func float64FromBits(v int64) float64 {
	return math.Float64frombits(uint64(v))
}
