// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"encoding/binary"
	"strings"
)

// JVM constant-pool tags (class-file wire format, not a Pack200
// concept): the assembler's only place that needs them.
const (
	tagUTF8    = 1
	tagInt     = 3
	tagFloat   = 4
	tagLong    = 5
	tagDouble  = 6
	tagClass   = 7
	tagString  = 8
	tagField   = 9
	tagMethod  = 10
	tagIMethod = 11
	tagNameType = 12
)

// classPoolBuilder accumulates one class's constant pool on demand,
// memoizing every resolved entry so repeated references collapse to a
// single slot (spec §4.3 "Deduplication during class-file assembly").
type classPoolBuilder struct {
	cp      *ConstantPool
	entries [][]byte
	next    uint16
	memo    map[string]uint16
}

func newClassPoolBuilder(cp *ConstantPool) *classPoolBuilder {
	return &classPoolBuilder{cp: cp, next: 1, memo: make(map[string]uint16)}
}

func (b *classPoolBuilder) addRaw(key string, raw []byte, wide bool) uint16 {
	if v, ok := b.memo[key]; ok {
		return v
	}
	idx := b.next
	b.entries = append(b.entries, raw)
	if wide {
		b.next += 2
	} else {
		b.next++
	}
	b.memo[key] = idx
	return idx
}

func u2(v uint16) []byte { var b [2]byte; binary.BigEndian.PutUint16(b[:], v); return b[:] }
func u4(v uint32) []byte { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); return b[:] }

func (b *classPoolBuilder) utf8(s string) uint16 {
	raw := append([]byte{tagUTF8}, u2(uint16(len(s)))...)
	raw = append(raw, []byte(s)...)
	return b.addRaw("utf8:"+s, raw, false)
}

func (b *classPoolBuilder) classByName(name string) uint16 {
	key := "class:" + name
	if v, ok := b.memo[key]; ok {
		return v
	}
	ni := b.utf8(name)
	raw := append([]byte{tagClass}, u2(ni)...)
	return b.addRaw(key, raw, false)
}

func (b *classPoolBuilder) nameAndType(name, descr string) uint16 {
	key := "nt:" + name + "\x00" + descr
	if v, ok := b.memo[key]; ok {
		return v
	}
	ni, di := b.utf8(name), b.utf8(descr)
	raw := append([]byte{tagNameType}, append(u2(ni), u2(di)...)...)
	return b.addRaw(key, raw, false)
}

func (b *classPoolBuilder) stringConst(s string) uint16 {
	key := "str:" + s
	if v, ok := b.memo[key]; ok {
		return v
	}
	ui := b.utf8(s)
	raw := append([]byte{tagString}, u2(ui)...)
	return b.addRaw(key, raw, false)
}

func (b *classPoolBuilder) intConst(v int32) uint16 {
	key := "int:" + string(u4(uint32(v)))
	raw := append([]byte{tagInt}, u4(uint32(v))...)
	return b.addRaw(key, raw, false)
}

func (b *classPoolBuilder) floatConst(v float32) uint16 {
	bits := Float32ToBits(v)
	key := "flt:" + string(u4(bits))
	raw := append([]byte{tagFloat}, u4(bits)...)
	return b.addRaw(key, raw, false)
}

func (b *classPoolBuilder) longConst(v int64) uint16 {
	key := "long:" + string(u4(uint32(v>>32))) + string(u4(uint32(v)))
	raw := append([]byte{tagLong}, append(u4(uint32(v>>32)), u4(uint32(v))...)...)
	return b.addRaw(key, raw, true)
}

func (b *classPoolBuilder) doubleConst(v float64) uint16 {
	bits := Float64ToBits(v)
	key := "dbl:" + string(u4(uint32(bits>>32))) + string(u4(uint32(bits)))
	raw := append([]byte{tagDouble}, append(u4(uint32(bits>>32)), u4(uint32(bits))...)...)
	return b.addRaw(key, raw, true)
}

func (b *classPoolBuilder) ref(tag byte, className, name, descr string) uint16 {
	key := "ref:" + string(tag) + ":" + className + "\x00" + name + "\x00" + descr
	if v, ok := b.memo[key]; ok {
		return v
	}
	ci := b.classByName(className)
	nti := b.nameAndType(name, descr)
	raw := append([]byte{tag}, append(u2(ci), u2(nti)...)...)
	return b.addRaw(key, raw, false)
}

// Resolve maps any fabricated CPEntryRef to its final per-class pool
// index, materializing whatever low-level entries (Utf8, NameAndType,
// Class) the high-level one requires.
func (b *classPoolBuilder) Resolve(ref CPEntryRef) uint16 {
	cp := b.cp
	switch ref.Pool {
	case SPUTF8:
		if int(ref.Index) >= len(cp.UTF8) {
			return 0
		}
		return b.utf8(cp.UTF8[ref.Index])
	case SPInt:
		if int(ref.Index) >= len(cp.Int) {
			return 0
		}
		return b.intConst(cp.Int[ref.Index])
	case SPFloat:
		if int(ref.Index) >= len(cp.Float) {
			return 0
		}
		return b.floatConst(cp.Float[ref.Index])
	case SPLong:
		if int(ref.Index) >= len(cp.Long) {
			return 0
		}
		return b.longConst(cp.Long[ref.Index])
	case SPDouble:
		if int(ref.Index) >= len(cp.Double) {
			return 0
		}
		return b.doubleConst(cp.Double[ref.Index])
	case SPStringRef:
		if int(ref.Index) >= len(cp.StringRef) {
			return 0
		}
		utfIdx := cp.StringRef[ref.Index]
		if int(utfIdx) >= len(cp.UTF8) {
			return 0
		}
		return b.stringConst(cp.UTF8[utfIdx])
	case SPClass:
		name, err := cp.ClassName(ref.Index)
		if err != nil {
			return 0
		}
		return b.classByName(name)
	case SPSignature:
		if int(ref.Index) >= len(cp.Signature) {
			return 0
		}
		form, err := resolveSignatureForm(cp, cp.Signature[ref.Index])
		if err != nil {
			return 0
		}
		return b.utf8(form)
	case SPDescriptor:
		name, descr, err := descriptorString(cp, ref.Index)
		if err != nil {
			return 0
		}
		return b.nameAndType(name, descr)
	case SPFieldRef, SPMethodRef, SPIMethodRef:
		var refs []CPRef
		var tag byte
		switch ref.Pool {
		case SPFieldRef:
			refs, tag = cp.FieldRef, tagField
		case SPMethodRef:
			refs, tag = cp.MethodRef, tagMethod
		default:
			refs, tag = cp.IMethodRef, tagIMethod
		}
		if int(ref.Index) >= len(refs) {
			return 0
		}
		r := refs[ref.Index]
		className, err := cp.ClassName(r.ClassIndex)
		if err != nil {
			return 0
		}
		name, descr, err := descriptorString(cp, r.DescriptorIndex)
		if err != nil {
			return 0
		}
		return b.ref(tag, className, name, descr)
	default:
		return 0
	}
}

// finish returns the serialized constant_pool_count + entries, ready to
// follow the class-file magic and version fields.
func (b *classPoolBuilder) finish() []byte {
	out := u2(b.next)
	for _, e := range b.entries {
		out = append(out, e...)
	}
	return out
}

// sourceFileName infers a SourceFile attribute value from a class's
// binary name when the source segment marked SourceFile present but
// transmitted no explicit band (spec §4.6 "SourceFile inference"):
// strip the package, keep the part before the first '$' (the top-level
// class, however deeply nested), and append ".java".
func sourceFileName(className string) string {
	simple := className
	if i := strings.LastIndexByte(simple, '/'); i >= 0 {
		simple = simple[i+1:]
	}
	if i := strings.IndexByte(simple, '$'); i >= 0 {
		simple = simple[:i]
	}
	return simple + ".java"
}

// assembleAttribute serializes one AttrInstance into a class-file
// attribute_info entry (name_index + length + info).
func assembleAttribute(b *classPoolBuilder, a AttrInstance) []byte {
	name := b.utf8(a.Layout.Name)
	var info []byte

	switch {
	case a.New != nil:
		info = a.New.Render(b.Resolve)

	case a.Code != nil:
		info = assembleCode(b, a.Code)

	case a.ConstValue != nil:
		info = u2(b.Resolve(*a.ConstValue))

	case a.Exceptions != nil:
		info = u2(uint16(len(a.Exceptions)))
		for _, e := range a.Exceptions {
			info = append(info, u2(b.Resolve(e))...)
		}

	case a.EnclosingClass != nil:
		var methodIdx uint16
		if a.EnclosingMethod != nil {
			methodIdx = b.Resolve(*a.EnclosingMethod)
		}
		info = append(u2(b.Resolve(*a.EnclosingClass)), u2(methodIdx)...)

	case a.Signature != nil:
		info = u2(b.Resolve(*a.Signature))

	case a.InnerClassesMark:
		// filled in by assembleClass once the relevant IC tuples for
		// this specific class are known; see assembleInnerClasses.
		info = nil

	case a.SourceFileMark:
		info = nil // filled in by assembleClass

	case a.DeprecatedMark:
		info = nil

	default:
		info = a.RawBlob
	}

	out := append([]byte{}, u2(name)...)
	out = append(out, u4(uint32(len(info)))...)
	out = append(out, info...)
	return out
}

func assembleCode(b *classPoolBuilder, ca *CodeAttr) []byte {
	code := ca.Code.Render(b.Resolve)

	out := append([]byte{}, u2(uint16(ca.MaxStack))...)
	out = append(out, u2(uint16(ca.MaxLocals))...)
	out = append(out, u4(uint32(len(code)))...)
	out = append(out, code...)

	out = append(out, u2(uint16(len(ca.Exceptions)))...)
	for _, e := range ca.Exceptions {
		var catch uint16
		if e.CatchType != nil {
			catch = b.Resolve(*e.CatchType)
		}
		out = append(out, u2(uint16(e.StartPC))...)
		out = append(out, u2(uint16(e.EndPC))...)
		out = append(out, u2(uint16(e.HandlerPC))...)
		out = append(out, u2(catch)...)
	}

	var nested [][]byte
	if len(ca.LineNumbers) > 0 {
		nested = append(nested, assembleLineNumberTable(b, ca.LineNumbers))
	}
	if len(ca.LocalVars) > 0 {
		nested = append(nested, assembleLocalVarTable(b, "LocalVariableTable", ca.LocalVars))
	}
	if len(ca.LocalVarTypes) > 0 {
		nested = append(nested, assembleLocalVarTable(b, "LocalVariableTypeTable", ca.LocalVarTypes))
	}

	out = append(out, u2(uint16(len(nested)))...)
	for _, n := range nested {
		out = append(out, n...)
	}
	return out
}

func assembleLineNumberTable(b *classPoolBuilder, entries []LineNumberEntry) []byte {
	info := u2(uint16(len(entries)))
	for _, e := range entries {
		info = append(info, u2(uint16(e.StartPC))...)
		info = append(info, u2(uint16(e.Line))...)
	}
	name := b.utf8("LineNumberTable")
	out := append([]byte{}, u2(name)...)
	out = append(out, u4(uint32(len(info)))...)
	return append(out, info...)
}

func assembleLocalVarTable(b *classPoolBuilder, attrName string, entries []LocalVarEntry) []byte {
	info := u2(uint16(len(entries)))
	for _, e := range entries {
		info = append(info, u2(uint16(e.StartPC))...)
		info = append(info, u2(uint16(e.Length))...)
		info = append(info, u2(b.Resolve(e.NameRef))...)
		info = append(info, u2(b.Resolve(e.DescRef))...)
		info = append(info, u2(uint16(e.Slot))...)
	}
	name := b.utf8(attrName)
	out := append([]byte{}, u2(name)...)
	out = append(out, u4(uint32(len(info)))...)
	return append(out, info...)
}

// AssembleClass renders one class's full class-file bytes (spec §4.3
// "Class-file assembler"). icAll is the segment's global inner-class
// tuple table; RelevantICTuples narrows it to this class.
func AssembleClass(cp *ConstantPool, ci *ClassInfo, icAll []IcTuple) []byte {
	b := newClassPoolBuilder(cp)

	thisIdx := b.classByName(ci.Name)
	var superIdx uint16
	if ci.Super != "" {
		superIdx = b.classByName(ci.Super)
	}
	var ifaceIdx []uint16
	for _, n := range ci.Interfaces {
		ifaceIdx = append(ifaceIdx, b.classByName(n))
	}

	var fieldBytes, methodBytes [][]byte
	for _, f := range ci.Fields {
		fieldBytes = append(fieldBytes, assembleMember(b, f))
	}
	for _, m := range ci.Methods {
		methodBytes = append(methodBytes, assembleMember(b, m))
	}

	relevant := RelevantICTuples(icAll, ci.Name)
	var classAttrBytes [][]byte
	for _, a := range ci.Attributes {
		switch {
		case a.InnerClassesMark:
			classAttrBytes = append(classAttrBytes, assembleInnerClasses(b, relevant))
		case a.SourceFileMark:
			classAttrBytes = append(classAttrBytes, assembleSourceFile(b, ci.Name))
		default:
			classAttrBytes = append(classAttrBytes, assembleAttribute(b, a))
		}
	}

	pool := b.finish()

	out := append([]byte{}, 0xCA, 0xFE, 0xBA, 0xBE)
	out = append(out, u2(ci.MinorVersion)...)
	out = append(out, u2(ci.MajorVersion)...)
	out = append(out, pool...)
	out = append(out, u2(uint16(ci.Flags))...)
	out = append(out, u2(thisIdx)...)
	out = append(out, u2(superIdx)...)
	out = append(out, u2(uint16(len(ifaceIdx)))...)
	for _, idx := range ifaceIdx {
		out = append(out, u2(idx)...)
	}
	out = append(out, u2(uint16(len(fieldBytes)))...)
	for _, fb := range fieldBytes {
		out = append(out, fb...)
	}
	out = append(out, u2(uint16(len(methodBytes)))...)
	for _, mb := range methodBytes {
		out = append(out, mb...)
	}
	out = append(out, u2(uint16(len(classAttrBytes)))...)
	for _, ab := range classAttrBytes {
		out = append(out, ab...)
	}
	return out
}

func assembleMember(b *classPoolBuilder, m MemberInfo) []byte {
	nameIdx := b.utf8(m.Name)
	descrIdx := b.utf8(m.Descriptor)
	var attrBytes [][]byte
	for _, a := range m.Attributes {
		attrBytes = append(attrBytes, assembleAttribute(b, a))
	}
	out := append([]byte{}, u2(uint16(m.Flags))...)
	out = append(out, u2(nameIdx)...)
	out = append(out, u2(descrIdx)...)
	out = append(out, u2(uint16(len(attrBytes)))...)
	for _, ab := range attrBytes {
		out = append(out, ab...)
	}
	return out
}

func assembleInnerClasses(b *classPoolBuilder, tuples []IcTuple) []byte {
	info := u2(uint16(len(tuples)))
	for _, t := range tuples {
		innerIdx := b.classByName(t.C)
		var outerIdx, nameIdx uint16
		if !t.IsAnonymous() {
			if t.C2 != nil {
				outerIdx = b.classByName(*t.C2)
			} else {
				outerIdx = b.classByName(t.OuterName())
			}
		}
		if t.N != nil {
			nameIdx = b.utf8(*t.N)
		} else if !t.IsAnonymous() {
			nameIdx = b.utf8(t.SimpleName())
		}
		info = append(info, u2(innerIdx)...)
		info = append(info, u2(outerIdx)...)
		info = append(info, u2(nameIdx)...)
		info = append(info, u2(uint16(t.Flags))...)
	}
	name := b.utf8("InnerClasses")
	out := append([]byte{}, u2(name)...)
	out = append(out, u4(uint32(len(info)))...)
	return append(out, info...)
}

func assembleSourceFile(b *classPoolBuilder, className string) []byte {
	nameIdx := b.utf8("SourceFile")
	valIdx := b.utf8(sourceFileName(className))
	out := append([]byte{}, u2(nameIdx)...)
	out = append(out, u4(2)...)
	return append(out, u2(valIdx)...)
}
