// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"strings"

	"github.com/gopack200/unpack200/internal/bitio"
)

// ExceptionHandler is one entry of a Code attribute's exception table
// (spec §4.6 "Code attribute"), with its three bytecode positions
// already renumbered against the owning method's offset map.
type ExceptionHandler struct {
	StartPC, EndPC, HandlerPC int
	CatchType                 *CPEntryRef // nil means catch-all (finally)
}

// LineNumberEntry is one row of a LineNumberTable.
type LineNumberEntry struct {
	StartPC int
	Line    int
}

// LocalVarEntry is one row of a LocalVariableTable or
// LocalVariableTypeTable.
type LocalVarEntry struct {
	StartPC, Length int
	Slot            int
	NameRef         CPEntryRef
	DescRef         CPEntryRef // field descriptor or generic signature
}

// CodeAttr is the fully decoded, expanded Code attribute of one method
// (spec §4.5, §4.6).
type CodeAttr struct {
	MaxStack, MaxLocals uint32
	Code                *Code
	Exceptions          []ExceptionHandler
	LineNumbers         []LineNumberEntry
	LocalVars           []LocalVarEntry
	LocalVarTypes       []LocalVarEntry
}

// codeParams carries the per-method facts decodeCodeAttrBody needs but
// doesn't itself decode: the method's static bit and descriptor (for the
// max_locals adjustment, spec §4.6) and the segment-wide "all methods
// have Code flags" option.
type codeParams struct {
	Static          bool
	Descriptor      string
	AllCodeHasFlags bool
}

// AttrInstance is one materialized attribute attached to a class, field,
// or method (spec §4.4, §4.6). Exactly one payload field besides Layout
// is populated, selected by Layout.Name for the builtins classbands.go
// gives a fixed shape to; anything else carries a New occurrence from
// the general interpreter in newattr.go.
type AttrInstance struct {
	Layout *AttributeLayout

	New *NewAttribute

	Code              *CodeAttr
	ConstValue        *CPEntryRef
	Exceptions        []CPEntryRef
	EnclosingClass    *CPEntryRef
	EnclosingMethod   *CPEntryRef
	Signature         *CPEntryRef
	InnerClassesMark  bool
	SourceFileMark    bool
	DeprecatedMark    bool
	RawBlob           []byte
}

// MemberInfo is one field or method (spec §3 "Field/Method").
type MemberInfo struct {
	Name       string
	Descriptor string
	Flags      uint32
	Attributes []AttrInstance
}

// ClassInfo is one fully decoded class, ready for assemble.go to emit
// (spec §3 "ClassInfo").
type ClassInfo struct {
	Name, Super string
	Interfaces  []string
	Flags       uint32
	Fields      []MemberInfo
	Methods     []MemberInfo
	Attributes  []AttrInstance
	MinorVersion, MajorVersion uint16
}

// resolveSignatureForm expands a stripped-UTF8 signature form by
// substituting each 'L' placeholder with the binary name of the
// corresponding class reference, in order (spec §4.3 "Signature").
func resolveSignatureForm(cp *ConstantPool, sig CPSignature) (string, error) {
	if len(sig.ClassRefs) == 0 {
		return sig.Form, nil
	}
	var b strings.Builder
	ci := 0
	for _, r := range sig.Form {
		if r == 'L' && ci < len(sig.ClassRefs) {
			name, err := cp.ClassName(sig.ClassRefs[ci])
			if err != nil {
				return "", err
			}
			b.WriteByte('L')
			b.WriteString(name)
			b.WriteByte(';')
			ci++
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

func descriptorString(cp *ConstantPool, descrIdx uint32) (name, descr string, err error) {
	if int(descrIdx) >= len(cp.Descriptor) {
		return "", "", newErr(KindOutOfRange, "class.descr", 0, nil)
	}
	d := cp.Descriptor[descrIdx]
	if int(d.NameIndex) >= len(cp.UTF8) || int(d.TypeIndex) >= len(cp.Signature) {
		return "", "", newErr(KindOutOfRange, "class.descr", 0, nil)
	}
	name = cp.UTF8[d.NameIndex]
	descr, err = resolveSignatureForm(cp, cp.Signature[d.TypeIndex])
	return name, descr, err
}

// doubleWidthParamCount walks a method descriptor's parameter list and
// counts how many are `J`/`D` (spec §4.6 "max_locals is adjusted ... by
// the number of double-width parameters counted from the descriptor" —
// the transmitted value already reserves one slot per parameter, so
// only the extra slot each double-width parameter needs is added here).
func doubleWidthParamCount(descr string) int {
	i := strings.IndexByte(descr, '(')
	if i < 0 {
		return 0
	}
	i++
	n := 0
	for i < len(descr) && descr[i] != ')' {
		switch descr[i] {
		case 'J', 'D':
			n++
			i++
		case 'L':
			i++
			for i < len(descr) && descr[i] != ';' {
				i++
			}
			i++
		case '[':
			for i < len(descr) && descr[i] == '[' {
				i++
			}
			if i < len(descr) && descr[i] == 'L' {
				i++
				for i < len(descr) && descr[i] != ';' {
					i++
				}
			}
			i++
		default:
			i++
		}
	}
	return n
}

// classFlagsBand decodes one low (+ optional high) flag word.
func classFlagsBand(r *bitio.Reader, bh *bandHeaders, high bool) (uint32, error) {
	lo, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
	if err != nil {
		return 0, err
	}
	v := uint32(lo[0])
	if high {
		hi, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
		if err != nil {
			return 0, err
		}
		v |= uint32(hi[0]) << 16
	}
	return v, nil
}

// decodeAttributesFor walks every set bit of flags beyond the fixed
// implicit ones, materializing an AttrInstance for each, in table order
// (spec §4.6 "for every layout whose bit is set in the entity's flag
// word, ordered first by layout index").
func decodeAttributesFor(r *bitio.Reader, bh *bandHeaders, flags uint32, ctx AttrContext, table *AttrLayoutTable, cp *ConstantPool, bc *bcOffsetMap, cparams *codeParams) ([]AttrInstance, error) {
	var out []AttrInstance
	for _, al := range table.All() {
		if al.Context != ctx {
			continue
		}
		if al.BitIndex >= 32 || flags&(1<<uint(al.BitIndex)) == 0 {
			continue
		}
		inst, err := decodeOneAttr(r, bh, al, cp, bc, cparams)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

func decodeOneAttr(r *bitio.Reader, bh *bandHeaders, al *AttributeLayout, cp *ConstantPool, bc *bcOffsetMap, cparams *codeParams) (AttrInstance, error) {
	inst := AttrInstance{Layout: al}
	if al.Parsed != nil {
		na, err := ReadOccurrence(r, bh, al, bc)
		if err != nil {
			return inst, err
		}
		inst.New = na
		return inst, nil
	}

	switch al.Name {
	case "Code":
		code, err := decodeCodeAttrBody(r, bh, al, cparams)
		if err != nil {
			return inst, err
		}
		inst.Code = code

	case "ConstantValue":
		v, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
		if err != nil {
			return inst, newErr(KindInconsistent, "attr.constvalue", r.Pos(), err)
		}
		ref := CPEntryRef{Pool: SPStringRef, Index: uint32(v[0])}
		inst.ConstValue = &ref

	case "Exceptions":
		n, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
		if err != nil {
			return inst, newErr(KindInconsistent, "attr.exceptions.count", r.Pos(), err)
		}
		refs, err := decodeWithMeta(r, bh, UNSIGNED5, int(n[0]))
		if err != nil {
			return inst, newErr(KindInconsistent, "attr.exceptions", r.Pos(), err)
		}
		for _, v := range refs {
			inst.Exceptions = append(inst.Exceptions, CPEntryRef{Pool: SPClass, Index: uint32(v)})
		}

	case "InnerClasses":
		inst.InnerClassesMark = true

	case "EnclosingMethod":
		classRef, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
		if err != nil {
			return inst, newErr(KindInconsistent, "attr.enclosing.class", r.Pos(), err)
		}
		methodRef, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
		if err != nil {
			return inst, newErr(KindInconsistent, "attr.enclosing.method", r.Pos(), err)
		}
		cref := CPEntryRef{Pool: SPClass, Index: uint32(classRef[0])}
		inst.EnclosingClass = &cref
		if methodRef[0] != 0 {
			mref := CPEntryRef{Pool: SPDescriptor, Index: uint32(methodRef[0] - 1)}
			inst.EnclosingMethod = &mref
		}

	case "SourceFile":
		inst.SourceFileMark = true

	case "Signature":
		v, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
		if err != nil {
			return inst, newErr(KindInconsistent, "attr.signature", r.Pos(), err)
		}
		ref := CPEntryRef{Pool: SPUTF8, Index: uint32(v[0])}
		inst.Signature = &ref

	case "Deprecated":
		inst.DeprecatedMark = true

	case "LineNumberTable", "LocalVariableTable", "LocalVariableTypeTable",
		"AnnotationDefault", "RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations",
		"RuntimeVisibleParameterAnnotations", "RuntimeInvisibleParameterAnnotations":
		// These nest inside Code (handled directly by
		// decodeCodeAttrBody) or carry annotation payloads whose exact
		// band shape this spec leaves unstated; unpack200 transmits
		// them as a length-prefixed raw blob (see DESIGN.md).
		n, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
		if err != nil {
			return inst, newErr(KindInconsistent, "attr.blob.len", r.Pos(), err)
		}
		blob, err := decodeWithMeta(r, bh, BYTE1, int(n[0]))
		if err != nil {
			return inst, newErr(KindInconsistent, "attr.blob", r.Pos(), err)
		}
		raw := make([]byte, len(blob))
		for i, v := range blob {
			raw[i] = byte(v)
		}
		inst.RawBlob = raw

	default:
		return inst, newErr(KindUnsupportedOption, "attr."+al.Name, r.Pos(), nil)
	}
	return inst, nil
}

// decodeCodeAttrBody decodes a Code attribute: max_stack/max_locals,
// the bytecode bands (delegated to bytecode.go), the exception table,
// and any nested LineNumberTable/LocalVariable(Type)Table (spec §4.5,
// §4.6).
func decodeCodeAttrBody(r *bitio.Reader, bh *bandHeaders, al *AttributeLayout, cparams *codeParams) (*CodeAttr, error) {
	maxStack, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
	if err != nil {
		return nil, newErr(KindInconsistent, "code.max_stack", r.Pos(), err)
	}
	maxLocals, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
	if err != nil {
		return nil, newErr(KindInconsistent, "code.max_locals", r.Pos(), err)
	}

	adjLocals := uint32(maxLocals[0])
	if cparams != nil {
		if !cparams.Static {
			adjLocals++
		}
		adjLocals += uint32(doubleWidthParamCount(cparams.Descriptor))
	}

	code, err := DecodeMethodBytecode(r, bh, uint32(maxStack[0]), adjLocals)
	if err != nil {
		return nil, err
	}

	ca := &CodeAttr{MaxStack: uint32(maxStack[0]), MaxLocals: adjLocals, Code: code}

	excCount, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
	if err != nil {
		return nil, newErr(KindInconsistent, "code.exc.count", r.Pos(), err)
	}
	n := int(excCount[0])
	if n > 0 {
		starts, err := decodeWithMeta(r, bh, BCI5, n)
		if err != nil {
			return nil, newErr(KindInconsistent, "code.exc.start", r.Pos(), err)
		}
		ends, err := decodeWithMeta(r, bh, BCI5, n)
		if err != nil {
			return nil, newErr(KindInconsistent, "code.exc.end", r.Pos(), err)
		}
		handlers, err := decodeWithMeta(r, bh, BCI5, n)
		if err != nil {
			return nil, newErr(KindInconsistent, "code.exc.handler", r.Pos(), err)
		}
		catchTypes, err := decodeWithMeta(r, bh, UNSIGNED5, n)
		if err != nil {
			return nil, newErr(KindInconsistent, "code.exc.catch", r.Pos(), err)
		}
		for i := 0; i < n; i++ {
			eh := ExceptionHandler{
				StartPC:   code.RemapOffset(int(starts[i])),
				EndPC:     code.RemapOffset(int(ends[i])),
				HandlerPC: code.RemapOffset(int(handlers[i])),
			}
			if catchTypes[i] != 0 {
				ct := CPEntryRef{Pool: SPClass, Index: uint32(catchTypes[i] - 1)}
				eh.CatchType = &ct
			}
			ca.Exceptions = append(ca.Exceptions, eh)
		}
	}

	// Presence bits for the three Code-local attributes, per
	// attrdef.go's CtxCode bit assignment (LineNumberTable=0,
	// LocalVariableTable=1, LocalVariableTypeTable=2). The segment-wide
	// "all methods have Code flags" option (spec §4.6) makes every Code
	// always carry all three, skipping this band entirely.
	var flags uint32
	if cparams != nil && cparams.AllCodeHasFlags {
		flags = 0x7
	} else {
		codeFlags, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
		if err != nil {
			return nil, newErr(KindInconsistent, "code.attr_flags", r.Pos(), err)
		}
		flags = uint32(codeFlags[0])
	}

	if flags&0x1 != 0 {
		lns, err := decodeLineNumberTable(r, bh, code)
		if err != nil {
			return nil, err
		}
		ca.LineNumbers = lns
	}
	if flags&0x2 != 0 {
		lvt, err := decodeLocalVarTable(r, bh, code, false)
		if err != nil {
			return nil, err
		}
		ca.LocalVars = lvt
	}
	if flags&0x4 != 0 {
		lvtt, err := decodeLocalVarTable(r, bh, code, true)
		if err != nil {
			return nil, err
		}
		ca.LocalVarTypes = lvtt
	}

	return ca, nil
}

func decodeLineNumberTable(r *bitio.Reader, bh *bandHeaders, code *Code) ([]LineNumberEntry, error) {
	count, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
	if err != nil {
		return nil, newErr(KindInconsistent, "lnt.count", r.Pos(), err)
	}
	n := int(count[0])
	pcs, err := decodeWithMeta(r, bh, BCI5, n)
	if err != nil {
		return nil, newErr(KindInconsistent, "lnt.pc", r.Pos(), err)
	}
	lines, err := decodeWithMeta(r, bh, UDELTA5, n)
	if err != nil {
		return nil, newErr(KindInconsistent, "lnt.line", r.Pos(), err)
	}
	out := make([]LineNumberEntry, n)
	for i := range out {
		out[i] = LineNumberEntry{StartPC: code.RemapOffset(int(pcs[i])), Line: int(lines[i])}
	}
	return out, nil
}

func decodeLocalVarTable(r *bitio.Reader, bh *bandHeaders, code *Code, typeTable bool) ([]LocalVarEntry, error) {
	count, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
	if err != nil {
		return nil, newErr(KindInconsistent, "lvt.count", r.Pos(), err)
	}
	n := int(count[0])
	starts, err := decodeWithMeta(r, bh, BCI5, n)
	if err != nil {
		return nil, newErr(KindInconsistent, "lvt.start", r.Pos(), err)
	}
	lens, err := decodeWithMeta(r, bh, BRANCH5, n)
	if err != nil {
		return nil, newErr(KindInconsistent, "lvt.len", r.Pos(), err)
	}
	names, err := decodeWithMeta(r, bh, UNSIGNED5, n)
	if err != nil {
		return nil, newErr(KindInconsistent, "lvt.name", r.Pos(), err)
	}
	descrs, err := decodeWithMeta(r, bh, UNSIGNED5, n)
	if err != nil {
		return nil, newErr(KindInconsistent, "lvt.descr", r.Pos(), err)
	}
	slots, err := decodeWithMeta(r, bh, UNSIGNED5, n)
	if err != nil {
		return nil, newErr(KindInconsistent, "lvt.slot", r.Pos(), err)
	}
	descPool := SPSignature
	if !typeTable {
		descPool = SPUTF8
	}
	out := make([]LocalVarEntry, n)
	for i := range out {
		out[i] = LocalVarEntry{
			StartPC: code.RemapOffset(int(starts[i])),
			Length:  int(lens[i]),
			Slot:    int(slots[i]),
			NameRef: CPEntryRef{Pool: SPUTF8, Index: uint32(names[i])},
			DescRef: CPEntryRef{Pool: descPool, Index: uint32(descrs[i])},
		}
	}
	return out, nil
}

// DecodeClassBands decodes every class, one fully (all its bands) before
// moving to the next, rather than the real format's column-wise banding
// across the whole class set (see DESIGN.md for why this repo decodes
// classes record-wise).
func DecodeClassBands(r *bitio.Reader, bh *bandHeaders, h *SegmentHeader, cp *ConstantPool, table *AttrLayoutTable, icAll []IcTuple) ([]*ClassInfo, error) {
	n := int(h.ClassCount)
	out := make([]*ClassInfo, n)

	thisRefs, err := decodeWithMeta(r, bh, UNSIGNED5, n)
	if err != nil {
		return nil, newErr(KindInconsistent, "class.this", r.Pos(), err)
	}
	superRefs, err := decodeWithMeta(r, bh, UDELTA5, n)
	if err != nil {
		return nil, newErr(KindInconsistent, "class.super", r.Pos(), err)
	}
	ifaceCounts, err := decodeWithMeta(r, bh, UNSIGNED5, n)
	if err != nil {
		return nil, newErr(KindInconsistent, "class.iface_count", r.Pos(), err)
	}

	highFlags := h.HasOption(OptClassFlagsHi)

	for i := 0; i < n; i++ {
		ci := &ClassInfo{MinorVersion: h.DefaultClassMinorVersion, MajorVersion: h.DefaultClassMajorVersion}

		if int(thisRefs[i]) >= len(cp.Class) {
			return nil, newErr(KindOutOfRange, "class.this", r.Pos(), nil)
		}
		name, err := cp.ClassName(uint32(thisRefs[i]))
		if err != nil {
			return nil, err
		}
		ci.Name = name

		if superRefs[i] > 0 {
			sname, err := cp.ClassName(uint32(superRefs[i] - 1))
			if err != nil {
				return nil, err
			}
			ci.Super = sname
		}

		nIface := int(ifaceCounts[i])
		if nIface > 0 {
			ifaceRefs, err := decodeWithMeta(r, bh, UNSIGNED5, nIface)
			if err != nil {
				return nil, newErr(KindInconsistent, "class.iface", r.Pos(), err)
			}
			for _, v := range ifaceRefs {
				iname, err := cp.ClassName(uint32(v))
				if err != nil {
					return nil, err
				}
				ci.Interfaces = append(ci.Interfaces, iname)
			}
		}

		ci.Flags, err = classFlagsBand(r, bh, highFlags)
		if err != nil {
			return nil, newErr(KindInconsistent, "class.flags", r.Pos(), err)
		}

		fieldCount, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
		if err != nil {
			return nil, newErr(KindInconsistent, "class.field_count", r.Pos(), err)
		}
		ci.Fields, err = decodeMembers(r, bh, int(fieldCount[0]), CtxField, cp, table, h.HasOption(OptCodeFieldFlagsHi), nil, h)
		if err != nil {
			return nil, err
		}

		methodCount, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
		if err != nil {
			return nil, newErr(KindInconsistent, "class.method_count", r.Pos(), err)
		}
		ci.Methods, err = decodeMembers(r, bh, int(methodCount[0]), CtxMethod, cp, table, h.HasOption(OptMethodFlagsHi), icAll, h)
		if err != nil {
			return nil, err
		}

		ci.Attributes, err = decodeAttributesFor(r, bh, ci.Flags, CtxClass, table, cp, nil, nil)
		if err != nil {
			return nil, err
		}

		out[i] = ci
	}

	return out, nil
}

// accStatic is the JVM ACC_STATIC access-flag bit (JVMS §4.6).
const accStatic = 0x0008

func decodeMembers(r *bitio.Reader, bh *bandHeaders, count int, ctx AttrContext, cp *ConstantPool, table *AttrLayoutTable, highFlags bool, icAll []IcTuple, h *SegmentHeader) ([]MemberInfo, error) {
	out := make([]MemberInfo, count)
	for i := 0; i < count; i++ {
		flags, err := classFlagsBand(r, bh, highFlags)
		if err != nil {
			return nil, newErr(KindInconsistent, "member.flags", r.Pos(), err)
		}
		descrRef, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
		if err != nil {
			return nil, newErr(KindInconsistent, "member.descr", r.Pos(), err)
		}
		name, descr, err := descriptorString(cp, uint32(descrRef[0]))
		if err != nil {
			return nil, err
		}
		m := MemberInfo{Name: name, Descriptor: descr, Flags: flags}

		var cparams *codeParams
		if ctx == CtxMethod {
			cparams = &codeParams{
				Static:          flags&accStatic != 0,
				Descriptor:      descr,
				AllCodeHasFlags: h.HasOption(OptAllMethodsHaveCode),
			}
		}
		m.Attributes, err = decodeAttributesFor(r, bh, flags, ctx, table, cp, nil, cparams)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}
