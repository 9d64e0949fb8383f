// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import "github.com/gopack200/unpack200/internal/bitio"

// AttrContext names the four entity kinds an attribute layout may be
// bound to (spec §3 "AttributeLayout").
type AttrContext int

const (
	CtxClass AttrContext = iota
	CtxField
	CtxMethod
	CtxCode
)

// AttributeLayout binds a name and layout string to a specific bit of an
// entity's flag word (spec §3 "AttributeLayout").
type AttributeLayout struct {
	Name      string
	Context   AttrContext
	LayoutStr string
	BitIndex  int
	IsDefault bool

	// Parsed is nil for the twelve standard attributes and the four
	// runtime-annotation attributes, which classbands.go materializes
	// directly from fixed shapes (spec §4.6 "Standard attributes... have
	// fixed shapes coded directly"); it is non-nil for every user-defined
	// layout, which goes through the interpreter in newattr.go.
	Parsed *Layout
}

// builtinAttr is the declarative form used to seed BuiltinLayouts.
type builtinAttr struct {
	name string
	ctx  AttrContext
	bit  int
}

// Builtin attributes always defined with fixed bit indices 0-31 (spec
// §4.4): the twelve standard attributes plus the four runtime-annotation
// attributes. Bit assignment follows the context-local flag word each
// attribute's presence bit is tested against (spec §4.6 "for every
// layout whose bit is set in the entity's flag word").
var builtinAttrs = []builtinAttr{
	{"Code", CtxMethod, 0},
	{"Exceptions", CtxMethod, 1},
	{"ConstantValue", CtxField, 0},
	{"InnerClasses", CtxClass, 0},
	{"EnclosingMethod", CtxClass, 1},
	{"SourceFile", CtxClass, 2},
	{"Signature", CtxClass, 3},
	{"Signature", CtxField, 1},
	{"Signature", CtxMethod, 2},
	{"Deprecated", CtxClass, 4},
	{"Deprecated", CtxField, 2},
	{"Deprecated", CtxMethod, 3},
	{"LineNumberTable", CtxCode, 0},
	{"LocalVariableTable", CtxCode, 1},
	{"LocalVariableTypeTable", CtxCode, 2},
	{"AnnotationDefault", CtxMethod, 4},
	{"RuntimeVisibleAnnotations", CtxClass, 5},
	{"RuntimeVisibleAnnotations", CtxField, 3},
	{"RuntimeVisibleAnnotations", CtxMethod, 5},
	{"RuntimeInvisibleAnnotations", CtxClass, 6},
	{"RuntimeInvisibleAnnotations", CtxField, 4},
	{"RuntimeInvisibleAnnotations", CtxMethod, 6},
	{"RuntimeVisibleParameterAnnotations", CtxMethod, 7},
	{"RuntimeInvisibleParameterAnnotations", CtxMethod, 8},
}

// AttrLayoutTable is the full set of layouts known for a segment: builtin
// plus user-defined, keyed by (context, bitIndex) for flag-word lookup.
type AttrLayoutTable struct {
	byKey map[attrKey]*AttributeLayout
	all   []*AttributeLayout
}

type attrKey struct {
	ctx AttrContext
	bit int
}

// NewAttrLayoutTable builds a table seeded with the builtin layouts.
func NewAttrLayoutTable() *AttrLayoutTable {
	t := &AttrLayoutTable{byKey: make(map[attrKey]*AttributeLayout)}
	for _, b := range builtinAttrs {
		al := &AttributeLayout{Name: b.name, Context: b.ctx, BitIndex: b.bit, IsDefault: true}
		t.byKey[attrKey{b.ctx, b.bit}] = al
		t.all = append(t.all, al)
	}
	return t
}

// Lookup finds the layout bound to (ctx, bit), or nil.
func (t *AttrLayoutTable) Lookup(ctx AttrContext, bit int) *AttributeLayout {
	return t.byKey[attrKey{ctx, bit}]
}

// All returns every registered layout, builtin first in declaration
// order followed by user-defined layouts in registration order (spec
// §4.6 "ordered first by layout index").
func (t *AttrLayoutTable) All() []*AttributeLayout { return t.all }

// overflowTracker tracks, per context, the next free bit beyond the
// fixed builtin range, per spec §4.4's overflow rule ("index -1 means
// next overflow slot starting at 32 or 63 depending on the high-flags
// option").
type overflowTracker struct {
	next    map[AttrContext]int
	highFlg bool
}

func newOverflowTracker(highFlags bool) *overflowTracker {
	start := 32
	if highFlags {
		start = 63
	}
	ot := &overflowTracker{next: make(map[AttrContext]int), highFlg: highFlags}
	for _, c := range []AttrContext{CtxClass, CtxField, CtxMethod, CtxCode} {
		ot.next[c] = start
	}
	return ot
}

func (ot *overflowTracker) take(ctx AttrContext) int {
	b := ot.next[ctx]
	ot.next[ctx]++
	return b
}

// DecodeAttrDefinitionBands decodes the attribute-definition bands (spec
// §4.4): count, then per definition a header byte (low 2 bits = context,
// high 6 bits - 1 = bit index, -1 meaning "assign the next overflow
// slot"), a UTF-8 name ref, and a UTF-8 layout-string ref. Each
// successfully parsed layout is registered into table.
func DecodeAttrDefinitionBands(r *bitio.Reader, bh *bandHeaders, count uint32, cp *ConstantPool, highFlags bool, table *AttrLayoutTable) error {
	if count == 0 {
		return nil
	}
	headers, err := decodeWithMeta(r, bh, BYTE1, int(count))
	if err != nil {
		return newErr(KindInconsistent, "attrdef.header", r.Pos(), err)
	}
	nameRefs, err := decodeWithMeta(r, bh, UNSIGNED5, int(count))
	if err != nil {
		return newErr(KindInconsistent, "attrdef.name", r.Pos(), err)
	}
	layoutRefs, err := decodeWithMeta(r, bh, UNSIGNED5, int(count))
	if err != nil {
		return newErr(KindInconsistent, "attrdef.layout", r.Pos(), err)
	}

	ot := newOverflowTracker(highFlags)

	for i := 0; i < int(count); i++ {
		hb := headers[i]
		ctx := AttrContext(hb & 0x3)
		rawBit := int(hb>>2) - 1

		if int(nameRefs[i]) >= len(cp.UTF8) || int(layoutRefs[i]) >= len(cp.UTF8) {
			return newErr(KindOutOfRange, "attrdef", r.Pos(), nil)
		}
		name := cp.UTF8[nameRefs[i]]
		layoutStr := cp.UTF8[layoutRefs[i]]

		bit := rawBit
		if rawBit == -1 {
			bit = ot.take(ctx)
		}

		parsed, perr := ParseLayout(layoutStr)
		if perr != nil {
			return perr
		}

		al := &AttributeLayout{Name: name, Context: ctx, LayoutStr: layoutStr, BitIndex: bit, Parsed: parsed}
		table.byKey[attrKey{ctx, bit}] = al
		table.all = append(table.all, al)
	}
	return nil
}
