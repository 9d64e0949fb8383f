// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gopack200/unpack200/internal/bitio"
)

func TestClassFlagsBandLowOnly(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	r := bitio.NewReader(bytesReader(5))
	v, err := classFlagsBand(r, bh, false)
	assert.NoError(t, err)
	assert.Equal(t, uint32(5), v)
}

func TestClassFlagsBandWithHigh(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	r := bitio.NewReader(bytesReader(5, 1))
	v, err := classFlagsBand(r, bh, true)
	assert.NoError(t, err)
	assert.Equal(t, uint32(5)|uint32(1)<<16, v)
}

func TestResolveSignatureFormSubstitutesClassRefs(t *testing.T) {
	cp := &ConstantPool{UTF8: []string{"", "Foo", "Bar"}, Class: []uint32{1, 2}}
	sig := CPSignature{Form: "(L;)L;", ClassRefs: []uint32{0, 1}}
	out, err := resolveSignatureForm(cp, sig)
	assert.NoError(t, err)
	assert.Equal(t, "(LFoo;)LBar;", out)
}

func TestDescriptorStringResolvesNameAndType(t *testing.T) {
	cp := &ConstantPool{
		UTF8:       []string{"", "main"},
		Signature:  []CPSignature{{Form: "()V"}},
		Descriptor: []CPDescriptor{{NameIndex: 1, TypeIndex: 0}},
	}
	name, descr, err := descriptorString(cp, 0)
	assert.NoError(t, err)
	assert.Equal(t, "main", name)
	assert.Equal(t, "()V", descr)
}

func TestDecodeOneAttrConstantValue(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	table := NewAttrLayoutTable()
	al := table.Lookup(CtxField, 0) // ConstantValue
	r := bitio.NewReader(bytesReader(7))
	inst, err := decodeOneAttr(r, bh, al, &ConstantPool{}, nil, nil)
	assert.NoError(t, err)
	if assert.NotNil(t, inst.ConstValue) {
		assert.Equal(t, uint32(7), inst.ConstValue.Index)
		assert.Equal(t, SPStringRef, inst.ConstValue.Pool)
	}
}

func TestDecodeOneAttrDeprecatedMark(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	table := NewAttrLayoutTable()
	al := table.Lookup(CtxClass, 4) // Deprecated
	r := bitio.NewReader(bytesReader())
	inst, err := decodeOneAttr(r, bh, al, &ConstantPool{}, nil, nil)
	assert.NoError(t, err)
	assert.True(t, inst.DeprecatedMark)
}

func TestDecodeAttributesForConstantValueBit(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	table := NewAttrLayoutTable()
	r := bitio.NewReader(bytesReader(9))
	out, err := decodeAttributesFor(r, bh, 1 /* bit 0 */, CtxField, table, &ConstantPool{}, nil, nil)
	assert.NoError(t, err)
	if assert.Len(t, out, 1) {
		assert.Equal(t, "ConstantValue", out[0].Layout.Name)
		assert.Equal(t, uint32(9), out[0].ConstValue.Index)
	}
}

func TestDecodeCodeAttrBodyMinimal(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	// max_stack=1, max_locals=1, bytecode [aconst_null, return, sentinel],
	// exc_count=0, code_attr_flags=0.
	r := bitio.NewReader(bytesReader(1, 1, 0x01, 0xB1, methodEndSentinel, 0, 0))
	ca, err := decodeCodeAttrBody(r, bh, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, uint32(1), ca.MaxStack)
	assert.Equal(t, uint32(1), ca.MaxLocals)
	assert.Equal(t, []byte{0x01, 0xB1}, ca.Code.Bytes)
	assert.Empty(t, ca.Exceptions)
	assert.Empty(t, ca.LineNumbers)
}

func TestDecodeCodeAttrBodyAdjustsMaxLocalsForNonStaticAndDoubleWidth(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	// max_stack=1, max_locals=0 (transmitted), bytecode [return, sentinel],
	// exc_count=0, code_attr_flags=0. Non-static with descriptor "(JI)V"
	// adds +1 for the receiver and +1 for the single J parameter.
	r := bitio.NewReader(bytesReader(1, 0, 0xB1, methodEndSentinel, 0, 0))
	cparams := &codeParams{Static: false, Descriptor: "(JI)V"}
	ca, err := decodeCodeAttrBody(r, bh, nil, cparams)
	assert.NoError(t, err)
	assert.Equal(t, uint32(2), ca.MaxLocals)
}

func TestDecodeCodeAttrBodyAllCodeHasFlagsSkipsFlagsBand(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	// max_stack=1, max_locals=1, bytecode [return, sentinel], exc_count=0,
	// then directly the three nested-attribute tables' counts (all 0) with
	// no code_attr_flags band in between.
	r := bitio.NewReader(bytesReader(1, 1, 0xB1, methodEndSentinel, 0, 0, 0, 0))
	cparams := &codeParams{Static: true, AllCodeHasFlags: true}
	ca, err := decodeCodeAttrBody(r, bh, nil, cparams)
	assert.NoError(t, err)
	assert.Equal(t, uint32(1), ca.MaxLocals)
	assert.Empty(t, ca.LineNumbers)
	assert.Empty(t, ca.LocalVars)
	assert.Empty(t, ca.LocalVarTypes)
}

func TestDecodeMembersSingleFieldNoAttributes(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	cp := &ConstantPool{
		UTF8:       []string{"", "x"},
		Signature:  []CPSignature{{Form: "I"}},
		Descriptor: []CPDescriptor{{NameIndex: 1, TypeIndex: 0}},
	}
	table := NewAttrLayoutTable()
	// flags=0, descr_ref=0.
	r := bitio.NewReader(bytesReader(0, 0))
	members, err := decodeMembers(r, bh, 1, CtxField, cp, table, false, nil, &SegmentHeader{})
	assert.NoError(t, err)
	if assert.Len(t, members, 1) {
		assert.Equal(t, "x", members[0].Name)
		assert.Equal(t, "I", members[0].Descriptor)
		assert.Empty(t, members[0].Attributes)
	}
}

func TestDecodeClassBandsMinimalClass(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	cp := &ConstantPool{UTF8: []string{"", "Foo"}, Class: []uint32{1}}
	table := NewAttrLayoutTable()
	h := &SegmentHeader{ClassCount: 1, DefaultClassMajorVersion: 50}
	// this=0, super=0 (none), iface_count=0, flags=0, field_count=0,
	// method_count=0.
	r := bitio.NewReader(bytesReader(0, 0, 0, 0, 0, 0))

	classes, err := DecodeClassBands(r, bh, h, cp, table, nil)
	assert.NoError(t, err)
	if assert.Len(t, classes, 1) {
		assert.Equal(t, "Foo", classes[0].Name)
		assert.Equal(t, "", classes[0].Super)
		assert.Empty(t, classes[0].Fields)
		assert.Empty(t, classes[0].Methods)
		assert.Equal(t, uint16(50), classes[0].MajorVersion)
	}
}
