// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gopack200/unpack200/internal/bitio"
)

func TestDecodeAttrDefinitionBandsExplicitBit(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	cp := &ConstantPool{UTF8: []string{"MyAttr", "H"}}
	table := NewAttrLayoutTable()

	// header byte: ctx=CtxMethod(2), rawBit=5 -> hb = (5+1)<<2 | 2 = 26.
	r := bitio.NewReader(bytesReader(26, 0, 1))
	err := DecodeAttrDefinitionBands(r, bh, 1, cp, false, table)
	assert.NoError(t, err)

	al := table.Lookup(CtxMethod, 5)
	if assert.NotNil(t, al) {
		assert.Equal(t, "MyAttr", al.Name)
		assert.Equal(t, "H", al.LayoutStr)
		assert.NotNil(t, al.Parsed)
	}
}

func TestDecodeAttrDefinitionBandsOverflowSlot(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	cp := &ConstantPool{UTF8: []string{"MyAttr", "H"}}
	table := NewAttrLayoutTable()

	// header byte: ctx=CtxClass(0), rawBit=-1 (hb>>2==0) -> hb=0.
	r := bitio.NewReader(bytesReader(0, 0, 1))
	err := DecodeAttrDefinitionBands(r, bh, 1, cp, false, table)
	assert.NoError(t, err)

	al := table.Lookup(CtxClass, 32)
	assert.NotNil(t, al)
}

func TestAttrLayoutTableSeedsBuiltins(t *testing.T) {
	table := NewAttrLayoutTable()
	al := table.Lookup(CtxMethod, 0)
	if assert.NotNil(t, al) {
		assert.Equal(t, "Code", al.Name)
		assert.True(t, al.IsDefault)
	}
}
