// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLayoutSimpleIntegral(t *testing.T) {
	l, err := ParseLayout("H")
	assert.NoError(t, err)
	assert.Len(t, l.Elements, 1)
	assert.Equal(t, ElemIntegral, l.Elements[0].Kind)
	assert.Equal(t, byte('H'), l.Elements[0].Width)
}

func TestParseLayoutConstantValue(t *testing.T) {
	l, err := ParseLayout("KIH")
	assert.NoError(t, err)
	assert.Equal(t, ElemConst, l.Elements[0].Kind)
	assert.Equal(t, byte('I'), l.Elements[0].Tag)
	assert.Equal(t, byte('H'), l.Elements[0].Width)
}

func TestParseLayoutNullAwareReference(t *testing.T) {
	l, err := ParseLayout("RCNH")
	assert.NoError(t, err)
	e := l.Elements[0]
	assert.Equal(t, ElemRef, e.Kind)
	assert.Equal(t, byte('C'), e.Tag)
	assert.True(t, e.NullAware)
}

func TestParseLayoutReplicationRegistersCallable(t *testing.T) {
	l, err := ParseLayout("N{1}[RCH]")
	assert.NoError(t, err)
	rep := l.Elements[0]
	assert.Equal(t, ElemReplication, rep.Kind)
	assert.Len(t, l.Callables, 2) // top-level body + the replication's body
}

func TestParseLayoutUnionWithDefault(t *testing.T) {
	l, err := ParseLayout("T{B}(0)[H]()[]")
	assert.NoError(t, err)
	u := l.Elements[0]
	assert.Equal(t, ElemUnion, u.Kind)
	assert.Len(t, u.Cases, 2)
	assert.False(t, u.Cases[0].IsDefault)
	assert.Equal(t, []int64{0}, u.Cases[0].Tags)
	assert.True(t, u.Cases[1].IsDefault)
}

func TestParseLayoutCallToken(t *testing.T) {
	l, err := ParseLayout("(-1)")
	assert.NoError(t, err)
	assert.Equal(t, ElemCall, l.Elements[0].Kind)
	assert.Equal(t, -1, l.Elements[0].CallIndex)
}

func TestParseLayoutRejectsUnknownToken(t *testing.T) {
	_, err := ParseLayout("Q")
	assert.Error(t, err)
}

func TestParseLayoutRejectsTrailingInput(t *testing.T) {
	_, err := ParseLayout("H]")
	assert.Error(t, err)
}

func TestCodecForSelectsByElementShape(t *testing.T) {
	assert.Equal(t, BRANCH5, codecFor(&LayoutElem{Kind: ElemBCOffset}))
	assert.Equal(t, BCI5, codecFor(&LayoutElem{Kind: ElemBCIndex}))
	assert.Equal(t, BYTE1, codecFor(&LayoutElem{Kind: ElemIntegral, Width: 'B'}))
	assert.Equal(t, SIGNED5, codecFor(&LayoutElem{Kind: ElemIntegral, Signed: true}))
}
