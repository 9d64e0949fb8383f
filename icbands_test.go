// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gopack200/unpack200/internal/bitio"
)

func testICConstantPool() *ConstantPool {
	return &ConstantPool{
		UTF8:  []string{"", "Outer$Inner", "Outer", "Inner"},
		Class: []uint32{1, 2},
	}
}

func TestDecodeICBandsPredictedNames(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	cp := testICConstantPool()
	r := bitio.NewReader(bytesReader(0, 0))
	tuples, err := DecodeICBands(r, bh, 1, cp)
	assert.NoError(t, err)
	assert.Len(t, tuples, 1)
	tup := tuples[0]
	assert.True(t, tup.Predicted)
	assert.Equal(t, "Outer", tup.OuterName())
	assert.Equal(t, "Inner", tup.SimpleName())
}

func TestDecodeICBandsExplicitNames(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	cp := testICConstantPool()
	r := bitio.NewReader(bytesReader(0, 1, 1, 3))
	tuples, err := DecodeICBands(r, bh, 1, cp)
	assert.NoError(t, err)
	tup := tuples[0]
	assert.False(t, tup.Predicted)
	assert.Equal(t, "Outer", tup.OuterName())
	assert.Equal(t, "Inner", tup.SimpleName())
}

func TestIcTupleIsAnonymous(t *testing.T) {
	n := "123"
	tup := IcTuple{N: &n}
	assert.True(t, tup.IsAnonymous())

	n2 := "Foo"
	tup2 := IcTuple{N: &n2}
	assert.False(t, tup2.IsAnonymous())
}

func TestRelevantICTuplesFiltersByOuterName(t *testing.T) {
	all := []IcTuple{
		{C: "Outer$Inner", Predicted: true},
		{C: "Other$Thing", Predicted: true},
	}
	rel := RelevantICTuples(all, "Outer")
	assert.Len(t, rel, 1)
	assert.Equal(t, "Outer$Inner", rel[0].C)
}
