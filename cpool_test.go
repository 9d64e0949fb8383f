// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gopack200/unpack200/internal/bitio"
)

func TestDecodeConstantPoolUTF8PrefixSharing(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	// prefix=0, suffix=2 (len "ab"), chars 'a','b'.
	r := bitio.NewReader(bytesReader(0, 2, 97, 98))
	cp, err := DecodeConstantPool(r, bh, CPCounts{UTF8: 2})
	assert.NoError(t, err)
	assert.Equal(t, []string{"", "ab"}, cp.UTF8)
}

func TestConstantPoolGlobalIndexOffsets(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	r := bitio.NewReader(bytesReader(0, 2, 97, 98))
	cp, err := DecodeConstantPool(r, bh, CPCounts{UTF8: 2})
	assert.NoError(t, err)
	assert.Equal(t, 0, cp.GlobalIndex(SPUTF8, 0))
	assert.Equal(t, 1, cp.GlobalIndex(SPUTF8, 1))
	assert.Equal(t, 2, cp.GlobalIndex(SPInt, 0))
}

func TestDecodeConstantPoolRejectsDanglingClassIndex(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	// UTF8 count 1 (empty string only), Class count 1 pointing past it.
	r := bitio.NewReader(bytesReader(5))
	_, err := DecodeConstantPool(r, bh, CPCounts{UTF8: 1, Class: 1})
	assert.Error(t, err)
}

func TestClassNameResolvesThroughUTF8(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	r := bitio.NewReader(bytesReader(0, 2, 97, 98, 1))
	cp, err := DecodeConstantPool(r, bh, CPCounts{UTF8: 2, Class: 1})
	assert.NoError(t, err)
	name, err := cp.ClassName(0)
	assert.NoError(t, err)
	assert.Equal(t, "ab", name)
}
