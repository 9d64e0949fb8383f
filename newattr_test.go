// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gopack200/unpack200/internal/bitio"
)

func layoutAttr(t *testing.T, layoutStr string) *AttributeLayout {
	t.Helper()
	l, err := ParseLayout(layoutStr)
	assert.NoError(t, err)
	return &AttributeLayout{Name: "Test", LayoutStr: layoutStr, Parsed: l}
}

func TestReadOccurrencePlainIntegral(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	al := layoutAttr(t, "H")
	r := bitio.NewReader(bytesReader(5))
	na, err := ReadOccurrence(r, bh, al, nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0, 5}, na.Bytes)
	assert.Empty(t, na.Patches)
}

func TestReadOccurrenceRefRecordsPatch(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	al := layoutAttr(t, "RCH")
	r := bitio.NewReader(bytesReader(3))
	na, err := ReadOccurrence(r, bh, al, nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, na.Bytes) // zero-filled placeholder
	if assert.Len(t, na.Patches, 1) {
		assert.Equal(t, 0, na.Patches[0].Offset)
		assert.Equal(t, SPClass, na.Patches[0].Ref.Pool)
		assert.Equal(t, uint32(3), na.Patches[0].Ref.Index)
	}
}

func TestReadOccurrenceNullAwareRefZeroSkipsPatch(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	al := layoutAttr(t, "RCNH")
	r := bitio.NewReader(bytesReader(0))
	na, err := ReadOccurrence(r, bh, al, nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, na.Bytes)
	assert.Empty(t, na.Patches)
}

func TestReadOccurrenceNullAwareRefNonzeroDecrementsIndex(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	al := layoutAttr(t, "RCNH")
	r := bitio.NewReader(bytesReader(5))
	na, err := ReadOccurrence(r, bh, al, nil)
	assert.NoError(t, err)
	if assert.Len(t, na.Patches, 1) {
		assert.Equal(t, uint32(4), na.Patches[0].Ref.Index)
	}
}

func TestReadOccurrenceReplicationRepeatsBody(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	al := layoutAttr(t, "N{0}[H]")
	// count=2, then the body's H value twice.
	r := bitio.NewReader(bytesReader(2, 10, 20))
	na, err := ReadOccurrence(r, bh, al, nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0, 10, 0, 20}, na.Bytes)
}

func TestReadOccurrenceReplicationLiteralCountSkipsBand(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	al := layoutAttr(t, "N{2}[H]")
	// no count band consumed; just the body's H value twice.
	r := bitio.NewReader(bytesReader(10, 20))
	na, err := ReadOccurrence(r, bh, al, nil)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0, 10, 0, 20}, na.Bytes)
}

func TestNewAttributeRenderAppliesPatches(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	al := layoutAttr(t, "RCH")
	r := bitio.NewReader(bytesReader(3))
	na, err := ReadOccurrence(r, bh, al, nil)
	assert.NoError(t, err)

	out := na.Render(func(ref CPEntryRef) uint16 { return 99 })
	assert.Equal(t, []byte{0, 99}, out)
}
