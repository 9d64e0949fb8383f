// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gopack200/unpack200/internal/bitio"
)

func TestDecodeFileBandsImpliedClassNames(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	h := &SegmentHeader{FileCount: 2}
	cp := &ConstantPool{}
	// size_lo band: two zero-length class files, no other bands present.
	r := bitio.NewReader(bytesReader(0, 0))

	files, err := decodeFileBands(r, bh, h, cp, []string{"Foo", "Bar"})
	assert.NoError(t, err)
	assert.Len(t, files, 2)
	assert.True(t, files[0].IsClass)
	assert.Equal(t, "Foo.class", files[0].Name)
	assert.Equal(t, 0, files[0].ClassIdx)
	assert.True(t, files[1].IsClass)
	assert.Equal(t, "Bar.class", files[1].Name)
	assert.Equal(t, 1, files[1].ClassIdx)
}

func TestDecodeFileBandsExplicitResourceName(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	h := &SegmentHeader{FileCount: 1, Options: OptPerFileHeaders}
	cp := &ConstantPool{UTF8: []string{"", "readme.txt"}}
	// name_idx band: 2 (-> UTF8[1]), size_lo band: 3, then the payload "abc".
	r := bitio.NewReader(bytesReader(2, 3, 97, 98, 99))

	files, err := decodeFileBands(r, bh, h, cp, nil)
	assert.NoError(t, err)
	assert.Len(t, files, 1)
	assert.False(t, files[0].IsClass)
	assert.Equal(t, "readme.txt", files[0].Name)
	assert.Equal(t, int64(3), files[0].Size)
	assert.Equal(t, []byte("abc"), files[0].Bytes)
}

func TestDecodeFileBandsRejectsDanglingNameIndex(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	h := &SegmentHeader{FileCount: 1, Options: OptPerFileHeaders}
	cp := &ConstantPool{UTF8: []string{""}}
	// name_idx 2 resolves to UTF8[1], past the single-entry bank.
	r := bitio.NewReader(bytesReader(2, 0))

	_, err := decodeFileBands(r, bh, h, cp, nil)
	assert.Error(t, err)
	assert.Equal(t, KindOutOfRange, err.(*DecodeError).Kind)
}

func TestDecodeFileBandsRejectsUnnamedResource(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	h := &SegmentHeader{FileCount: 1}
	cp := &ConstantPool{}
	r := bitio.NewReader(bytesReader(0))

	_, err := decodeFileBands(r, bh, h, cp, nil)
	assert.Error(t, err)
	assert.Equal(t, KindInconsistent, err.(*DecodeError).Kind)
}

func TestDecodeFileBandsSizeHiCombinesWithLo(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	h := &SegmentHeader{FileCount: 1, Options: OptPerFileHeaders | OptFileSizeHiPresent}
	cp := &ConstantPool{UTF8: []string{"", "big.bin"}}
	// name_idx: 0 (implied class name), size_lo: 0, size_hi: 1 -> combined
	// size is 1<<32; class files carry no payload bytes in the file bands.
	r := bitio.NewReader(bytesReader(0, 0, 1))

	files, err := decodeFileBands(r, bh, h, cp, []string{"Big"})
	assert.NoError(t, err)
	assert.Equal(t, int64(1)<<32, files[0].Size)
}

func TestDecodeFileBandsModtimeDeltaFromArchiveModtime(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	h := &SegmentHeader{FileCount: 1, ArchiveModtime: 1000}
	cp := &ConstantPool{}
	h.Options = OptFileModtimePresent
	// size_lo: 0, then modtime delta +5: DELTA5 is signed, raw byte 10
	// zig-zag-decodes to +5 (even raw -> raw/2).
	r := bitio.NewReader(bytesReader(0, 10))

	files, err := decodeFileBands(r, bh, h, cp, []string{"Foo"})
	assert.NoError(t, err)
	assert.Equal(t, int64(1005), files[0].ModtimeS)
}

func TestDecodeFileBandsPerFileOptionsOverrideDeflateDefault(t *testing.T) {
	bh := &bandHeaders{r: bitio.NewReader(bytesReader())}
	h := &SegmentHeader{FileCount: 1, Options: OptDefaultDeflateHint | OptFileOptionsPresent}
	cp := &ConstantPool{}
	// size_lo: 0, per-file options: 0 (clears the deflate bit).
	r := bitio.NewReader(bytesReader(0, 0))

	files, err := decodeFileBands(r, bh, h, cp, []string{"Foo"})
	assert.NoError(t, err)
	assert.False(t, files[0].Deflate)
}

func TestResolveDeflatePriority(t *testing.T) {
	assert.True(t, resolveDeflate(DeflateHintOn, false))
	assert.False(t, resolveDeflate(DeflateHintOff, true))
	assert.True(t, resolveDeflate(DeflateHintAuto, true))
	assert.False(t, resolveDeflate(DeflateHintAuto, false))
}

func TestStripClassSuffix(t *testing.T) {
	assert.Equal(t, "Foo", stripClassSuffix("Foo.class"))
	assert.Equal(t, "Foo", stripClassSuffix("Foo"))
}
