// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gopack200/unpack200/internal/bitio"
)

// buildSegmentHeader assembles a minimal, otherwise-empty segment header,
// with optionsBytes spliced in as the UNSIGNED5 encoding of the options
// field, so tests can exercise multi-byte option values.
func buildSegmentHeader(optionsBytes []byte) []byte {
	b := []byte{}
	b = append(b, Magic[:]...)
	b = append(b, 0, 0) // minor_version
	b = append(b, 7, 0) // major_version
	b = append(b, optionsBytes...)
	b = append(b, 0)                   // band_headers byte count = 0
	b = append(b, 0)                   // cp.utf8_count
	b = append(b, 0, 0, 0, 0, 0, 0, 0) // stringref,class,signature,descriptor,fieldref,methodref,imethodref
	b = append(b, 0)                   // class_count
	b = append(b, 0)                   // file_count
	b = append(b, 0, 0, 50, 0)         // default_class_version: minor=0, major=50
	b = append(b, 0)                   // archive_size
	b = append(b, 0)                   // archive_modtime
	return b
}

func minimalSegmentHeaderBytes() []byte {
	return buildSegmentHeader([]byte{0})
}

func TestReadSegmentHeaderMinimal(t *testing.T) {
	r := bitio.NewReader(bytesReader(minimalSegmentHeaderBytes()...))
	h, bh, err := ReadSegmentHeader(r, 4096)
	assert.NoError(t, err)
	assert.NotNil(t, bh)
	assert.Equal(t, uint16(7), h.MajorVersion)
	assert.Equal(t, uint16(50), h.DefaultClassMajorVersion)
	assert.Equal(t, uint32(0), h.ClassCount)
	assert.False(t, h.HasOption(OptCPNumberCounts))
}

func TestReadSegmentHeaderRejectsBadMagic(t *testing.T) {
	bad := minimalSegmentHeaderBytes()
	bad[0] = 0x00
	r := bitio.NewReader(bytesReader(bad...))
	_, _, err := ReadSegmentHeader(r, 4096)
	assert.Error(t, err)
}

func TestReadSegmentHeaderAcceptsCarvedOutBit3(t *testing.T) {
	// Bit 3 (value 8) has no named option but is explicitly excluded from
	// optReservedMask, so it must not be rejected.
	b := buildSegmentHeader([]byte{8})
	r := bitio.NewReader(bytesReader(b...))
	_, _, err := ReadSegmentHeader(r, 4096)
	assert.NoError(t, err)
}

func TestReadSegmentHeaderRejectsReservedOptionBits(t *testing.T) {
	// Encode 6174 (0x181E, bit 12 set, no named option above bit 11) as a
	// two-byte UNSIGNED5 magnitude: first byte carries a continuation
	// digit (192 + 30), second byte terminates with the low digit (32),
	// so raw = 30 + 192*32 = 6174.
	b := buildSegmentHeader([]byte{222, 32})
	r := bitio.NewReader(bytesReader(b...))
	_, _, err := ReadSegmentHeader(r, 4096)
	assert.Error(t, err)
}

func TestReadSegmentHeaderRejectsOversizedBandHeaders(t *testing.T) {
	b := minimalSegmentHeaderBytes()
	idx := 4 + 2 + 2 + 1 // magic + minor + major + options
	b[idx] = 10          // claim 10 band-header bytes
	r := bitio.NewReader(bytesReader(b...))
	_, _, err := ReadSegmentHeader(r, 4)
	assert.Error(t, err)
}
