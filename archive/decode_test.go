// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package archive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// minimalEmptySegment is one complete, well-formed segment with every
// band count at zero: an empty constant pool beyond the mandatory UTF-8
// "" entry, no attribute definitions, no inner classes, no classes, no
// files.
func minimalEmptySegment() []byte {
	return []byte{
		0xCA, 0xFE, 0xD0, 0x0D, // magic
		0, 0, // minor_version
		0, 0, // major_version
		0,    // options
		0,    // band_headers_count
		1,    // cp_utf8_count (the mandatory "" entry only)
		0, 0, // cp_string_count, cp_class_count
		0, 0, // cp_signature_count, cp_descriptor_count
		0, 0, 0, // cp_field_count, cp_method_count, cp_imethod_count
		0, 0, // class_count, file_count
		0, 0, 0, 0, // default_class_minor/major_version
		0, // archive_size
		0, // archive_modtime
		0, // attr_definition_count
		0, // ic_count
	}
}

func TestDecodeSingleEmptySegment(t *testing.T) {
	arc, err := Decode(bytes.NewReader(minimalEmptySegment()), nil)
	assert.NoError(t, err)
	assert.Empty(t, arc.Files)
	assert.Contains(t, arc.Anomalies, "segment declares zero classes and zero files")
}

func TestDecodeConcatenatesBackToBackSegments(t *testing.T) {
	one := minimalEmptySegment()
	two := minimalEmptySegment()
	stream := append(append([]byte{}, one...), two...)

	arc, err := Decode(bytes.NewReader(stream), nil)
	assert.NoError(t, err)
	assert.Empty(t, arc.Files)
	assert.Len(t, arc.Anomalies, 2)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	bad := append([]byte{0, 0, 0, 0}, minimalEmptySegment()[4:]...)
	_, err := Decode(bytes.NewReader(bad), nil)
	assert.Error(t, err)
}
