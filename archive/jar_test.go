// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	pack200 "github.com/gopack200/unpack200"
)

func TestWriteJARRoundTripsEntriesAndComment(t *testing.T) {
	files := []pack200.FileEntry{
		{Name: "Foo.class", Bytes: []byte{0xCA, 0xFE, 0xBA, 0xBE}, Deflate: false},
		{Name: "META-INF/MANIFEST.MF", Bytes: []byte("Manifest-Version: 1.0\n"), Deflate: true},
	}

	var buf bytes.Buffer
	assert.NoError(t, WriteJAR(&buf, files))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.NoError(t, err)
	assert.Equal(t, "PACK200", zr.Comment)
	if assert.Len(t, zr.File, 2) {
		assert.Equal(t, "Foo.class", zr.File[0].Name)
		assert.Equal(t, zip.Store, zr.File[0].Method)
		assert.Equal(t, "META-INF/MANIFEST.MF", zr.File[1].Name)
		assert.Equal(t, zip.Deflate, zr.File[1].Method)

		rc, err := zr.File[0].Open()
		assert.NoError(t, err)
		data, err := io.ReadAll(rc)
		assert.NoError(t, err)
		assert.Equal(t, []byte{0xCA, 0xFE, 0xBA, 0xBE}, data)
		assert.NoError(t, rc.Close())
	}
}

func TestWriteJAREmptyArchiveStillCarriesComment(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, WriteJAR(&buf, nil))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	assert.NoError(t, err)
	assert.Equal(t, "PACK200", zr.Comment)
	assert.Empty(t, zr.File)
}
