// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package archive

import (
	"archive/zip"
	"io"
	"time"

	pack200 "github.com/gopack200/unpack200"
)

// jarComment is the literal trailer every unpack200 output carries,
// matching the historical tool's own marker (spec §6 property "every
// emitted JAR's comment equals the literal string PACK200").
const jarComment = "PACK200"

// WriteJAR serializes files as a JAR (a zip with the standard
// "PACK200" comment) to w. Deflate/store is chosen per entry from
// FileEntry.Deflate (spec §4.8 "Emission order"). The zip writer itself
// is the one stdlib-only piece of this repo: no third-party archive
// pack in the retrieval set offers a zip *writer* (see DESIGN.md).
func WriteJAR(w io.Writer, files []pack200.FileEntry) error {
	zw := zip.NewWriter(w)

	for _, f := range files {
		method := zip.Store
		if f.Deflate {
			method = zip.Deflate
		}
		hdr := &zip.FileHeader{
			Name:     f.Name,
			Method:   method,
			Modified: time.Unix(f.ModtimeS, 0).UTC(),
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		if _, err := fw.Write(f.Bytes); err != nil {
			return err
		}
	}

	if err := zw.SetComment(jarComment); err != nil {
		return err
	}
	return zw.Close()
}
