// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package archive turns decoded Pack200 segments into a JAR file: magic
// sniffing for the optional gzip envelope, the multi-segment decode
// loop, and the zip writer that emits the final archive (spec §6).
package archive

import (
	"bufio"
	"io"

	"github.com/klauspost/compress/gzip"
)

var gzipMagic = [2]byte{0x1f, 0x8b}

// sniffReader peels back a gzip envelope if present, returning a reader
// positioned at the start of the raw Pack200 stream either way (spec §6
// "a .pack.gz input is gunzipped transparently before segment
// decoding").
func sniffReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 4096)
	head, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(head) == 2 && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return gz, nil
	}
	return br, nil
}
