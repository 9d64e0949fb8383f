// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package archive

import (
	"bytes"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	pack200 "github.com/gopack200/unpack200"
)

// OpenFile decodes a Pack200 archive straight from disk, memory-mapping the
// file instead of buffering it through read calls (mirrors the historical
// parser's File.New, which does the same for a PE image). The mapping is
// unmapped before OpenFile returns; the returned Archive owns its own copies
// of every file's bytes.
func OpenFile(name string, opts *pack200.Options) (*Archive, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer data.Unmap()

	return Decode(bytes.NewReader(data), opts)
}
