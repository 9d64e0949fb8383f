// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package archive

import (
	"io"

	pack200 "github.com/gopack200/unpack200"
)

// Archive is a fully unpacked Pack200 stream: every emitted file, in
// segment and within-segment order, ready for JAR emission (spec §6
// "unpack200 concatenates every segment's files in order").
type Archive struct {
	Files     []pack200.FileEntry
	Anomalies []string
}

// Decode reads every back-to-back segment from r (after transparently
// stripping a gzip envelope) and concatenates their files in order.
func Decode(r io.Reader, opts *pack200.Options) (*Archive, error) {
	raw, err := sniffReader(r)
	if err != nil {
		return nil, err
	}

	d := pack200.New(opts)
	br := pack200.NewBitReader(raw)

	out := &Archive{}
	for {
		if _, err := pack200.Peek(br); err != nil {
			break
		}
		seg, err := d.DecodeFrom(br)
		if err != nil {
			return nil, err
		}
		deflate := pack200.DeflateHintAuto
		if opts != nil {
			deflate = opts.DeflateHint
		}
		out.Files = append(out.Files, seg.Emit(deflate)...)
		out.Anomalies = append(out.Anomalies, seg.Anomalies...)
	}
	return out, nil
}
