// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"io"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/gopack200/unpack200/internal/bitio"
)

// Decoder decodes Pack200 segments from a byte stream, mirroring pe.File's
// role as the package's top-level handle: construct once with New, call
// its methods, inspect the result.
type Decoder struct {
	opts   *Options
	logger *log.Helper
}

// New builds a Decoder. A nil Options uses every default.
func New(opts *Options) *Decoder {
	if opts == nil {
		opts = &Options{}
	}
	return &Decoder{
		opts:   opts,
		logger: newHelper(opts.LogSink, opts.Logger, opts.Verbosity),
	}
}

// DecodeSegment reads and decodes exactly one segment from r, for
// callers who know their input holds a single segment.
func (d *Decoder) DecodeSegment(r io.Reader) (*Segment, error) {
	return d.DecodeFrom(bitio.NewReader(r))
}

// DecodeFrom decodes one segment from an already-open bitio.Reader.
// archive.Decode uses this directly, reusing the same reader across
// every segment of a multi-segment stream instead of re-wrapping it per
// segment, which would strand any bytes the previous wrap had already
// buffered ahead (spec §6 "a Pack200 stream is a sequence of one or
// more back-to-back segments").
func (d *Decoder) DecodeFrom(br *bitio.Reader) (*Segment, error) {
	seg, err := DecodeSegment(br, d.opts, d.logger)
	if err != nil {
		d.logger.Errorw("msg", "segment decode failed", "err", err)
		return nil, err
	}
	return seg, nil
}

// Peek exposes the underlying byte cursor's one-byte lookahead so a
// multi-segment loop can tell "more segments" from "clean EOF" without
// guessing from a decode error (see archive.Decode).
func Peek(br *bitio.Reader) (byte, error) { return br.Peek() }

// NewBitReader wraps r for direct use with DecodeFrom.
func NewBitReader(r io.Reader) *bitio.Reader { return bitio.NewReader(r) }
