// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package bitio provides the byte-oriented input abstraction that every
// Pack200 codec decodes against: a single next byte plus one byte of
// lookahead. Nothing in this package understands BHSD, bands, or segments;
// it only tracks position for error reporting.
package bitio

import (
	"bufio"
	"errors"
	"io"
)

// ErrEOF is returned by ReadByte/ReadN/Peek when the underlying source is
// exhausted.
var ErrEOF = errors.New("bitio: unexpected end of stream")

// Reader is a byte-oriented cursor over a Pack200 segment's bytes. It
// supports a single byte of pushback (Peek), which the multi-segment
// decode loop uses to tell whether another segment follows before
// consuming any of it.
type Reader struct {
	r       *bufio.Reader
	pos     int64
	peeked  bool
	peekVal byte
	peekErr error
}

// NewReader wraps r for byte-oriented reading.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 32*1024)}
}

// ReadByte returns the next byte, or ErrEOF if the stream is exhausted.
func (b *Reader) ReadByte() (byte, error) {
	if b.peeked {
		b.peeked = false
		b.pos++
		return b.peekVal, b.peekErr
	}
	v, err := b.r.ReadByte()
	if err != nil {
		return 0, ErrEOF
	}
	b.pos++
	return v, nil
}

// Peek returns the next byte without consuming it.
func (b *Reader) Peek() (byte, error) {
	if !b.peeked {
		v, err := b.r.ReadByte()
		if err != nil {
			b.peekVal, b.peekErr = 0, ErrEOF
		} else {
			b.peekVal, b.peekErr = v, nil
		}
		b.peeked = true
	}
	return b.peekVal, b.peekErr
}

// ReadN reads exactly n bytes.
func (b *Reader) ReadN(n int) ([]byte, error) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := b.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Pos returns the number of bytes consumed so far, for error positioning.
func (b *Reader) Pos() int64 { return b.pos }
