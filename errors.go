// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import "fmt"

// Kind enumerates the error taxonomy that a failed segment decode surfaces
// to the host.
type Kind int

const (
	// KindUnexpectedEOF means the stream ended mid-element.
	KindUnexpectedEOF Kind = iota
	// KindBadMagic means the expected CA FE D0 0D preamble was not found.
	KindBadMagic
	// KindUnsupportedOption means a reserved option bit was set, or an
	// unimplemented union tag/CP return type was encountered.
	KindUnsupportedOption
	// KindBadCodec means a meta-codec escape referenced an invalid spec, or
	// codec parameters were out of range.
	KindBadCodec
	// KindOutOfRange means a decoded index fell outside its target subpool,
	// a count was negative, or arithmetic overflowed during widening.
	KindOutOfRange
	// KindLayoutParse means an attribute-layout string was malformed.
	KindLayoutParse
	// KindInconsistent means two bands' counts disagreed (e.g. bytecode
	// sub-band totals didn't match the first-pass tallies).
	KindInconsistent
)

func (k Kind) String() string {
	switch k {
	case KindUnexpectedEOF:
		return "UnexpectedEof"
	case KindBadMagic:
		return "BadMagic"
	case KindUnsupportedOption:
		return "UnsupportedOption"
	case KindBadCodec:
		return "BadCodec"
	case KindOutOfRange:
		return "OutOfRange"
	case KindLayoutParse:
		return "LayoutParse"
	case KindInconsistent:
		return "Inconsistent"
	default:
		return "Unknown"
	}
}

// DecodeError is the single typed error the core surfaces to a host. It
// carries a position hint: the band being decoded and a byte offset into
// the segment, so a caller can pinpoint which band of which segment failed
// without the core retrying (the decoder is deterministic, spec §7).
type DecodeError struct {
	Kind   Kind
	Band   string
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pack200: %s in band %q at offset %d: %v", e.Kind, e.Band, e.Offset, e.Err)
	}
	return fmt.Sprintf("pack200: %s in band %q at offset %d", e.Kind, e.Band, e.Offset)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// newErr builds a DecodeError for the given band/offset/cause.
func newErr(kind Kind, band string, offset int64, cause error) *DecodeError {
	return &DecodeError{Kind: kind, Band: band, Offset: offset, Err: cause}
}
