// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"bytes"

	"github.com/gopack200/unpack200/internal/bitio"
)

// Magic is the fixed four-byte preamble every Pack200 segment begins
// with (spec §4.2, §6).
var Magic = [4]byte{0xCA, 0xFE, 0xD0, 0x0D}

// Archive option bits (spec §4.2).
const (
	OptSpecialFormats     = 1 << 0
	OptCPNumberCounts     = 1 << 1
	OptAllMethodsHaveCode = 1 << 2
	OptPerFileHeaders     = 1 << 4
	OptDefaultDeflateHint = 1 << 5
	OptFileModtimePresent = 1 << 6
	OptFileOptionsPresent = 1 << 7
	OptFileSizeHiPresent  = 1 << 8
	OptClassFlagsHi       = 1 << 9
	OptCodeFieldFlagsHi   = 1 << 10
	OptMethodFlagsHi      = 1 << 11

	// optReservedMask covers every bit this spec does not assign meaning
	// to; a segment that sets any of them is rejected (spec §4.2 "others
	// reserved and must be zero").
	optReservedMask = ^uint32(0) &^ (OptSpecialFormats | OptCPNumberCounts |
		OptAllMethodsHaveCode | OptPerFileHeaders | OptDefaultDeflateHint |
		OptFileModtimePresent | OptFileOptionsPresent | OptFileSizeHiPresent |
		OptClassFlagsHi | OptCodeFieldFlagsHi | OptMethodFlagsHi | (1 << 3))
)

// CPCounts holds the twelve constant-pool subpool sizes in fixed archive
// order (spec §3 "Segment constant pool").
type CPCounts struct {
	UTF8, Int, Float, Long, Double                   uint32
	StringRef, Class, Signature, Descriptor           uint32
	FieldRef, MethodRef, InterfaceMethodRef           uint32
}

// SegmentHeader is the fixed preamble of a segment (spec §4.2).
type SegmentHeader struct {
	MinorVersion, MajorVersion uint16
	Options                    uint32
	CP                         CPCounts
	ClassCount                 uint32
	FileCount                  uint32
	DefaultClassMinorVersion   uint16
	DefaultClassMajorVersion   uint16
	ArchiveSize                int64
	ArchiveModtime             int64
}

// HasOption reports whether the given option bit is set.
func (h *SegmentHeader) HasOption(bit uint32) bool { return h.Options&bit != 0 }

// readUnsigned5 is a small convenience for header fields that are always
// decoded with the default (no meta-codec escape applies at header-read
// time, since no band-headers stream exists yet).
func readUnsigned5(r *bitio.Reader) (int64, error) {
	v, err := UNSIGNED5.Decode(r, 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// ReadSegmentHeader parses the fixed preamble and the band-headers
// override sub-stream (spec §4.2), returning both the header and a
// bandHeaders reader ready for meta-codec escapes in later bands.
func ReadSegmentHeader(r *bitio.Reader, maxBandHeaderBytes uint32) (*SegmentHeader, *bandHeaders, error) {
	magic, err := r.ReadN(4)
	if err != nil {
		return nil, nil, newErr(KindUnexpectedEOF, "header.magic", r.Pos(), err)
	}
	if !bytes.Equal(magic, Magic[:]) {
		return nil, nil, newErr(KindBadMagic, "header.magic", r.Pos(), nil)
	}

	h := &SegmentHeader{}

	minor, err := r.ReadN(2)
	if err != nil {
		return nil, nil, newErr(KindUnexpectedEOF, "header.minor_version", r.Pos(), err)
	}
	h.MinorVersion = uint16(minor[0]) | uint16(minor[1])<<8

	major, err := r.ReadN(2)
	if err != nil {
		return nil, nil, newErr(KindUnexpectedEOF, "header.major_version", r.Pos(), err)
	}
	h.MajorVersion = uint16(major[0]) | uint16(major[1])<<8

	opts, err := readUnsigned5(r)
	if err != nil {
		return nil, nil, newErr(KindUnexpectedEOF, "header.options", r.Pos(), err)
	}
	h.Options = uint32(opts)
	if h.Options&optReservedMask != 0 {
		return nil, nil, newErr(KindUnsupportedOption, "header.options", r.Pos(), nil)
	}

	bandHeaderByteCount, err := readUnsigned5(r)
	if err != nil {
		return nil, nil, newErr(KindUnexpectedEOF, "header.band_headers_count", r.Pos(), err)
	}
	if bandHeaderByteCount < 0 || uint32(bandHeaderByteCount) > maxBandHeaderBytes {
		return nil, nil, newErr(KindOutOfRange, "header.band_headers_count", r.Pos(), nil)
	}
	bhBytes, err := r.ReadN(int(bandHeaderByteCount))
	if err != nil {
		return nil, nil, newErr(KindUnexpectedEOF, "header.band_headers", r.Pos(), err)
	}
	bh := &bandHeaders{r: bitio.NewReader(bytes.NewReader(bhBytes))}

	readCount := func(name string) (uint32, error) {
		v, err := readUnsigned5(r)
		if err != nil {
			return 0, newErr(KindUnexpectedEOF, name, r.Pos(), err)
		}
		if v < 0 {
			return 0, newErr(KindOutOfRange, name, r.Pos(), nil)
		}
		return uint32(v), nil
	}

	var e error
	if h.CP.UTF8, e = readCount("header.cp_utf8_count"); e != nil {
		return nil, nil, e
	}
	if h.HasOption(OptCPNumberCounts) {
		if h.CP.Int, e = readCount("header.cp_int_count"); e != nil {
			return nil, nil, e
		}
		if h.CP.Float, e = readCount("header.cp_float_count"); e != nil {
			return nil, nil, e
		}
		if h.CP.Long, e = readCount("header.cp_long_count"); e != nil {
			return nil, nil, e
		}
		if h.CP.Double, e = readCount("header.cp_double_count"); e != nil {
			return nil, nil, e
		}
	}
	if h.CP.StringRef, e = readCount("header.cp_string_count"); e != nil {
		return nil, nil, e
	}
	if h.CP.Class, e = readCount("header.cp_class_count"); e != nil {
		return nil, nil, e
	}
	if h.CP.Signature, e = readCount("header.cp_signature_count"); e != nil {
		return nil, nil, e
	}
	if h.CP.Descriptor, e = readCount("header.cp_descriptor_count"); e != nil {
		return nil, nil, e
	}
	if h.CP.FieldRef, e = readCount("header.cp_field_count"); e != nil {
		return nil, nil, e
	}
	if h.CP.MethodRef, e = readCount("header.cp_method_count"); e != nil {
		return nil, nil, e
	}
	if h.CP.InterfaceMethodRef, e = readCount("header.cp_imethod_count"); e != nil {
		return nil, nil, e
	}

	if h.ClassCount, e = readCount("header.class_count"); e != nil {
		return nil, nil, e
	}
	if h.FileCount, e = readCount("header.file_count"); e != nil {
		return nil, nil, e
	}

	dcv, err := r.ReadN(4)
	if err != nil {
		return nil, nil, newErr(KindUnexpectedEOF, "header.default_class_version", r.Pos(), err)
	}
	h.DefaultClassMinorVersion = uint16(dcv[0]) | uint16(dcv[1])<<8
	h.DefaultClassMajorVersion = uint16(dcv[2]) | uint16(dcv[3])<<8

	size, err := UDELTA5.Decode(r, 1)
	if err != nil {
		return nil, nil, newErr(KindUnexpectedEOF, "header.archive_size", r.Pos(), err)
	}
	h.ArchiveSize = size[0]

	modtime, err := UDELTA5.Decode(r, 1)
	if err != nil {
		return nil, nil, newErr(KindUnexpectedEOF, "header.archive_modtime", r.Pos(), err)
	}
	h.ArchiveModtime = modtime[0]

	if h.ClassCount > 1<<24 {
		return nil, nil, newErr(KindOutOfRange, "header.class_count", r.Pos(), nil)
	}

	return h, bh, nil
}
