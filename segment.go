// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"github.com/go-kratos/kratos/v2/log"

	"github.com/gopack200/unpack200/internal/bitio"
)

// Segment is one fully decoded Pack200 segment: its header, constant
// pool, attribute-layout table, inner-class table, decoded classes, and
// emitted files (spec §2 "Segment"), plus anything the decoder flagged
// along the way without treating it as fatal.
type Segment struct {
	Header    *SegmentHeader
	CP        *ConstantPool
	AttrTable *AttrLayoutTable
	ICTuples  []IcTuple
	Classes   []*ClassInfo
	Files     []FileEntry
	Anomalies []string
}

// DecodeSegment runs the full component pipeline of spec §2 over one
// segment: header, constant pool, attribute definitions, inner-class
// bands, class bands (which pull bytecode bands internally through
// Code attributes), then file bands.
func DecodeSegment(r *bitio.Reader, opts *Options, logger *log.Helper) (*Segment, error) {
	h, bh, err := ReadSegmentHeader(r, opts.maxBandHeaderBytes())
	if err != nil {
		return nil, err
	}
	if h.ClassCount > opts.maxClassCount() {
		return nil, newErr(KindOutOfRange, "header.class_count", r.Pos(), nil)
	}
	logger.Debugw("msg", "segment header decoded", "classes", h.ClassCount, "files", h.FileCount)

	cp, err := DecodeConstantPool(r, bh, h.CP)
	if err != nil {
		return nil, err
	}

	seg := &Segment{Header: h, CP: cp}
	if len(cp.UTF8) > 0 && cp.UTF8[0] != "" {
		seg.Anomalies = addAnomaly(seg.Anomalies, AnoZeroLengthUTF8Run)
	}

	table := NewAttrLayoutTable()
	attrDefCount, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
	if err != nil {
		return nil, newErr(KindInconsistent, "attrdef.count", r.Pos(), err)
	}
	if err := DecodeAttrDefinitionBands(r, bh, uint32(attrDefCount[0]), cp, h.HasOption(OptClassFlagsHi), table); err != nil {
		return nil, err
	}
	if len(table.all) > len(table.byKey) {
		seg.Anomalies = addAnomaly(seg.Anomalies, AnoOverflowAttrSlot)
	}
	seg.AttrTable = table

	icCount, err := decodeWithMeta(r, bh, UNSIGNED5, 1)
	if err != nil {
		return nil, newErr(KindInconsistent, "ic.count", r.Pos(), err)
	}
	ic, err := DecodeICBands(r, bh, uint32(icCount[0]), cp)
	if err != nil {
		return nil, err
	}
	seg.ICTuples = ic
	for _, t := range ic {
		if t.IsAnonymous() && t.N != nil {
			seg.Anomalies = addAnomaly(seg.Anomalies, AnoAnonymousWithExplicitName)
		}
	}

	if opts.HeaderOnly {
		return seg, nil
	}

	classes, err := DecodeClassBands(r, bh, h, cp, table, ic)
	if err != nil {
		return nil, err
	}
	seg.Classes = classes
	for _, c := range classes {
		if c.MajorVersion > 66 { // baseline: Java SE 22
			seg.Anomalies = addAnomaly(seg.Anomalies, AnoHighVersionClass)
		}
		for _, m := range c.Methods {
			for _, a := range m.Attributes {
				if a.Code == nil {
					continue
				}
				for _, eh := range a.Code.Exceptions {
					if eh.CatchType != nil && int(eh.CatchType.Index) >= len(cp.Class) {
						seg.Anomalies = addAnomaly(seg.Anomalies, AnoUnresolvedCatchType)
					}
				}
			}
		}
	}

	classNames := make([]string, len(classes))
	for i, c := range classes {
		classNames[i] = c.Name
	}
	files, err := decodeFileBands(r, bh, h, cp, classNames)
	if err != nil {
		return nil, err
	}
	seg.Files = files

	if len(classes) == 0 && len(files) == 0 {
		seg.Anomalies = addAnomaly(seg.Anomalies, AnoEmptySegment)
	}

	return seg, nil
}

// Emit renders every class-carrying FileEntry's class bytes via the
// assembler, filling in FileEntry.Bytes so the archive writer has a
// uniform (name, bytes) stream regardless of whether an entry started
// life as a class or a resource (spec §4.3, §6).
func (s *Segment) Emit(override DeflateHint) []FileEntry {
	out := make([]FileEntry, len(s.Files))
	for i, f := range s.Files {
		f.Deflate = resolveDeflate(override, f.Deflate)
		if f.IsClass {
			f.Bytes = AssembleClass(s.CP, s.Classes[f.ClassIdx], s.ICTuples)
		}
		out[i] = f
	}
	return out
}
