// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"strings"

	"github.com/gopack200/unpack200/internal/bitio"
)

// FileEntry is one emitted archive member: a class file assembled from
// bands, or a resource file carried verbatim (spec §4.8 "File bands").
type FileEntry struct {
	Name     string
	ModtimeS int64 // seconds since the Pack200 epoch (spec §4.8)
	Deflate  bool
	Size     int64
	IsClass  bool
	ClassIdx int // index into the segment's decoded classes, when IsClass
	// Bytes holds resource payload bytes; nil for class files, whose
	// bytes come from the assembler instead (spec §4.8, §4.3).
	Bytes []byte
}

// decodeFileBands decodes the per-file name/modtime/options/size bands
// and, for non-class files, their raw payload (spec §4.8). classNames is
// the ordered list of class binary names already decoded from the class
// bands, consumed in order for files the header's class_count accounts
// for; fileCount is the *total* file count, so fileCount-classCount
// files are resources with explicit names.
func decodeFileBands(r *bitio.Reader, bh *bandHeaders, h *SegmentHeader, cp *ConstantPool, classNames []string) ([]FileEntry, error) {
	n := int(h.FileCount)
	if n == 0 {
		return nil, nil
	}

	var nameIdx []int64
	if h.HasOption(OptPerFileHeaders) {
		var err error
		nameIdx, err = decodeWithMeta(r, bh, UNSIGNED5, n)
		if err != nil {
			return nil, newErr(KindInconsistent, "file.name", r.Pos(), err)
		}
	}

	var sizeLo, sizeHi []int64
	sizeLo, err := decodeWithMeta(r, bh, UNSIGNED5, n)
	if err != nil {
		return nil, newErr(KindInconsistent, "file.size_lo", r.Pos(), err)
	}
	if h.HasOption(OptFileSizeHiPresent) {
		sizeHi, err = decodeWithMeta(r, bh, UNSIGNED5, n)
		if err != nil {
			return nil, newErr(KindInconsistent, "file.size_hi", r.Pos(), err)
		}
	}

	var modtimes []int64
	if h.HasOption(OptFileModtimePresent) {
		modtimes, err = decodeWithMeta(r, bh, DELTA5, n)
		if err != nil {
			return nil, newErr(KindInconsistent, "file.modtime", r.Pos(), err)
		}
	}

	var options []int64
	if h.HasOption(OptFileOptionsPresent) {
		options, err = decodeWithMeta(r, bh, UNSIGNED5, n)
		if err != nil {
			return nil, newErr(KindInconsistent, "file.options", r.Pos(), err)
		}
	}

	out := make([]FileEntry, n)
	classI := 0
	for i := 0; i < n; i++ {
		fe := FileEntry{}

		size := sizeLo[i]
		if sizeHi != nil {
			size = CombineHiLo(sizeHi[i], sizeLo[i])
		}
		fe.Size = size

		if modtimes != nil {
			fe.ModtimeS = h.ArchiveModtime + modtimes[i]
		} else {
			fe.ModtimeS = h.ArchiveModtime
		}

		fe.Deflate = h.HasOption(OptDefaultDeflateHint)
		if options != nil {
			fe.Deflate = options[i]&0x1 != 0
		}

		hasExplicitName := nameIdx != nil && nameIdx[i] != 0
		if hasExplicitName {
			idx := nameIdx[i] - 1
			if int(idx) >= len(cp.UTF8) {
				return nil, newErr(KindOutOfRange, "file.name", r.Pos(), nil)
			}
			fe.Name = cp.UTF8[idx]
		}

		if classI < len(classNames) && (!hasExplicitName || fe.Name == classNames[classI]+".class") {
			fe.IsClass = true
			fe.ClassIdx = classI
			if fe.Name == "" {
				fe.Name = classNames[classI] + ".class"
			}
			classI++
		} else if !hasExplicitName {
			// Non-class files with no explicit name never occur in a
			// well-formed segment (spec §4.8): every resource must name
			// itself. Surface that as an inconsistency rather than
			// silently guessing.
			return nil, newErr(KindInconsistent, "file.name", r.Pos(), nil)
		}

		out[i] = fe
	}

	// Payload bytes for resource files are packed back-to-back,
	// immediately following every band above, in file order (spec §4.8
	// "File bits").
	for i := range out {
		if out[i].IsClass {
			continue
		}
		if out[i].Size < 0 {
			return nil, newErr(KindOutOfRange, "file.bits", r.Pos(), nil)
		}
		buf, err := r.ReadN(int(out[i].Size))
		if err != nil {
			return nil, newErr(KindUnexpectedEOF, "file.bits", r.Pos(), err)
		}
		out[i].Bytes = buf
	}

	return out, nil
}

// resolveDeflate applies spec §4.8's emission-order priority: an
// explicit DeflateHint override on the Decoder beats the per-file
// option, which beats the archive-wide default.
func resolveDeflate(override DeflateHint, perFile bool) bool {
	switch override {
	case DeflateHintOn:
		return true
	case DeflateHintOff:
		return false
	default:
		return perFile
	}
}

// stripClassSuffix removes a trailing ".class" for display/lookup
// purposes (e.g. matching a file's name against a decoded class's
// binary name).
func stripClassSuffix(name string) string {
	return strings.TrimSuffix(name, ".class")
}
