// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"encoding/binary"

	"github.com/gopack200/unpack200/internal/bitio"
)

// methodEndSentinel marks the end of one method's packed bytecode run
// within the shared opcode stream (spec §4.5 "pull packed bytecode bytes
// until read() == -1"). Real JVM and pseudo opcodes occupy 0-254, so 255
// is free to serve as that sentinel in unpack200's per-method-run wire
// layout (see DESIGN.md for why bytecode is laid out per-method rather
// than column-banded across the whole class set).
const methodEndSentinel = 255

// Pseudo-opcodes (spec §4.5 "Pseudo-opcode alphabet").
const (
	opGetstaticThis  = 202
	opPutstaticThis  = 203
	opGetfieldThis   = 204
	opPutfieldThis   = 205
	opInvokevirtualThis = 206
	opInvokespecialThis = 207
	opInvokestaticThis  = 208
	opAload0GetfieldThis  = 209
	opAload0PutfieldThis  = 210
	opAload0GetstaticThis = 211
	opAload0PutstaticThis = 212
	opAload0InvokevirtualThis = 213
	opAload0InvokespecialThis = 214
	opAload0InvokestaticThis  = 215

	opGetstaticSuper    = 216
	opPutstaticSuper    = 217
	opGetfieldSuper     = 218
	opPutfieldSuper     = 219
	opInvokevirtualSuper = 220
	opInvokespecialSuper = 221
	opInvokestaticSuper  = 222

	opAload0GetfieldSuper     = 223
	opAload0PutfieldSuper     = 224
	opAload0GetstaticSuper    = 225
	opAload0PutstaticSuper    = 226
	opAload0InvokevirtualSuper = 227
	opAload0InvokespecialSuper = 228
	opAload0InvokestaticSuper  = 229

	opInvokespecialThisInit  = 230
	opInvokespecialSuperInit = 231
	opInvokespecialNewInit   = 232

	opCldc      = 233
	opIldc      = 234
	opFldc      = 235
	opCldcW     = 236
	opIldcW     = 237
	opFldcW     = 238
	opLdc2WBase = 239

	opRefEscape  = 253
	opByteEscape = 254
)

// OperandSink names which band family a pseudo/real opcode's fabricated
// reference draws from (spec §4.5 table).
type OperandSink int

const (
	SinkNone OperandSink = iota
	SinkThisField
	SinkThisMethod
	SinkSuperField
	SinkSuperMethod
	SinkInitRef
	SinkEscRef
	SinkEsc
	SinkCPRef
)

// pseudoOpInfo describes one pseudo-opcode's expansion: the real opcode
// it stands in for, and where its operand reference is fabricated from.
type pseudoOpInfo struct {
	real byte
	sink OperandSink
	// aload0 prefixes an "aload_0" instruction before the expansion.
	aload0 bool
}

var pseudoOps = map[byte]pseudoOpInfo{
	opGetstaticThis:     {0xB2, SinkThisField, false},
	opPutstaticThis:     {0xB3, SinkThisField, false},
	opGetfieldThis:      {0xB4, SinkThisField, false},
	opPutfieldThis:      {0xB5, SinkThisField, false},
	opInvokevirtualThis: {0xB6, SinkThisMethod, false},
	opInvokespecialThis: {0xB7, SinkThisMethod, false},
	opInvokestaticThis:  {0xB8, SinkThisMethod, false},

	opAload0GetfieldThis:      {0xB4, SinkThisField, true},
	opAload0PutfieldThis:      {0xB5, SinkThisField, true},
	opAload0GetstaticThis:     {0xB2, SinkThisField, true},
	opAload0PutstaticThis:     {0xB3, SinkThisField, true},
	opAload0InvokevirtualThis: {0xB6, SinkThisMethod, true},
	opAload0InvokespecialThis: {0xB7, SinkThisMethod, true},
	opAload0InvokestaticThis:  {0xB8, SinkThisMethod, true},

	opGetstaticSuper:     {0xB2, SinkSuperField, false},
	opPutstaticSuper:     {0xB3, SinkSuperField, false},
	opGetfieldSuper:      {0xB4, SinkSuperField, false},
	opPutfieldSuper:      {0xB5, SinkSuperField, false},
	opInvokevirtualSuper: {0xB6, SinkSuperMethod, false},
	opInvokespecialSuper: {0xB7, SinkSuperMethod, false},
	opInvokestaticSuper:  {0xB8, SinkSuperMethod, false},

	opAload0GetfieldSuper:      {0xB4, SinkSuperField, true},
	opAload0PutfieldSuper:      {0xB5, SinkSuperField, true},
	opAload0GetstaticSuper:     {0xB2, SinkSuperField, true},
	opAload0PutstaticSuper:     {0xB3, SinkSuperField, true},
	opAload0InvokevirtualSuper: {0xB6, SinkSuperMethod, true},
	opAload0InvokespecialSuper: {0xB7, SinkSuperMethod, true},
	opAload0InvokestaticSuper:  {0xB8, SinkSuperMethod, true},

	opInvokespecialThisInit:  {0xB7, SinkInitRef, false},
	opInvokespecialSuperInit: {0xB7, SinkInitRef, false},
	opInvokespecialNewInit:   {0xB7, SinkInitRef, false},
}

// Instruction is one decoded, fully expanded JVM instruction, positioned
// both in the packed (pre-expansion) index space and the real code array.
type Instruction struct {
	PackedPC int
	RealPC   int
	Opcode   byte
	// Operand bytes in class-file layout. A CP index is carried
	// separately as a patch so the class-file assembler can remap it to
	// the per-class pool (mirrors newattr.go's cpPatch scheme). Branch
	// and switch targets are the label band's values written as-is; they
	// are not renumbered through the packed-to-real offset map.
	Operand []byte
	CPRef    *CPEntryRef
	CPRefOff int // byte offset within Operand to patch
}

// Code is one method's fully decoded, expanded bytecode (spec §3
// "Packed bytecode", §4.6 "Code attribute").
type Code struct {
	MaxStack, MaxLocals uint32
	Instructions        []Instruction
	Bytes               []byte // concatenated real bytecode
	// PackedToReal maps a packed instruction index to its real byte
	// offset (spec §4.5 "a byte-code-offset map computed during
	// emission").
	PackedToReal map[int]int
	CodeLength   int
}

// rawInstr is a pass-1 record: the opcode plus how many values of each
// kind it will consume in pass 2.
type rawInstr struct {
	packedIdx int
	opcode    byte
	wideSub   byte // valid when opcode == 196
	isWide    bool

	needsByte    bool
	needsShort   bool
	needsLocal   bool
	needsLocal2  bool // wide form, 2-byte local
	needsLabel   bool
	needsCPRef   bool
	isSwitch     bool
	switchIsTable bool
}

// scanMethodBytecode is pass 1 (spec §4.5 "first scan tallies operand
// counts per kind"): read raw opcode bytes from r until the method-end
// sentinel, recording one rawInstr per instruction.
func scanMethodBytecode(r *bitio.Reader) ([]rawInstr, error) {
	var out []rawInstr
	idx := 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, newErr(KindUnexpectedEOF, "bc.scan", r.Pos(), err)
		}
		if b == methodEndSentinel {
			break
		}
		ri := rawInstr{packedIdx: idx, opcode: b}
		if b == 196 { // wide
			sub, err := r.ReadByte()
			if err != nil {
				return nil, newErr(KindUnexpectedEOF, "bc.scan.wide", r.Pos(), err)
			}
			ri.isWide = true
			ri.wideSub = sub
			switch sub {
			case 0x84: // iinc
				ri.needsLocal2 = true
				ri.needsShort = true
			case 0x15, 0x16, 0x17, 0x18, 0x19, // iload/lload/fload/dload/aload
				0x36, 0x37, 0x38, 0x39, 0x3A, // istore/lstore/fstore/dstore/astore
				0xA9: // ret
				ri.needsLocal2 = true
			default:
				return nil, newErr(KindInconsistent, "bc.wide", r.Pos(), nil)
			}
		} else if b == 170 || b == 171 { // tableswitch / lookupswitch
			ri.isSwitch = true
			ri.switchIsTable = b == 170
			ri.needsLabel = true // at minimum the default label
		} else if info, ok := pseudoOps[b]; ok {
			_ = info
			ri.needsCPRef = true
		} else if b >= opCldc && b <= opLdc2WBase {
			ri.needsCPRef = true
		} else if b == opRefEscape {
			ri.needsCPRef = true
		} else if b == opByteEscape {
			ri.needsByte = true
		} else {
			k := classifyStdOpcode(b)
			ri.needsByte = k.imm1
			ri.needsShort = k.imm2
			ri.needsLocal = k.local
			ri.needsLabel = k.branch
			ri.needsCPRef = k.cpref
		}
		out = append(out, ri)
		idx++
	}
	return out, nil
}

// stdOpKind classifies a standard (non-pseudo) JVM opcode's operand
// shape for bandwidth-tallying purposes.
type stdOpKind struct {
	imm1, imm2, local, branch, cpref bool
}

func classifyStdOpcode(op byte) stdOpKind {
	switch {
	case op == 0x10: // bipush
		return stdOpKind{imm1: true}
	case op == 0x11: // sipush
		return stdOpKind{imm2: true}
	case op == 0x12: // ldc
		return stdOpKind{cpref: true}
	case op == 0x13 || op == 0x14: // ldc_w, ldc2_w
		return stdOpKind{cpref: true}
	case op == 0x15 || op == 0x16 || op == 0x17 || op == 0x18 || op == 0x19: // *load
		return stdOpKind{local: true}
	case op == 0x36 || op == 0x37 || op == 0x38 || op == 0x39 || op == 0x3A: // *store
		return stdOpKind{local: true}
	case op == 0x84: // iinc
		return stdOpKind{local: true, imm1: true}
	case op >= 0x99 && op <= 0xA8: // if*, goto, jsr
		return stdOpKind{branch: true}
	case op == 0xA9: // ret
		return stdOpKind{local: true}
	case op == 0xB2 || op == 0xB3 || op == 0xB4 || op == 0xB5: // get/putstatic/field
		return stdOpKind{cpref: true}
	case op == 0xB6 || op == 0xB7 || op == 0xB8: // invokevirtual/special/static
		return stdOpKind{cpref: true}
	case op == 0xB9: // invokeinterface
		return stdOpKind{cpref: true, imm2: true}
	case op == 0xBA: // invokedynamic
		return stdOpKind{cpref: true}
	case op == 0xBB || op == 0xBD || op == 0xC0 || op == 0xC1: // new, anewarray, checkcast, instanceof
		return stdOpKind{cpref: true}
	case op == 0xBC: // newarray
		return stdOpKind{imm1: true}
	case op == 0xC5: // multianewarray
		return stdOpKind{cpref: true, imm1: true}
	case op == 0xC6 || op == 0xC7: // ifnull, ifnonnull
		return stdOpKind{branch: true}
	case op == 0xC8 || op == 0xC9: // goto_w, jsr_w
		return stdOpKind{branch: true}
	default:
		return stdOpKind{}
	}
}

// DecodeMethodBytecode performs both passes of spec §4.5 for one
// method's packed bytecode run, returning fully expanded real bytecode
// with an index map for downstream attribute renumbering.
func DecodeMethodBytecode(r *bitio.Reader, bh *bandHeaders, maxStack, maxLocals uint32) (*Code, error) {
	raws, err := scanMethodBytecode(r)
	if err != nil {
		return nil, err
	}

	var nByte, nShort, nLocal, nCPRef, nSwitch int
	for _, ri := range raws {
		if ri.needsByte {
			nByte++
		}
		if ri.needsShort {
			nShort++
		}
		if ri.needsLocal || ri.needsLocal2 {
			nLocal++
		}
		if ri.needsCPRef {
			nCPRef++
		}
		if ri.isSwitch {
			nSwitch++
		}
	}

	bytes_, err := decodeWithMeta(r, bh, BYTE1, nByte)
	if err != nil {
		return nil, newErr(KindInconsistent, "bc.bytes", r.Pos(), err)
	}
	shorts, err := decodeWithMeta(r, bh, SIGNED5, nShort)
	if err != nil {
		return nil, newErr(KindInconsistent, "bc.shorts", r.Pos(), err)
	}
	locals, err := decodeWithMeta(r, bh, UNSIGNED5, nLocal)
	if err != nil {
		return nil, newErr(KindInconsistent, "bc.locals", r.Pos(), err)
	}
	cprefs, err := decodeWithMeta(r, bh, UNSIGNED5, nCPRef)
	if err != nil {
		return nil, newErr(KindInconsistent, "bc.cprefs", r.Pos(), err)
	}
	caseCounts, err := decodeWithMeta(r, bh, UNSIGNED5, nSwitch)
	if err != nil {
		return nil, newErr(KindInconsistent, "bc.casecounts", r.Pos(), err)
	}

	// Labels per switch are the case count plus the default (spec §8); a
	// plain branch instruction contributes its single target.
	nLabel := 0
	si := 0
	for _, ri := range raws {
		if ri.isSwitch {
			nLabel += int(caseCounts[si]) + 1
			si++
		} else if ri.needsLabel {
			nLabel++
		}
	}
	labels, err := decodeWithMeta(r, bh, BRANCH5, nLabel)
	if err != nil {
		return nil, newErr(KindInconsistent, "bc.labels", r.Pos(), err)
	}

	// bcCaseValue: one element per case for lookup-form switches, plus one
	// element carrying the "low" bound for each table-form switch (spec
	// §8: table-form switches still consume a single bcCaseValue element).
	nLookupCases := 0
	si = 0
	for _, ri := range raws {
		if ri.isSwitch {
			if ri.switchIsTable {
				nLookupCases++
			} else {
				nLookupCases += int(caseCounts[si])
			}
			si++
		}
	}
	caseValues, err := decodeWithMeta(r, bh, SIGNED5, nLookupCases)
	if err != nil {
		return nil, newErr(KindInconsistent, "bc.casevalues", r.Pos(), err)
	}

	bi, shi, li, lbi, ci, swi, cvi := 0, 0, 0, 0, 0, 0, 0

	instrs := make([]Instruction, 0, len(raws))
	packedToReal := make(map[int]int, len(raws))
	realOff := 0

	for _, ri := range raws {
		packedToReal[ri.packedIdx] = realOff
		inst := Instruction{PackedPC: ri.packedIdx, RealPC: realOff, Opcode: ri.opcode}

		switch {
		case ri.isWide:
			inst.Opcode = 196
			localVal := locals[li]
			li++
			if ri.wideSub == 0x84 {
				sVal := shorts[shi]
				shi++
				var ob [4]byte
				binary.BigEndian.PutUint16(ob[0:2], uint16(localVal))
				binary.BigEndian.PutUint16(ob[2:4], uint16(sVal))
				inst.Operand = append([]byte{ri.wideSub}, ob[:]...)
			} else {
				var ob [2]byte
				binary.BigEndian.PutUint16(ob[:], uint16(localVal))
				inst.Operand = append([]byte{ri.wideSub}, ob[:]...)
			}
			realOff += 1 + len(inst.Operand)

		case ri.isSwitch:
			cc := caseCounts[swi]
			def := labels[lbi]
			lbi++
			if ri.switchIsTable {
				// Table-form needs (cc) more branch targets, one per
				// consecutive case, plus low/high headers; we already
				// consumed the default above. Remaining labels for each
				// case are consumed sequentially below.
				low := caseValues[cvi]
				cvi++
				targets := make([]int64, cc)
				for k := 0; k < int(cc); k++ {
					targets[k] = labels[lbi]
					lbi++
				}
				inst.Operand = encodeTableSwitch(def, low, targets)
			} else {
				targets := make([]int64, cc)
				for k := 0; k < int(cc); k++ {
					targets[k] = labels[lbi]
					lbi++
				}
				vals := make([]int64, cc)
				for k := 0; k < int(cc); k++ {
					vals[k] = caseValues[cvi]
					cvi++
				}
				inst.Operand = encodeLookupSwitch(def, vals, targets)
			}
			swi++
			realOff += 1 + len(inst.Operand)

		case ri.opcode == opByteEscape:
			inst.Opcode = bytes_[bi] // escaped literal real opcode byte
			bi++
			realOff++

		case ri.opcode == opRefEscape || ri.opcode >= opCldc && ri.opcode <= opLdc2WBase ||
			func() bool { _, ok := pseudoOps[ri.opcode]; return ok }():
			real, operand, cpref, extra := expandCPOp(ri.opcode, cprefs[ci])
			ci++
			inst.Opcode = real
			inst.Operand = operand
			inst.CPRef = &cpref
			inst.CPRefOff = extra
			realOff += 1 + len(inst.Operand)

		default:
			k := classifyStdOpcode(ri.opcode)
			var ops []byte
			if k.imm1 {
				ops = append(ops, byte(bytes_[bi]))
				bi++
			}
			if k.imm2 {
				var b2 [2]byte
				binary.BigEndian.PutUint16(b2[:], uint16(shorts[shi]))
				ops = append(ops, b2[:]...)
				shi++
			}
			if k.local {
				ops = append(ops, byte(locals[li]))
				li++
			}
			if k.branch {
				tgt := labels[lbi]
				lbi++
				var b2 [2]byte
				binary.BigEndian.PutUint16(b2[:], uint16(tgt))
				ops = append(ops, b2[:]...)
			}
			if k.cpref {
				inst.CPRef = &CPEntryRef{Pool: SPClass, Index: uint32(cprefs[ci])}
				inst.CPRefOff = len(ops)
				var b2 [2]byte
				binary.BigEndian.PutUint16(b2[:], uint16(cprefs[ci]))
				ops = append(ops, b2[:]...)
				ci++
			}
			inst.Operand = ops
			realOff += 1 + len(ops)
		}

		instrs = append(instrs, inst)
	}

	code := &Code{
		MaxStack: maxStack, MaxLocals: maxLocals,
		Instructions: instrs, PackedToReal: packedToReal, CodeLength: realOff,
	}
	code.Bytes = renderInstructions(instrs)
	return code, nil
}

// expandCPOp expands a _this/_super/_init pseudo-opcode or a
// cldc/ildc/fldc typed-constant pseudo-opcode into its real opcode plus
// a 2-byte CP-ref operand (spec §4.5 "Implicit this rebinding").
func expandCPOp(op byte, cpVal int64) (real byte, operand []byte, ref CPEntryRef, offset int) {
	var pool Subpool = SPClass
	switch {
	case op >= opCldc && op <= opLdc2WBase:
		real = 0x12 // ldc; widened forms collapse to the same fabricated ref here
		pool = SPStringRef
	case op == opRefEscape:
		real = 0x12
		pool = SPClass
	default:
		info := pseudoOps[op]
		real = info.real
		switch info.sink {
		case SinkThisField, SinkSuperField:
			pool = SPFieldRef
		case SinkThisMethod, SinkSuperMethod, SinkInitRef:
			pool = SPMethodRef
		}
	}
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(cpVal))
	return real, b[:], CPEntryRef{Pool: pool, Index: uint32(cpVal)}, 0
}

func encodeTableSwitch(def, low int64, targets []int64) []byte {
	out := make([]byte, 0, 12+4*len(targets))
	var b4 [4]byte
	binary.BigEndian.PutUint32(b4[:], uint32(def))
	out = append(out, b4[:]...)
	binary.BigEndian.PutUint32(b4[:], uint32(low))
	out = append(out, b4[:]...) // low
	high := low
	if len(targets) > 0 {
		high = low + int64(len(targets)) - 1
	}
	binary.BigEndian.PutUint32(b4[:], uint32(high))
	out = append(out, b4[:]...) // high
	for _, t := range targets {
		binary.BigEndian.PutUint32(b4[:], uint32(t))
		out = append(out, b4[:]...)
	}
	return out
}

func encodeLookupSwitch(def int64, vals, targets []int64) []byte {
	out := make([]byte, 0, 8+8*len(targets))
	var b4 [4]byte
	binary.BigEndian.PutUint32(b4[:], uint32(def))
	out = append(out, b4[:]...)
	binary.BigEndian.PutUint32(b4[:], uint32(len(targets)))
	out = append(out, b4[:]...)
	for i := range targets {
		binary.BigEndian.PutUint32(b4[:], uint32(vals[i]))
		out = append(out, b4[:]...)
		binary.BigEndian.PutUint32(b4[:], uint32(targets[i]))
		out = append(out, b4[:]...)
	}
	return out
}

// renderInstructions concatenates every instruction's opcode + operand
// bytes into the method's final Code array.
func renderInstructions(instrs []Instruction) []byte {
	out := make([]byte, 0, len(instrs)*2)
	for _, in := range instrs {
		out = append(out, in.Opcode)
		out = append(out, in.Operand...)
	}
	return out
}

// Render produces the method's final bytecode, substituting every
// fabricated CP reference with the per-class pool index resolve
// returns. Instruction lengths are unchanged from the initial decode,
// so every PackedToReal offset stays valid against the rendered bytes.
func (c *Code) Render(resolve func(CPEntryRef) uint16) []byte {
	out := make([]byte, 0, c.CodeLength)
	for _, in := range c.Instructions {
		out = append(out, in.Opcode)
		if in.CPRef == nil || len(in.Operand) == 0 {
			out = append(out, in.Operand...)
			continue
		}
		op := append([]byte(nil), in.Operand...)
		idx := resolve(*in.CPRef)
		if in.CPRefOff+2 <= len(op) {
			binary.BigEndian.PutUint16(op[in.CPRefOff:in.CPRefOff+2], idx)
		}
		out = append(out, op...)
	}
	return out
}

// RemapOffset renumbers a packed bytecode index against code's real
// offset map (spec §4.5 "Exception tables and line-number/local-variable
// tables are renumbered against the same map"). An index past the end
// of the method maps to code length.
func (c *Code) RemapOffset(packedPC int) int {
	if off, ok := c.PackedToReal[packedPC]; ok {
		return off
	}
	return c.CodeLength
}
