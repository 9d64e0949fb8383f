// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import "github.com/go-kratos/kratos/v2/log"

// DeflateHint controls whether emitted JAR entries honor per-file deflate
// hints or are forced one way (spec §6, `deflate_hint_override`).
type DeflateHint int

const (
	// DeflateHintAuto honors override -> per-file option -> archive default,
	// in that priority order (spec §4.8 "Emission order").
	DeflateHintAuto DeflateHint = iota
	// DeflateHintOn forces every entry to be deflated.
	DeflateHintOn
	// DeflateHintOff forces every entry to be stored.
	DeflateHintOff
)

// Default resource guardrails, in the spirit of the teacher's
// MaxDefaultCOFFSymbolsCount / MaxDefaultRelocEntriesCount.
const (
	// DefaultMaxClassCount bounds how many classes a single segment may
	// declare before decoding refuses to proceed, guarding against a
	// corrupt or hostile class_count value driving unbounded allocation.
	DefaultMaxClassCount = 1 << 20

	// DefaultMaxBandHeaderBytes bounds the band-headers sub-stream (§4.2)
	// read during segment-header parsing.
	DefaultMaxBandHeaderBytes = 1 << 24
)

// Options configures a Decoder. Mirrors pe.Options: a small set of
// overridable knobs plus a pluggable logger.
type Options struct {
	// HeaderOnly decodes only the segment header, constant pool,
	// attribute definitions and inner-class bands, skipping
	// class/bytecode/file bands entirely (spec §2's "Share"
	// column work for components 6-10 is skipped). Equivalent to the
	// teacher's Options.Fast.
	HeaderOnly bool

	// DeflateHint overrides the per-file deflate hint when not Auto.
	DeflateHint DeflateHint

	// Verbosity controls diagnostic log volume.
	Verbosity Verbosity

	// LogSink is the byte sink for diagnostics when Logger is nil.
	LogSink interface {
		Write(p []byte) (n int, err error)
	}

	// Logger, when set, replaces the default std logger entirely.
	Logger log.Logger

	// RemoveInputAfterSuccess is advisory to the host; the core never
	// touches the input stream's backing file.
	RemoveInputAfterSuccess bool

	// MaxClassCount bounds the class_count read from the segment header.
	// Zero means DefaultMaxClassCount.
	MaxClassCount uint32

	// MaxBandHeaderBytes bounds the band-headers sub-stream. Zero means
	// DefaultMaxBandHeaderBytes.
	MaxBandHeaderBytes uint32
}

func (o *Options) maxClassCount() uint32 {
	if o == nil || o.MaxClassCount == 0 {
		return DefaultMaxClassCount
	}
	return o.MaxClassCount
}

func (o *Options) maxBandHeaderBytes() uint32 {
	if o == nil || o.MaxBandHeaderBytes == 0 {
		return DefaultMaxBandHeaderBytes
	}
	return o.MaxBandHeaderBytes
}
