// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"io"
	"os"

	"github.com/go-kratos/kratos/v2/log"
)

// Verbosity selects how much diagnostic log volume a Decoder emits (spec §6).
type Verbosity int

const (
	// VerbosityQuiet logs only errors.
	VerbosityQuiet Verbosity = iota
	// VerbosityStandard logs warnings and errors.
	VerbosityStandard
	// VerbosityVerbose logs everything, including per-band progress.
	VerbosityVerbose
)

func (v Verbosity) filterLevel() log.Level {
	switch v {
	case VerbosityVerbose:
		return log.LevelDebug
	case VerbosityStandard:
		return log.LevelWarn
	default:
		return log.LevelError
	}
}

// newHelper builds the logger a Decoder threads through every Segment,
// mirroring pe.New's construction of file.logger: a std logger filtered to
// a level, or the caller's own log.Logger if one was supplied via Options.
func newHelper(sink io.Writer, custom log.Logger, verbosity Verbosity) *log.Helper {
	if custom != nil {
		return log.NewHelper(custom)
	}
	if sink == nil {
		sink = os.Stdout
	}
	base := log.NewStdLogger(sink)
	return log.NewHelper(log.NewFilter(base, log.FilterLevel(verbosity.filterLevel())))
}
