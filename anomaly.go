// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

// Anomalies found while decoding a segment. None of these fail the
// decode outright; a caller inspects Segment.Anomalies afterward, the
// way a malware analyst inspects a PE's Anomalies list for oddities
// that don't make the file unloadable.
var (
	// AnoEmptySegment is reported when a segment declares zero classes
	// and zero files.
	AnoEmptySegment = "segment declares zero classes and zero files"

	// AnoOverflowAttrSlot is reported when an attribute definition's bit
	// index collides with a layout slot already bound in the table.
	AnoOverflowAttrSlot = "attribute definition overwrote an existing layout slot"

	// AnoUnresolvedCatchType is reported when an exception handler's
	// catch type index falls outside the Class subpool.
	AnoUnresolvedCatchType = "exception handler catch type out of range"

	// AnoAnonymousWithExplicitName is reported when an inner-class tuple
	// looks anonymous (all-digit simple name) but also carried an
	// explicit N entry, a combination real encoders never emit.
	AnoAnonymousWithExplicitName = "inner class tuple is anonymous but carries an explicit name"

	// AnoZeroLengthUTF8Run is reported when the UTF-8 bank's first entry
	// is non-empty, violating spec property 3.
	AnoZeroLengthUTF8Run = "constant pool's first UTF-8 entry is not empty"

	// AnoHighVersionClass is reported when a class's version exceeds the
	// newest major version this decoder was written against.
	AnoHighVersionClass = "class file major version is newer than this decoder's baseline"
)

func stringInSlice(s string, list []string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// addAnomaly appends a to anomalies if it is not already present.
func addAnomaly(anomalies []string, a string) []string {
	if !stringInSlice(a, anomalies) {
		return append(anomalies, a)
	}
	return anomalies
}
