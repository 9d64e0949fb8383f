// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddAnomalyDedupes(t *testing.T) {
	var anomalies []string
	anomalies = addAnomaly(anomalies, AnoEmptySegment)
	anomalies = addAnomaly(anomalies, AnoEmptySegment)
	anomalies = addAnomaly(anomalies, AnoHighVersionClass)
	assert.Len(t, anomalies, 2)
	assert.True(t, stringInSlice(AnoEmptySegment, anomalies))
	assert.True(t, stringInSlice(AnoHighVersionClass, anomalies))
}

func TestStringInSliceMissing(t *testing.T) {
	assert.False(t, stringInSlice("nope", []string{AnoEmptySegment}))
}
