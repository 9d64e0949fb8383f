// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenFileMissingPathReturnsError(t *testing.T) {
	_, err := OpenFile("/no/such/path.pack", nil)
	assert.Error(t, err)
}
