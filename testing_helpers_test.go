// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pack200

import "bytes"

// bytesReader builds an io.Reader from literal bytes, for tests that hand
// craft small band streams.
func bytesReader(bs ...byte) *bytes.Reader {
	return bytes.NewReader(bs)
}
