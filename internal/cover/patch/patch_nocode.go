// Copyright 2026 The covprobe Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build js || wasip1

package patch

// Default returns Unsupported: WebAssembly code is not addressable memory.
func Default() CodePatcher {
	return Unsupported()
}
