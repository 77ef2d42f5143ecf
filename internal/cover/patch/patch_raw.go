// Copyright 2026 The covprobe Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !(js || wasip1)

package patch

// raw writes the skip opcode straight into the bound buffer.
type raw struct{}

// Default returns the raw patcher on runtimes with addressable code.
func Default() CodePatcher {
	return raw{}
}

func (raw) Supported() bool {
	return true
}

func (raw) Bind(buf Buffer, offset int) (Site, error) {
	return bind(buf, offset)
}

func (raw) Patch(site Site) error {
	if err := site.Ready(); err != nil {
		return err
	}
	site.buf.Code()[site.off] = OpJumpForward
	return nil
}
