//go:build unix

package covprobe

import "github.com/kolkov/covprobe/internal/cover/patch"

// MappedBuffer is instruction memory in its own anonymous mapping. Seal it
// read-only while executing; probes bound to a sealed buffer fail to patch
// instead of faulting.
type MappedBuffer = patch.MappedBuffer

// NewMappedBuffer maps a writable copy of code.
func NewMappedBuffer(code []byte) (*MappedBuffer, error) {
	return patch.NewMappedBuffer(code)
}
