// Package patch implements immediate deinstrumentation by in-place patching.
//
// A probe that has been bound to a byte offset in a live instruction buffer
// removes its own call site by overwriting one instruction with a
// skip-forward opcode. After the patch, execution jumps over the probe call
// and the probe is never entered again from that site.
//
// The capability is exposed through the CodePatcher interface. Default
// returns the implementation selected for the target runtime at build time:
//
//   - Runtimes with addressable instruction memory get a raw patcher that
//     writes OpJumpForward at the bound offset.
//   - js and wasip1 keep compiled code outside linear memory, so Default
//     returns Unsupported there. Its Supported method reports false, which
//     engines check at configuration time to disable immediate patching.
//
// Memory Model: patches are plain byte stores with no barriers. They are
// only safe while a single logical executor runs the patched code.
package patch

import (
	"errors"
	"fmt"
)

// OpJumpForward is the skip opcode written over an instrumented call site.
const OpJumpForward byte = 110

var (
	// ErrUnsupported is returned when the runtime cannot patch code in place.
	ErrUnsupported = errors.New("immediate patching unsupported on this runtime")

	// ErrInvalidBuffer is returned when a buffer cannot be resolved to a
	// writable byte address.
	ErrInvalidBuffer = errors.New("invalid instruction buffer")
)

// Buffer is a live, independently addressable instruction buffer.
type Buffer interface {
	// Code returns the buffer's bytes. Writes through the returned slice
	// must be visible to the executor running the buffer.
	Code() []byte

	// Writable reports whether the bytes may currently be modified.
	Writable() bool
}

// Site is a resolved, writable byte address inside a Buffer.
type Site struct {
	buf Buffer
	off int
}

// Offset returns the byte offset of the site within its buffer.
func (s Site) Offset() int {
	return s.off
}

// Valid reports whether the site refers to a byte.
func (s Site) Valid() bool {
	return s.buf != nil && s.off >= 0 && s.off < len(s.buf.Code())
}

// Ready reports whether the site can be patched now. A buffer that was
// sealed or unmapped after binding is not ready.
func (s Site) Ready() error {
	if s.buf == nil {
		return fmt.Errorf("unbound site: %w", ErrInvalidBuffer)
	}
	if !s.buf.Writable() {
		return fmt.Errorf("buffer is sealed: %w", ErrInvalidBuffer)
	}
	if n := len(s.buf.Code()); s.off < 0 || s.off >= n {
		return fmt.Errorf("offset %d outside buffer of %d bytes: %w", s.off, n, ErrInvalidBuffer)
	}
	return nil
}

// CodePatcher is the immediate-patch capability.
type CodePatcher interface {
	// Supported reports whether this patcher can write instruction bytes.
	Supported() bool

	// Bind resolves offset inside buf to a writable Site.
	Bind(buf Buffer, offset int) (Site, error)

	// Patch writes the skip opcode at site. It fails, writing nothing,
	// when the site is no longer Ready.
	Patch(site Site) error
}

// bind validates buf and offset for patchers that write raw bytes.
func bind(buf Buffer, offset int) (Site, error) {
	if buf == nil {
		return Site{}, fmt.Errorf("nil buffer: %w", ErrInvalidBuffer)
	}
	if !buf.Writable() {
		return Site{}, fmt.Errorf("buffer is sealed: %w", ErrInvalidBuffer)
	}
	site := Site{buf: buf, off: offset}
	if err := site.Ready(); err != nil {
		return Site{}, err
	}
	return site, nil
}

// unsupported is the patcher for runtimes without raw instruction memory.
type unsupported struct{}

// Unsupported returns a patcher that refuses every binding.
func Unsupported() CodePatcher {
	return unsupported{}
}

func (unsupported) Supported() bool {
	return false
}

func (unsupported) Bind(Buffer, int) (Site, error) {
	return Site{}, ErrUnsupported
}

// Patch always fails: no Site can be bound through this patcher.
func (unsupported) Patch(Site) error {
	return ErrUnsupported
}

// Bytes is a heap-backed instruction buffer. It is always writable.
type Bytes []byte

// Code returns b.
func (b Bytes) Code() []byte {
	return b
}

// Writable returns true.
func (b Bytes) Writable() bool {
	return true
}
