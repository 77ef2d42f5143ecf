//go:build unix

package patch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MappedBuffer is an instruction buffer in its own anonymous mapping.
//
// Hosts that execute out of mapped pages seal them read-only while they are
// not being rewritten. A sealed or closed MappedBuffer reports
// Writable() == false; binding to it fails, and patching a site bound
// before the seal fails instead of faulting.
type MappedBuffer struct {
	mem    []byte
	sealed bool
}

// NewMappedBuffer maps a writable buffer holding a copy of code.
func NewMappedBuffer(code []byte) (*MappedBuffer, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("empty code: %w", ErrInvalidBuffer)
	}
	mem, err := unix.Mmap(-1, 0, len(code),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", len(code), err)
	}
	copy(mem, code)
	return &MappedBuffer{mem: mem}, nil
}

// Code returns the mapped bytes.
func (m *MappedBuffer) Code() []byte {
	return m.mem
}

// Writable reports whether the mapping is currently writable.
func (m *MappedBuffer) Writable() bool {
	return m.mem != nil && !m.sealed
}

// Seal makes the mapping read-only.
func (m *MappedBuffer) Seal() error {
	if err := unix.Mprotect(m.mem, unix.PROT_READ); err != nil {
		return fmt.Errorf("seal: %w", err)
	}
	m.sealed = true
	return nil
}

// Unseal makes the mapping writable again.
func (m *MappedBuffer) Unseal() error {
	if err := unix.Mprotect(m.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("unseal: %w", err)
	}
	m.sealed = false
	return nil
}

// Close unmaps the buffer. Sites bound to it stop being Ready.
func (m *MappedBuffer) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	return err
}
