package sink

import (
	"fmt"
	"sort"
)

// Table maps file identifiers to their sinks.
//
// A file must be opened before probes of that file can record into the
// table; Lookup on an unopened file fails with ErrMissing.
type Table struct {
	kind  Kind
	files map[string]*Sink
}

// NewTable returns an empty table whose sinks have the given kind.
func NewTable(kind Kind) *Table {
	return &Table{kind: kind, files: make(map[string]*Sink)}
}

// Kind returns the shape of sinks created by Open.
func (t *Table) Kind() Kind {
	return t.kind
}

// Open returns the sink for file, creating an empty one if needed.
func (t *Table) Open(file string) *Sink {
	s, ok := t.files[file]
	if !ok {
		s = New(t.kind)
		t.files[file] = s
	}
	return s
}

// Put installs s as the sink for file, replacing any existing entry.
func (t *Table) Put(file string, s *Sink) {
	t.files[file] = s
}

// Lookup returns the sink for file.
func (t *Table) Lookup(file string) (*Sink, error) {
	s, ok := t.files[file]
	if !ok || s == nil {
		return nil, fmt.Errorf("%s: %w", file, ErrMissing)
	}
	return s, nil
}

// Files returns the opened files in ascending order.
func (t *Table) Files() []string {
	files := make([]string, 0, len(t.files))
	for f := range t.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Fresh returns an empty table of the same kind with the same files opened.
// Owners swap in the fresh table and then read the old one at leisure.
func (t *Table) Fresh() *Table {
	n := NewTable(t.kind)
	for f := range t.files {
		n.Open(f)
	}
	return n
}

// Empty reports whether no sink in the table holds any point.
func (t *Table) Empty() bool {
	for _, s := range t.files {
		if s != nil && s.Len() > 0 {
			return false
		}
	}
	return true
}
