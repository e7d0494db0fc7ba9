// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap provides read-only memory-mapped sample files.
package mmap // import "github.com/go-lpc/ctlab/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var errClosed = errors.New("mmap: closed")

// File is a read-only memory-mapped file.
type File struct {
	data []byte
	open bool
}

// Open maps the whole content of the named file.
func Open(name string) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", name, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mmap: could not stat %q: %w", name, err)
	}

	size := fi.Size()
	if size != int64(int(size)) {
		return nil, fmt.Errorf("mmap: file %q too large (%d bytes)", name, size)
	}

	m := &File{open: true}
	if size == 0 {
		return m, nil
	}

	m.data, err = unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not map %q: %w", name, err)
	}
	runtime.SetFinalizer(m, (*File).Close)
	return m, nil
}

// Close unmaps the file.
func (m *File) Close() error {
	if m == nil {
		return os.ErrInvalid
	}
	if !m.open {
		return nil
	}
	m.open = false
	runtime.SetFinalizer(m, nil)

	data := m.data
	m.data = nil
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}

// Len returns the size of the mapped file.
func (m *File) Len() int {
	return len(m.data)
}

// At returns the byte at index i.
func (m *File) At(i int) byte {
	return m.data[i]
}

// Bytes returns the mapped content. It is only valid until Close.
func (m *File) Bytes() []byte {
	return m.data
}

// ReadAt implements the io.ReaderAt interface.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	if m == nil {
		return 0, os.ErrInvalid
	}
	if !m.open {
		return 0, errClosed
	}
	if off < 0 || int64(len(m.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*File)(nil)
	_ io.Closer   = (*File)(nil)
)
