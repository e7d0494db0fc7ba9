// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scope

// Reader reads values from the sample memory, one storage round trip
// per call to Next. A Reader cannot be rewound.
//
//	r := sc.Read(0x100, 16)
//	for r.Next() {
//		fmt.Printf("0x%x: %d\n", r.Address(), r.Value())
//	}
//	if err := r.Err(); err != nil {
//		...
//	}
type Reader struct {
	sc    *StorageController
	start uint32
	n     int

	i       int // index of the next value
	started bool
	done    bool

	addr uint32
	val  uint8
	err  error
}

// Next reads the next value. It returns false once all values were read
// or an error occurred. The storage is released after the last value.
func (r *Reader) Next() bool {
	if r.done || r.err != nil {
		return false
	}

	if !r.started {
		r.started = true
		r.err = r.sc.finishWrite(Read)
		if r.err != nil {
			return false
		}
	}

	if r.i >= r.n {
		r.release()
		return false
	}

	v, err := r.read()
	if err != nil {
		r.err = err
		return false
	}
	r.addr = r.start + uint32(r.i)
	r.val = v
	r.i++
	return true
}

func (r *Reader) read() (uint8, error) {
	sc := r.sc
	if sc.cfg.handshake || !sc.cfg.optimize {
		return sc.readAt(r.start + uint32(r.i))
	}

	// the value of an address is shifted out while setting the next one:
	// the first query only primes the pipeline and the last address is
	// flushed out by reading the start address again.
	if r.i == 0 {
		_, err := sc.readAt(r.start)
		if err != nil {
			return 0, err
		}
	}
	next := r.start
	if r.i+1 < r.n {
		next = r.start + uint32(r.i) + 1
	}
	return sc.readAt(next)
}

func (r *Reader) release() {
	r.done = true
	if err := r.sc.SetMode(Release); err != nil && r.err == nil {
		r.err = err
	}
}

// Value returns the last value read.
func (r *Reader) Value() uint8 { return r.val }

// Address returns the address of the last value read.
func (r *Reader) Address() uint32 { return r.addr }

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

// Close releases the storage if the reader was not exhausted.
func (r *Reader) Close() error {
	if !r.started || r.done {
		r.done = true
		return r.err
	}
	r.release()
	return r.err
}
