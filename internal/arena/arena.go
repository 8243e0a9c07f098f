// Package arena stages variable-length bind values in native engine memory.
//
// The engine reads bound text and blobs by reference while a statement is
// stepped, so staged copies must outlive the bind call. An Arena records
// every allocation it hands out and frees them together on ReleaseAll.
package arena

import (
	"fmt"
	"unsafe"

	"modernc.org/libc"
	"modernc.org/libc/sys/types"
)

// AllocationError reports that the native allocator could not satisfy a
// request.
type AllocationError struct {
	Size int
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("arena: cannot allocate %d bytes of memory", e.Size)
}

// Allocation is a staged copy living in native memory.
type Allocation struct {
	Addr uintptr
	Size int
}

// Arena owns a set of native allocations made with the engine's allocator.
// It is not safe for concurrent use.
type Arena struct {
	tls    *libc.TLS
	allocs []Allocation
	limit  int
}

// New returns an empty Arena allocating through tls.
func New(tls *libc.TLS) *Arena {
	return &Arena{tls: tls}
}

// SetLimit caps the payload size of a single staged value; larger values
// fail with *AllocationError before any native memory is requested. Zero
// or a negative n removes the cap.
func (a *Arena) SetLimit(n int) { a.limit = n }

func (a *Arena) fits(n int) error {
	if a.limit > 0 && n > a.limit {
		return &AllocationError{Size: n}
	}
	return nil
}

// StageString copies s into native memory followed by a NUL terminator.
// The returned Size excludes the terminator.
func (a *Arena) StageString(s string) (Allocation, error) {
	if err := a.fits(len(s)); err != nil {
		return Allocation{}, err
	}
	p, err := a.malloc(len(s) + 1)
	if err != nil {
		return Allocation{}, err
	}
	mem := (*libc.RawMem)(unsafe.Pointer(p))[: len(s)+1 : len(s)+1]
	copy(mem, s)
	mem[len(s)] = 0
	return a.record(Allocation{Addr: p, Size: len(s)}), nil
}

// StageBytes copies b into native memory. Empty input still yields a
// non-zero address so the engine sees an empty blob rather than NULL.
func (a *Arena) StageBytes(b []byte) (Allocation, error) {
	if err := a.fits(len(b)); err != nil {
		return Allocation{}, err
	}
	n := len(b)
	if n == 0 {
		n = 1
	}
	p, err := a.malloc(n)
	if err != nil {
		return Allocation{}, err
	}
	if len(b) != 0 {
		copy((*libc.RawMem)(unsafe.Pointer(p))[:len(b):len(b)], b)
	}
	return a.record(Allocation{Addr: p, Size: len(b)}), nil
}

// Release frees a single allocation owned by a. Unknown allocations are
// ignored.
func (a *Arena) Release(al Allocation) {
	for i, cur := range a.allocs {
		if cur.Addr == al.Addr {
			libc.Xfree(a.tls, cur.Addr)
			a.allocs = append(a.allocs[:i], a.allocs[i+1:]...)
			return
		}
	}
}

// ReleaseAll frees every outstanding allocation. It is safe to call on an
// empty arena and to call repeatedly.
func (a *Arena) ReleaseAll() {
	for i := len(a.allocs) - 1; i >= 0; i-- {
		libc.Xfree(a.tls, a.allocs[i].Addr)
	}
	a.allocs = a.allocs[:0]
}

// Len returns the number of outstanding allocations.
func (a *Arena) Len() int { return len(a.allocs) }

func (a *Arena) malloc(n int) (uintptr, error) {
	p := libc.Xmalloc(a.tls, types.Size_t(n))
	if p == 0 {
		return 0, &AllocationError{Size: n}
	}
	return p, nil
}

func (a *Arena) record(al Allocation) Allocation {
	a.allocs = append(a.allocs, al)
	return al
}
