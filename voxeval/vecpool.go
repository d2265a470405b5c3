package voxeval

import (
	"fmt"

	"github.com/soypat/geometry/ms3"
)

// VecPool provides reusable scratch buffers to evaluators so that nested
// evaluation (unions of transformed shapes) does not allocate on every call.
// A VecPool is not safe for concurrent use.
type VecPool struct {
	V3   bufPool[ms3.Vec]
	Bool bufPool[bool]
	Int  bufPool[int]
}

// AssertAllReleased returns an error if any buffer acquired from the pool has not been released.
func (vp *VecPool) AssertAllReleased() error {
	if err := vp.V3.assertAllReleased(); err != nil {
		return fmt.Errorf("V3: %w", err)
	}
	if err := vp.Bool.assertAllReleased(); err != nil {
		return fmt.Errorf("Bool: %w", err)
	}
	if err := vp.Int.assertAllReleased(); err != nil {
		return fmt.Errorf("Int: %w", err)
	}
	return nil
}

type bufPool[T any] struct {
	bufs     [][]T
	acquired []bool
}

// Acquire returns a buffer of length n. The buffer's contents are undefined.
func (bp *bufPool[T]) Acquire(n int) []T {
	for i, buf := range bp.bufs {
		if !bp.acquired[i] && cap(buf) >= n {
			bp.acquired[i] = true
			return buf[:n]
		}
	}
	buf := make([]T, n)
	bp.bufs = append(bp.bufs, buf)
	bp.acquired = append(bp.acquired, true)
	return buf
}

// Release returns a buffer obtained from Acquire to the pool.
func (bp *bufPool[T]) Release(buf []T) error {
	if cap(buf) == 0 {
		return fmt.Errorf("release of zero capacity buffer")
	}
	for i, b := range bp.bufs {
		if cap(b) == cap(buf) && &b[:cap(b)][0] == &buf[:cap(buf)][0] {
			if !bp.acquired[i] {
				return fmt.Errorf("double release of buffer")
			}
			bp.acquired[i] = false
			return nil
		}
	}
	return fmt.Errorf("release of buffer not owned by pool")
}

func (bp *bufPool[T]) assertAllReleased() error {
	for i, acq := range bp.acquired {
		if acq {
			return fmt.Errorf("buffer %d of length %d not released", i, len(bp.bufs[i]))
		}
	}
	return nil
}
