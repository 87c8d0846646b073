// Package mempool recycles the large per-image scratch buffers used while
// describing scans and templates.
package mempool

import "sync"

var float64Pools sync.Map // size class -> *sync.Pool

// sizeClass rounds n up to a multiple of 1024, with 1024 as the minimum.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func float64Pool(cls int) *sync.Pool {
	p, _ := float64Pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]float64, cls)
		return &buf
	}})
	return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// GetFloat64 returns a zeroed buffer of length n. Return it with PutFloat64.
func GetFloat64(n int) []float64 {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	bp, _ := float64Pool(cls).Get().(*[]float64)
	if bp == nil || cap(*bp) < cls {
		return make([]float64, cls)[:n]
	}
	buf := (*bp)[:n]
	clear(buf)
	return buf
}

// PutFloat64 hands buf back for reuse. Nil is ignored.
func PutFloat64(buf []float64) {
	if buf == nil {
		return
	}
	// Buffers that are not exactly a class size came from elsewhere.
	c := cap(buf)
	if sizeClass(c) != c {
		return
	}
	buf = buf[:c]
	float64Pool(c).Put(&buf)
}
