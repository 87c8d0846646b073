package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, 1024},
		{0, 1024},
		{1, 1024},
		{1024, 1024},
		{1025, 2048},
		{1500, 2048},
		{10000, 10240},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sizeClass(tt.in), "n=%d", tt.in)
	}
}

func TestGetFloat64_ZeroedAfterReuse(t *testing.T) {
	buf := GetFloat64(3000)
	require.Len(t, buf, 3000)
	assert.GreaterOrEqual(t, cap(buf), 3000)
	for i := range buf {
		buf[i] = float64(i) + 1
	}
	PutFloat64(buf)

	// Whether or not the pool hands the same buffer back, it must be clean.
	for range 10 {
		again := GetFloat64(2500)
		require.Len(t, again, 2500)
		for i, v := range again {
			if v != 0 {
				t.Fatalf("index %d holds %v", i, v)
			}
		}
		PutFloat64(again)
	}
}

func TestPutFloat64_IgnoresForeignBuffers(t *testing.T) {
	assert.NotPanics(t, func() {
		PutFloat64(nil)
		PutFloat64(make([]float64, 10))
		PutFloat64(make([]float64, 1000, 1500))
	})
	assert.Len(t, GetFloat64(10), 10)
}

func TestGetFloat64_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Go(func() {
			for i := range 50 {
				n := 512 * (g + i%4 + 1)
				buf := GetFloat64(n)
				if len(buf) != n {
					t.Errorf("len %d, want %d", len(buf), n)
				}
				buf[n-1] = 1
				PutFloat64(buf)
			}
		})
	}
	wg.Wait()
}
