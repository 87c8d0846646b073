package rectify

import (
	"math"

	"github.com/MeKo-Tech/formflow/internal/utils"
)

// Matrix is a row-major 3x3 perspective transform.
type Matrix [9]float64

// perspectiveTransform computes the matrix mapping p[i] -> q[i] with h22 fixed at 1.
func perspectiveTransform(p, q [4]utils.Point) (Matrix, bool) {
	var a [8][8]float64
	var b [8]float64
	for i := range 4 {
		X, Y := p[i].X, p[i].Y
		x, y := q[i].X, q[i].Y
		r := 2 * i
		// x' = (h00 X + h01 Y + h02)/(h20 X + h21 Y + 1)
		a[r] = [8]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x}
		b[r] = x
		// y' = (h10 X + h11 Y + h12)/(h20 X + h21 Y + 1)
		a[r+1] = [8]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y}
		b[r+1] = y
	}

	h, ok := solve8x8(a, b)
	if !ok {
		return Matrix{}, false
	}
	return Matrix{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}, true
}

// solve8x8 runs Gauss-Jordan elimination with partial pivoting.
func solve8x8(a [8][8]float64, b [8]float64) ([8]float64, bool) {
	for col := range 8 {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [8]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		div := a[col][col]
		for c := col; c < 8; c++ {
			a[col][c] /= div
		}
		b[col] /= div

		for r := range 8 {
			if r == col || a[r][col] == 0 {
				continue
			}
			f := a[r][col]
			for c := col; c < 8; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}
	return b, true
}

// Apply maps (x, y) through the transform. Points sent to infinity come back
// far outside any image.
func (m Matrix) Apply(x, y float64) (float64, float64) {
	denom := m[6]*x + m[7]*y + m[8]
	if denom == 0 {
		return -1e9, -1e9
	}
	return (m[0]*x + m[1]*y + m[2]) / denom, (m[3]*x + m[4]*y + m[5]) / denom
}

func (m Matrix) det() float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Valid reports whether m is a finite, invertible transform.
func (m Matrix) Valid() bool {
	for _, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	d := m.det()
	return d != 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}

// Inverse returns the inverse transform via the adjugate.
func (m Matrix) Inverse() (Matrix, bool) {
	d := m.det()
	if d == 0 || math.IsNaN(d) {
		return Matrix{}, false
	}
	inv := Matrix{
		m[4]*m[8] - m[5]*m[7], m[2]*m[7] - m[1]*m[8], m[1]*m[5] - m[2]*m[4],
		m[5]*m[6] - m[3]*m[8], m[0]*m[8] - m[2]*m[6], m[2]*m[3] - m[0]*m[5],
		m[3]*m[7] - m[4]*m[6], m[1]*m[6] - m[0]*m[7], m[0]*m[4] - m[1]*m[3],
	}
	for i := range inv {
		inv[i] /= d
	}
	return inv, inv.Valid()
}
