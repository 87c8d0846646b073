package utils

import "math"

// ArcLength returns the perimeter of a polyline, closing it when closed is set.
func ArcLength(pts []Point, closed bool) float64 {
	if len(pts) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += Distance(pts[i-1], pts[i])
	}
	if closed {
		total += Distance(pts[len(pts)-1], pts[0])
	}
	return total
}

// SignedArea returns the shoelace area of a closed polygon. In image
// coordinates (y down) a polygon that runs down its left edge first, i.e.
// counter-clockwise as seen on screen, has a negative area.
func SignedArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	sum := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return sum / 2
}

// PolygonArea returns the absolute area enclosed by pts.
func PolygonArea(pts []Point) float64 {
	return math.Abs(SignedArea(pts))
}

// ApproxClosedPolygon simplifies a closed contour with the Douglas-Peucker
// algorithm. The curve is split at two mutually distant points first so
// the result does not depend on where the contour starts. Output keeps the
// traversal direction of the input and begins at one of the split points.
func ApproxClosedPolygon(pts []Point, epsilon float64) []Point {
	n := len(pts)
	if n <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}

	a := farthestFrom(pts, 0)
	b := farthestFrom(pts, a)
	if a == b {
		return []Point{pts[a]}
	}

	first := chain(pts, a, b)
	second := chain(pts, b, a)

	out := make([]Point, 0, 8)
	out = append(out, simplifyChain(first, epsilon)...)
	rest := simplifyChain(second, epsilon)
	// Both chains share their endpoints; drop the duplicates.
	out = append(out, rest[1:len(rest)-1]...)
	return out
}

func farthestFrom(pts []Point, idx int) int {
	best, bestDist := idx, -1.0
	for i, p := range pts {
		if d := Distance(pts[idx], p); d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// chain returns pts[from..to] inclusive, wrapping around the end.
func chain(pts []Point, from, to int) []Point {
	n := len(pts)
	length := (to-from+n)%n + 1
	out := make([]Point, length)
	for i := range length {
		out[i] = pts[(from+i)%n]
	}
	return out
}

func simplifyChain(pts []Point, eps float64) []Point {
	keep := make([]bool, len(pts))
	keep[0] = true
	keep[len(pts)-1] = true
	dpSimplify(pts, 0, len(pts)-1, eps, keep)
	out := make([]Point, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		dpSimplify(pts, start, index, eps, keep)
		keep[index] = true
		dpSimplify(pts, index, end, eps, keep)
	}
}

func perpendicularDistance(p, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	return num / math.Hypot(vx, vy)
}
