package rectify

import (
	"sort"

	"github.com/MeKo-Tech/formflow/internal/utils"
)

// component describes one 8-connected foreground region.
type component struct {
	label int32
	count int
	minX  int
	minY  int
	maxX  int
	maxY  int
}

// 8-neighborhood in clockwise screen order: E, SE, S, SW, W, NW, N, NE.
var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// labelComponents assigns a label to every 8-connected foreground region.
func labelComponents(mask []bool, w, h int) ([]int32, []component) {
	labels := make([]int32, w*h)
	var comps []component
	stack := make([]int, 0, 1024)
	next := int32(1)

	for y := range h {
		for x := range w {
			idx := y*w + x
			if !mask[idx] || labels[idx] != 0 {
				continue
			}
			c := component{label: next, minX: x, minY: y, maxX: x, maxY: y}
			labels[idx] = next
			stack = append(stack[:0], idx)
			for len(stack) > 0 {
				ci := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				cx, cy := ci%w, ci/w
				c.count++
				c.minX, c.maxX = min(c.minX, cx), max(c.maxX, cx)
				c.minY, c.maxY = min(c.minY, cy), max(c.maxY, cy)
				for i := range 8 {
					nx, ny := cx+ndx[i], cy+ndy[i]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if mask[ni] && labels[ni] == 0 {
						labels[ni] = next
						stack = append(stack, ni)
					}
				}
			}
			comps = append(comps, c)
			next++
		}
	}
	return labels, comps
}

// traceOuterContour follows the outer boundary of a labeled region with
// Moore-neighbor tracing, starting at its topmost-leftmost pixel.
// Collinear runs are collapsed to their end points.
func traceOuterContour(labels []int32, w, h int, c component) []utils.Point {
	isLabel := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == c.label
	}

	sx, sy := -1, -1
	for x := c.minX; x <= c.maxX; x++ {
		if isLabel(x, c.minY) {
			sx, sy = x, c.minY
			break
		}
	}
	if sx < 0 {
		return nil
	}

	pts := make([]utils.Point, 0, 64)
	add := func(x, y int) {
		p := utils.Point{X: float64(x), Y: float64(y)}
		if n := len(pts); n > 0 && pts[n-1] == p {
			return
		}
		if n := len(pts); n >= 2 {
			a, b := pts[n-2], pts[n-1]
			if (b.X-a.X)*(p.Y-b.Y)-(b.Y-a.Y)*(p.X-b.X) == 0 {
				pts = pts[:n-1]
			}
		}
		pts = append(pts, p)
	}
	add(sx, sy)

	cx, cy := sx, sy
	bx, by := sx-1, sy
	firstX, firstY := -1, -1
	for steps := 0; steps < 4*c.count+8; steps++ {
		start := (direction(bx-cx, by-cy) + 1) % 8
		nx, ny, found := -1, -1, false
		for k := range 8 {
			i := (start + k) % 8
			tx, ty := cx+ndx[i], cy+ndy[i]
			if isLabel(tx, ty) {
				nx, ny, found = tx, ty, true
				break
			}
			bx, by = tx, ty
		}
		if !found {
			break
		}
		// Back at the start about to repeat the first move: the loop is closed.
		if cx == sx && cy == sy && nx == firstX && ny == firstY {
			break
		}
		if firstX < 0 {
			firstX, firstY = nx, ny
		}
		cx, cy = nx, ny
		add(cx, cy)
	}

	if n := len(pts); n >= 2 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	return pts
}

func direction(dx, dy int) int {
	for i := range 8 {
		if ndx[i] == dx && ndy[i] == dy {
			return i
		}
	}
	return 0
}

// largestContour returns the outer contour enclosing the largest area.
func largestContour(mask []bool, w, h int) ([]utils.Point, float64, error) {
	labels, comps := labelComponents(mask, w, h)
	if len(comps) == 0 {
		return nil, 0, ErrNoPageBoundaryFound
	}

	// A contour through pixel centers never encloses more than its pixel
	// count, so regions are visited largest first and the scan stops early.
	sort.Slice(comps, func(i, j int) bool { return comps[i].count > comps[j].count })

	var best []utils.Point
	bestArea := -1.0
	for _, c := range comps {
		if float64(c.count) <= bestArea {
			break
		}
		contour := traceOuterContour(labels, w, h, c)
		if area := utils.PolygonArea(contour); area > bestArea {
			best, bestArea = contour, area
		}
	}
	if len(best) == 0 {
		return nil, 0, ErrNoPageBoundaryFound
	}
	return best, bestArea, nil
}
