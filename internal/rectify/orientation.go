package rectify

import (
	"math"

	"github.com/MeKo-Tech/formflow/internal/utils"
)

// Orientation is the page orientation bucket derived from the first page edge.
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
	VerticalUpsideDown
	UpsideDown
)

func (o Orientation) String() string {
	switch o {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case VerticalUpsideDown:
		return "vertical-upside-down"
	case UpsideDown:
		return "upside-down"
	default:
		return "unknown"
	}
}

// unit destination corners, scaled by the canvas size.
var (
	cTL = utils.Point{X: 0, Y: 0}
	cTR = utils.Point{X: 1, Y: 0}
	cBR = utils.Point{X: 1, Y: 1}
	cBL = utils.Point{X: 0, Y: 1}
)

// destinationTable maps (orientation, mirrored) to the destination corner for
// each detected corner, in detection order.
var destinationTable = map[Orientation][2][4]utils.Point{
	//                 not mirrored          mirrored
	Horizontal:         {{cBR, cBL, cTL, cTR}, {cBR, cTR, cTL, cBL}},
	Vertical:           {{cTL, cBL, cBR, cTR}, {cBR, cTR, cTL, cBL}},
	VerticalUpsideDown: {{cTR, cBR, cBL, cTL}, {cBL, cTL, cTR, cBR}},
	UpsideDown:         {{cTR, cTL, cBL, cBR}, {cBR, cTR, cTL, cBL}},
}

// edgeAngle returns the angle of the vector a->b in degrees, in (-180, 180].
func edgeAngle(a, b utils.Point) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi
}

// classify buckets the page orientation by the angle between the first two
// corners and evaluates the bucket's mirroring check.
func classify(c [4]utils.Point) (Orientation, bool) {
	angle := edgeAngle(c[0], c[1])
	switch {
	case angle >= -45 && angle < 45:
		return Horizontal, c[0].Y > c[3].Y
	case angle >= 45 && angle < 135:
		return Vertical, c[0].Y > c[1].Y
	case angle >= -135 && angle < -45:
		return VerticalUpsideDown, c[2].Y > c[3].Y
	default:
		return UpsideDown, c[0].Y > c[3].Y
	}
}

// destinationCorners returns the canvas corners the detected corners map to.
func destinationCorners(o Orientation, mirrored bool, w, h float64) [4]utils.Point {
	row := destinationTable[o]
	unit := row[0]
	if mirrored {
		unit = row[1]
	}
	var out [4]utils.Point
	for i, p := range unit {
		out[i] = utils.Point{X: p.X * w, Y: p.Y * h}
	}
	return out
}

// fitAspect rotates the destination order by one corner when the page's long
// sides would land on the canvas's short sides. A landscape outline on a
// portrait canvas is read as a page turned a quarter clockwise. Square
// canvases and square outlines keep the table order.
func fitAspect(c, dst [4]utils.Point) ([4]utils.Point, bool) {
	var w, h, vertical, horizontal float64
	for i := range 4 {
		w, h = max(w, dst[i].X), max(h, dst[i].Y)
		j := (i + 1) % 4
		l := utils.Distance(c[i], c[j])
		if dst[i].X == dst[j].X {
			vertical += l
		} else {
			horizontal += l
		}
	}
	if w == h || vertical == horizontal || (vertical > horizontal) == (h > w) {
		return dst, false
	}
	var out [4]utils.Point
	for i := range 4 {
		out[i] = dst[(i+1)%4]
	}
	return out, true
}

// orderCorners arranges a quadrilateral the way traced page outlines are
// read: running down the left edge first (counter-clockwise on screen),
// starting at the topmost corner, leftmost on ties.
func orderCorners(quad []utils.Point) [4]utils.Point {
	pts := append([]utils.Point(nil), quad...)
	if utils.SignedArea(pts) > 0 {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	first := 0
	for i, p := range pts {
		if p.Y < pts[first].Y || (p.Y == pts[first].Y && p.X < pts[first].X) {
			first = i
		}
	}
	var out [4]utils.Point
	for i := range 4 {
		out[i] = pts[(first+i)%4]
	}
	return out
}
