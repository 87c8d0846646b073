package rectify

import "errors"

var (
	// ErrNoPageBoundaryFound is returned when the binarized page has no contour at all.
	ErrNoPageBoundaryFound = errors.New("no page boundary found")
	// ErrInvalidPolygonApproximation is returned when the page outline does not reduce to 4 corners.
	ErrInvalidPolygonApproximation = errors.New("invalid polygon approximation")
	// ErrInvalidTransformMatrix is returned when no well-formed perspective transform exists.
	ErrInvalidTransformMatrix = errors.New("invalid perspective transform matrix")
)

// IsGeometryError reports whether err means the page could not be corrected.
func IsGeometryError(err error) bool {
	return errors.Is(err, ErrNoPageBoundaryFound) ||
		errors.Is(err, ErrInvalidPolygonApproximation) ||
		errors.Is(err, ErrInvalidTransformMatrix)
}
