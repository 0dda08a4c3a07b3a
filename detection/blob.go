package detection

import (
	"image"
	"math"
)

// Kind tags the segmentation a blob came from.
type Kind string

const (
	// KindDark marks a shadow candidate (pixels below neutral).
	KindDark Kind = "dark"
	// KindBright marks a specular reflection candidate (pixels above neutral).
	KindBright Kind = "bright"
	// KindCoupled marks a shadow paired with a reflection.
	KindCoupled Kind = "coupled"
	// KindStandard marks a generic symmetric-threshold motion blob.
	KindStandard Kind = "standard"
)

// Point is a sub-pixel image position.
type Point struct {
	X float64
	Y float64
}

// DistanceTo returns the Euclidean distance to another point.
func (p Point) DistanceTo(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Blob is a single-frame detection. Blobs are created once per frame by the
// detector (or coupler), are immutable afterwards, and are consumed by the
// track manager in the same frame.
type Blob struct {
	FrameIdx    int
	BBox        image.Rectangle
	Centroid    Point
	Area        float64
	Circularity float64
	AspectRatio float64
	Confidence  float64
	Kind        Kind

	// CoupledWith is the index of the bright blob this (coupled) blob was
	// paired with, for traceability only. -1 when not coupled.
	CoupledWith int
}
