package tracking

import (
	"image"
	"math"

	"benthoscan/detection"
)

// Track is the accumulated multi-frame trajectory of one candidate
// organism. The frame/bbox/centroid/area/confidence slices are parallel:
// one entry per detection event, in temporal order. PositionHistory mirrors
// Centroids exactly and exists so the trail renderer can draw the complete
// path without reaching into the detection sequences.
type Track struct {
	ID          int
	Frames      []int
	BBoxes      []image.Rectangle
	Centroids   []detection.Point
	Areas       []float64
	Confidences []float64
	Valid       bool

	// Rest state. A track rests when it received no match this frame but
	// is still within the skip budget; RestROI is a square window around
	// the last known position, kept for external monitoring overlays.
	LastSeenFrame        int
	LastKnownPosition    detection.Point
	Resting              bool
	RestROI              image.Rectangle
	FramesSinceDetection int

	// Complete trail, appended on every matched detection.
	PositionHistory []detection.Point

	// Coupling statistics.
	CoupledDetections int
	TotalDetections   int
}

// newTrack creates an Active track from an unmatched blob.
func newTrack(id int, blob detection.Blob, frameIdx int) *Track {
	t := &Track{
		ID:            id,
		Frames:        []int{frameIdx},
		BBoxes:        []image.Rectangle{blob.BBox},
		Centroids:     []detection.Point{blob.Centroid},
		Areas:         []float64{blob.Area},
		Confidences:   []float64{blob.Confidence},
		LastSeenFrame: frameIdx,

		LastKnownPosition: blob.Centroid,
		PositionHistory:   []detection.Point{blob.Centroid},
		TotalDetections:   1,
	}
	if blob.Kind == detection.KindCoupled {
		t.CoupledDetections = 1
	}
	return t
}

// addDetection appends a matched blob, clears rest state and resets the
// skip counter.
func (t *Track) addDetection(blob detection.Blob, frameIdx int) {
	t.Frames = append(t.Frames, frameIdx)
	t.BBoxes = append(t.BBoxes, blob.BBox)
	t.Centroids = append(t.Centroids, blob.Centroid)
	t.Areas = append(t.Areas, blob.Area)
	t.Confidences = append(t.Confidences, blob.Confidence)
	t.LastSeenFrame = frameIdx
	t.LastKnownPosition = blob.Centroid
	t.FramesSinceDetection = 0
	t.Resting = false
	t.RestROI = image.Rectangle{}
	t.PositionHistory = append(t.PositionHistory, blob.Centroid)
	t.TotalDetections++
	if blob.Kind == detection.KindCoupled {
		t.CoupledDetections++
	}
}

// enterRest marks the track resting around its last known position.
func (t *Track) enterRest(radius int) {
	t.Resting = true
	lx := int(t.LastKnownPosition.X)
	ly := int(t.LastKnownPosition.Y)
	t.RestROI = image.Rect(lx-radius, ly-radius, lx+radius, ly+radius)
}

// Length is the number of detection events in the track.
func (t *Track) Length() int {
	return len(t.Frames)
}

// Displacement is the cumulative centroid-to-centroid path length.
func (t *Track) Displacement() float64 {
	if len(t.Centroids) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(t.Centroids); i++ {
		total += t.Centroids[i].DistanceTo(t.Centroids[i-1])
	}
	return total
}

// AvgSpeed is displacement per detection step, not per elapsed frame, so
// rest periods do not dilute it.
func (t *Track) AvgSpeed() float64 {
	if len(t.Centroids) < 2 {
		return 0
	}
	return t.Displacement() / float64(len(t.Centroids)-1)
}

// TotalDuration is the full frame span including rests.
func (t *Track) TotalDuration() int {
	if len(t.Frames) == 0 {
		return 0
	}
	return t.Frames[len(t.Frames)-1] - t.Frames[0] + 1
}

// RestPeriods counts gaps where consecutive detections are more than one
// frame apart.
func (t *Track) RestPeriods() int {
	periods := 0
	for i := 1; i < len(t.Frames); i++ {
		if t.Frames[i]-t.Frames[i-1] > 1 {
			periods++
		}
	}
	return periods
}

// CouplingRate is the percentage of detections that were coupled
// shadow-reflection pairs.
func (t *Track) CouplingRate() float64 {
	if t.TotalDetections == 0 {
		return 0
	}
	return float64(t.CoupledDetections) / float64(t.TotalDetections) * 100
}

// DetectionAt returns the index into the parallel sequences for frameIdx,
// or -1 if the track has no detection on that frame.
func (t *Track) DetectionAt(frameIdx int) int {
	// Frame indices are strictly increasing; binary search would do, but
	// tracks are short and the renderer only asks about recent frames.
	for i := len(t.Frames) - 1; i >= 0; i-- {
		if t.Frames[i] == frameIdx {
			return i
		}
		if t.Frames[i] < frameIdx {
			return -1
		}
	}
	return -1
}

// distanceToLast returns the distance from a blob centroid to the track's
// most recent centroid.
func (t *Track) distanceToLast(p detection.Point) float64 {
	if len(t.Centroids) == 0 {
		return math.MaxFloat64
	}
	return p.DistanceTo(t.Centroids[len(t.Centroids)-1])
}
