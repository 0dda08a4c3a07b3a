// Package overlay draws track trails and detection boxes onto frames for
// visual QA. Rendering is a pure side effect: nothing here feeds back into
// the tracker.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"benthoscan/tracking"
)

// Renderer draws cumulative path history and current detections per track,
// color-coded by the track's (so-far-provisional) validity.
type Renderer struct {
	validColor   color.RGBA // tracks judged (or provisionally assumed) valid
	pendingColor color.RGBA // everything else
	showHistory  bool
}

// NewRenderer creates a renderer. showHistory controls whether the full
// trail polyline is drawn or only the current detections.
func NewRenderer(showHistory bool) *Renderer {
	return &Renderer{
		validColor:   color.RGBA{R: 0, G: 255, B: 0},
		pendingColor: color.RGBA{R: 255, G: 165, B: 0},
		showHistory:  showHistory,
	}
}

// Annotate draws all tracks onto frame in place. Trails go down first so
// current-frame boxes and labels stay readable on top of them.
func (r *Renderer) Annotate(frame *gocv.Mat, tracks []*tracking.Track, frameIdx int) {
	if r.showHistory {
		for _, t := range tracks {
			r.drawTrail(frame, t)
		}
	}
	for _, t := range tracks {
		r.drawCurrent(frame, t, frameIdx)
	}
}

// drawTrail draws the complete position history as a polyline plus dots
// that fade in size from the track's origin to its newest position.
func (r *Renderer) drawTrail(frame *gocv.Mat, t *tracking.Track) {
	if len(t.PositionHistory) < 2 {
		return
	}
	c := r.trackColor(t)

	points := make([]image.Point, len(t.PositionHistory))
	for i, p := range t.PositionHistory {
		points[i] = image.Pt(int(p.X), int(p.Y))
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{points})
	defer pv.Close()
	gocv.Polylines(frame, pv, false, c, 2)

	for i, p := range points {
		alpha := float64(i+1) / float64(len(points))
		radius := int(2 * alpha)
		if radius < 1 {
			radius = 1
		}
		gocv.Circle(frame, p, radius, c, -1)
	}
}

// drawCurrent draws the bounding box, centroid and label for a track that
// has a detection on this frame.
func (r *Renderer) drawCurrent(frame *gocv.Mat, t *tracking.Track, frameIdx int) {
	idx := t.DetectionAt(frameIdx)
	if idx < 0 {
		return
	}
	c := r.trackColor(t)
	bbox := t.BBoxes[idx]
	centroid := t.Centroids[idx]

	gocv.Rectangle(frame, bbox, c, 2)
	gocv.Circle(frame, image.Pt(int(centroid.X), int(centroid.Y)), 3, c, -1)

	label := fmt.Sprintf("ID:%d", t.ID)
	if t.TotalDetections > 0 {
		label += fmt.Sprintf(" (%.0f%% coupled)", t.CouplingRate())
	}
	gocv.PutText(frame, label, image.Pt(bbox.Min.X, bbox.Min.Y-5),
		gocv.FontHersheySimplex, 0.4, c, 1)
}

func (r *Renderer) trackColor(t *tracking.Track) color.RGBA {
	if t.Valid {
		return r.validColor
	}
	return r.pendingColor
}
