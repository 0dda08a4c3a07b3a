package detection

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// neutral is the mid-gray level representing zero deviation from the
// background reference in a preprocessed frame.
const neutral = 128.0

// Detector segments a background-subtracted deviation frame into dark,
// bright and standard blobs and filters them by shape. A Detector is
// stateless between frames and safe to reuse for a whole clip.
type Detector struct {
	params Params
	debugf func(component, message string)
}

// NewDetector creates a detector with the given thresholds. debugf may be
// nil when no diagnostic output is wanted; it is an explicit value rather
// than package state so the detector stays testable in isolation.
func NewDetector(params Params, debugf func(component, message string)) *Detector {
	return &Detector{params: params, debugf: debugf}
}

func (d *Detector) debug(message string) {
	if d.debugf != nil {
		d.debugf("DETECT", message)
	}
}

// Detect runs the full per-frame segmentation: dark and bright blobs,
// shadow-reflection coupling, then the standard symmetric segmentation with
// duplicate suppression. The input frame must be single-channel 8-bit,
// blurred, and expressed as deviation around mid-gray 128.
func (d *Detector) Detect(frame gocv.Mat, frameIdx int) []Blob {
	dark := d.DarkBlobs(frame, frameIdx)
	bright := d.BrightBlobs(frame, frameIdx)

	coupled, uncoupledDark, _ := Couple(dark, bright, d.params)

	all := make([]Blob, 0, len(coupled)+len(uncoupledDark))
	all = append(all, coupled...)
	if !d.params.RequireCoupling {
		all = append(all, uncoupledDark...)
	}

	standard := d.StandardBlobs(frame, frameIdx)
	for _, std := range standard {
		if !d.isDuplicate(std, all) {
			all = append(all, std)
		}
	}

	if len(all) > 0 {
		d.debug(fmt.Sprintf("frame %d: %d blobs (%d dark, %d bright, %d coupled, %d standard)",
			frameIdx, len(all), len(dark), len(bright), len(coupled), len(standard)))
	}
	return all
}

// DarkBlobs segments shadow candidates: pixels below neutral whose absolute
// deviation exceeds DarkThreshold.
func (d *Detector) DarkBlobs(frame gocv.Mat, frameIdx int) []Blob {
	binary := d.polarityMask(frame, float32(d.params.DarkThreshold), true)
	defer binary.Close()
	return d.extractFromBinary(binary, frameIdx, KindDark)
}

// BrightBlobs segments reflection candidates: pixels above neutral whose
// deviation exceeds BrightThreshold.
func (d *Detector) BrightBlobs(frame gocv.Mat, frameIdx int) []Blob {
	binary := d.polarityMask(frame, float32(d.params.BrightThreshold), false)
	defer binary.Close()
	return d.extractFromBinary(binary, frameIdx, KindBright)
}

// StandardBlobs segments generic motion with a single symmetric threshold on
// absolute deviation, no dark/bright split.
func (d *Detector) StandardBlobs(frame gocv.Mat, frameIdx int) []Blob {
	deviation := absDeviation(frame)
	defer deviation.Close()

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(deviation, &binary, float32(d.params.Threshold), 255, gocv.ThresholdBinary)

	d.cleanMask(&binary)
	return d.extractFromBinary(binary, frameIdx, KindStandard)
}

// polarityMask builds the binary mask of pixels on one side of neutral whose
// absolute deviation exceeds threshold, then applies the morphological
// cleanup.
func (d *Detector) polarityMask(frame gocv.Mat, threshold float32, belowNeutral bool) gocv.Mat {
	deviation := absDeviation(frame)
	defer deviation.Close()

	deviationMask := gocv.NewMat()
	defer deviationMask.Close()
	gocv.Threshold(deviation, &deviationMask, threshold, 255, gocv.ThresholdBinary)

	polarity := gocv.NewMat()
	defer polarity.Close()
	if belowNeutral {
		gocv.Threshold(frame, &polarity, neutral-1, 255, gocv.ThresholdBinaryInv)
	} else {
		gocv.Threshold(frame, &polarity, neutral, 255, gocv.ThresholdBinary)
	}

	binary := gocv.NewMat()
	gocv.BitwiseAnd(polarity, deviationMask, &binary)
	d.cleanMask(&binary)
	return binary
}

// cleanMask merges speckle into coherent blobs (close) and removes isolated
// noise pixels (open) with an elliptical structuring element.
func (d *Detector) cleanMask(binary *gocv.Mat) {
	k := d.params.MorphKernelSize
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(k, k))
	defer kernel.Close()
	gocv.MorphologyEx(*binary, binary, gocv.MorphClose, kernel)
	gocv.MorphologyEx(*binary, binary, gocv.MorphOpen, kernel)
}

// extractFromBinary labels connected components and filters each candidate
// region by area, then aspect ratio, then circularity. The filters are
// plain predicates evaluated in that order so each can be exercised alone.
func (d *Detector) extractFromBinary(binary gocv.Mat, frameIdx int, kind Kind) []Blob {
	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	numLabels := gocv.ConnectedComponentsWithStats(binary, &labels, &stats, &centroids)

	var blobs []Blob
	for label := 1; label < numLabels; label++ {
		area := float64(stats.GetIntAt(label, int(gocv.CCStatArea)))
		x := int(stats.GetIntAt(label, int(gocv.CCStatLeft)))
		y := int(stats.GetIntAt(label, int(gocv.CCStatTop)))
		w := int(stats.GetIntAt(label, int(gocv.CCStatWidth)))
		h := int(stats.GetIntAt(label, int(gocv.CCStatHeight)))
		cx := centroids.GetDoubleAt(label, 0)
		cy := centroids.GetDoubleAt(label, 1)

		if area < float64(d.params.MinArea) || area > float64(d.params.MaxArea) {
			continue
		}

		aspect := aspectRatio(w, h)
		if aspect > d.params.MaxAspectRatio {
			continue
		}

		circularity := d.regionCircularity(labels, label, area)
		if circularity < d.params.MinCircularity {
			continue
		}

		blobs = append(blobs, Blob{
			FrameIdx:    frameIdx,
			BBox:        image.Rect(x, y, x+w, y+h),
			Centroid:    Point{X: cx, Y: cy},
			Area:        area,
			Circularity: circularity,
			AspectRatio: aspect,
			Confidence:  circularity,
			Kind:        kind,
			CoupledWith: -1,
		})
	}
	return blobs
}

// regionCircularity computes 4*pi*area/perimeter^2 from the external
// contour of one labeled region. Degenerate regions with no contour or a
// zero perimeter get circularity 0 and fall to the normal filter.
func (d *Detector) regionCircularity(labels gocv.Mat, label int, area float64) float64 {
	mask := gocv.NewMat()
	defer mask.Close()
	lv := gocv.NewScalar(float64(label), 0, 0, 0)
	gocv.InRangeWithScalar(labels, lv, lv, &mask)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return 0
	}

	perimeter := gocv.ArcLength(contours.At(0), true)
	if perimeter <= 0 {
		return 0
	}
	return (4 * math.Pi * area) / (perimeter * perimeter)
}

// isDuplicate reports whether a standard blob sits within DuplicateRadius of
// an already accepted blob, i.e. it is the same physical feature picked up
// by a second segmentation.
func (d *Detector) isDuplicate(std Blob, accepted []Blob) bool {
	for _, b := range accepted {
		if std.Centroid.DistanceTo(b.Centroid) < d.params.DuplicateRadius {
			return true
		}
	}
	return false
}

// absDeviation returns |frame - neutral| as an 8-bit mat.
func absDeviation(frame gocv.Mat) gocv.Mat {
	neutralMat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(neutral, 0, 0, 0),
		frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC1)
	defer neutralMat.Close()

	deviation := gocv.NewMat()
	gocv.AbsDiff(frame, neutralMat, &deviation)
	return deviation
}

// aspectRatio returns max(w,h)/min(w,h), capped so a degenerate zero-sized
// side rejects through the normal filter instead of dividing by zero.
func aspectRatio(w, h int) float64 {
	long, short := float64(w), float64(h)
	if short > long {
		long, short = short, long
	}
	if short <= 0 {
		return math.MaxFloat64
	}
	return long / short
}
