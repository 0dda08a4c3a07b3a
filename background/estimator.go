// Package background computes the per-pixel temporal reference frame that
// the rest of the pipeline subtracts from each video frame. The seafloor is
// largely static, so a temporal median (or mean) over a sampled subset of
// frames isolates it from the slow-moving foreground.
package background

import (
	"sort"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// ErrNoFrames is the configuration error returned when the source yields no
// frames to sample: no reference can be produced from nothing.
var ErrNoFrames = errors.New("background: no frames sampled")

// Params controls sampling and the memory budget of the estimator.
type Params struct {
	// SampleStride samples every Nth frame of the clip.
	SampleStride int

	// MaxFrames caps the number of sampled frames (0 = no cap). Used to
	// derive a duration limit for very long clips.
	MaxFrames int

	// MaxBuffered is the largest sampled frame count the median path may
	// hold in memory at once. When the expected sample count exceeds it,
	// the estimator falls back to the incremental running mean, which
	// never buffers the clip.
	MaxBuffered int
}

// DefaultParams returns the sampling defaults used in production runs.
func DefaultParams() Params {
	return Params{
		SampleStride: 3,
		MaxFrames:    0,
		MaxBuffered:  150,
	}
}

// Method names how the reference was computed.
type Method string

const (
	// MethodMedian is the buffered temporal median, more robust to
	// slow-moving foreground objects.
	MethodMedian Method = "median"
	// MethodMean is the incremental running mean, used when the sampled
	// frame count will not fit the buffer budget.
	MethodMean Method = "mean"
)

// Meta describes the reference frame that was produced.
type Meta struct {
	FPS        float64
	Width      int
	Height     int
	FramesUsed int
	Stride     int
	Method     Method
}

// FrameSource is the estimator's view of a video: sequential single- or
// three-channel frames plus stream properties. A short or failed read is
// treated as end of stream.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
	FPS() float64
	FrameCount() int
}

// Estimate computes the reference frame from src. The result is a
// single-channel CV32F mat owned by the caller. Accumulation happens in
// float64 to avoid drift over thousands of frames; only the final stored
// reference is cast down to float32.
func Estimate(src FrameSource, params Params) (gocv.Mat, Meta, error) {
	if params.SampleStride < 1 {
		params.SampleStride = 1
	}
	if params.MaxBuffered < 1 {
		params.MaxBuffered = 1
	}

	method := MethodMedian
	total := src.FrameCount()
	expected := total / params.SampleStride
	if params.MaxFrames > 0 && expected > params.MaxFrames {
		expected = params.MaxFrames
	}
	if total <= 0 || expected > params.MaxBuffered {
		method = MethodMean
	}

	var (
		samples [][]float32 // median path: one flat plane per sampled frame
		acc     []float64   // mean path: running mean per pixel
		width   int
		height  int
		used    int
	)

	frame := gocv.NewMat()
	defer frame.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	f32 := gocv.NewMat()
	defer f32.Close()

	frameIdx := 0
	for src.Read(&frame) {
		if frameIdx%params.SampleStride != 0 {
			frameIdx++
			continue
		}
		frameIdx++

		if frame.Channels() > 1 {
			gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
		} else {
			frame.CopyTo(&gray)
		}
		gray.ConvertTo(&f32, gocv.MatTypeCV32F)

		plane, err := f32.DataPtrFloat32()
		if err != nil {
			return gocv.Mat{}, Meta{}, errors.Wrap(err, "background: can't access frame data")
		}

		if used == 0 {
			width = gray.Cols()
			height = gray.Rows()
		}

		switch method {
		case MethodMedian:
			copied := make([]float32, len(plane))
			copy(copied, plane)
			samples = append(samples, copied)
		case MethodMean:
			if acc == nil {
				acc = make([]float64, len(plane))
			}
			n := float64(used + 1)
			for i, v := range plane {
				acc[i] += (float64(v) - acc[i]) / n
			}
		}
		used++

		if params.MaxFrames > 0 && used >= params.MaxFrames {
			break
		}
		if method == MethodMedian && used >= params.MaxBuffered {
			break
		}
	}

	if used == 0 {
		return gocv.Mat{}, Meta{}, ErrNoFrames
	}

	ref := gocv.NewMatWithSize(height, width, gocv.MatTypeCV32F)
	out, err := ref.DataPtrFloat32()
	if err != nil {
		ref.Close()
		return gocv.Mat{}, Meta{}, errors.Wrap(err, "background: can't access reference data")
	}

	switch method {
	case MethodMedian:
		fillMedian(out, samples)
	case MethodMean:
		for i, v := range acc {
			out[i] = float32(v)
		}
	}

	meta := Meta{
		FPS:        src.FPS(),
		Width:      width,
		Height:     height,
		FramesUsed: used,
		Stride:     params.SampleStride,
		Method:     method,
	}
	return ref, meta, nil
}

// fillMedian writes the per-pixel temporal median of the buffered planes.
func fillMedian(out []float32, samples [][]float32) {
	column := make([]float64, len(samples))
	for i := range out {
		for s := range samples {
			column[s] = float64(samples[s][i])
		}
		sort.Float64s(column)
		out[i] = float32(stat.Quantile(0.5, stat.Empirical, column, nil))
	}
}
