package background

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// sliceSource serves a fixed set of frames, the way a short clip would.
type sliceSource struct {
	frames []gocv.Mat
	fps    float64
	idx    int
}

func (s *sliceSource) Read(dst *gocv.Mat) bool {
	if s.idx >= len(s.frames) {
		return false
	}
	s.frames[s.idx].CopyTo(dst)
	s.idx++
	return true
}

func (s *sliceSource) FPS() float64    { return s.fps }
func (s *sliceSource) FrameCount() int { return len(s.frames) }

func grayFrame(value float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, 0, 0, 0),
		24, 32, gocv.MatTypeCV8UC1)
}

func closeAll(frames []gocv.Mat) {
	for i := range frames {
		frames[i].Close()
	}
}

func TestMedianReferenceIgnoresOutlierFrame(t *testing.T) {
	// Four frames of seafloor at 10 and one with a bright transient: the
	// temporal median must stay at the seafloor level.
	frames := []gocv.Mat{
		grayFrame(10), grayFrame(10), grayFrame(200), grayFrame(10), grayFrame(10),
	}
	defer closeAll(frames)

	src := &sliceSource{frames: frames, fps: 30}
	ref, meta, err := Estimate(src, Params{SampleStride: 1, MaxBuffered: 150})
	require.NoError(t, err)
	defer ref.Close()

	assert.Equal(t, MethodMedian, meta.Method)
	assert.Equal(t, 5, meta.FramesUsed)
	assert.InDelta(t, 10.0, float64(ref.GetFloatAt(12, 16)), 1e-6)
}

func TestMeanFallbackWhenBufferTooSmall(t *testing.T) {
	frames := []gocv.Mat{grayFrame(10), grayFrame(20), grayFrame(30)}
	defer closeAll(frames)

	src := &sliceSource{frames: frames, fps: 30}
	ref, meta, err := Estimate(src, Params{SampleStride: 1, MaxBuffered: 2})
	require.NoError(t, err)
	defer ref.Close()

	assert.Equal(t, MethodMean, meta.Method)
	assert.Equal(t, 3, meta.FramesUsed)
	assert.InDelta(t, 20.0, float64(ref.GetFloatAt(0, 0)), 1e-4)
}

func TestSampleStrideSkipsFrames(t *testing.T) {
	frames := []gocv.Mat{
		grayFrame(10), grayFrame(99), grayFrame(10), grayFrame(99), grayFrame(10), grayFrame(99),
	}
	defer closeAll(frames)

	src := &sliceSource{frames: frames, fps: 30}
	ref, meta, err := Estimate(src, Params{SampleStride: 2, MaxBuffered: 150})
	require.NoError(t, err)
	defer ref.Close()

	// Only the even frames (all value 10) are sampled.
	assert.Equal(t, 3, meta.FramesUsed)
	assert.Equal(t, 2, meta.Stride)
	assert.InDelta(t, 10.0, float64(ref.GetFloatAt(5, 5)), 1e-6)
}

func TestMaxFramesCapsSampling(t *testing.T) {
	frames := []gocv.Mat{grayFrame(10), grayFrame(10), grayFrame(10), grayFrame(10)}
	defer closeAll(frames)

	src := &sliceSource{frames: frames, fps: 30}
	ref, meta, err := Estimate(src, Params{SampleStride: 1, MaxFrames: 2, MaxBuffered: 150})
	require.NoError(t, err)
	defer ref.Close()

	assert.Equal(t, 2, meta.FramesUsed)
}

func TestZeroFramesIsConfigurationError(t *testing.T) {
	src := &sliceSource{fps: 30}
	_, _, err := Estimate(src, Params{SampleStride: 1, MaxBuffered: 150})
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestMetadataCarriesSourceProperties(t *testing.T) {
	frames := []gocv.Mat{grayFrame(42)}
	defer closeAll(frames)

	src := &sliceSource{frames: frames, fps: 23.98}
	ref, meta, err := Estimate(src, Params{SampleStride: 1, MaxBuffered: 150})
	require.NoError(t, err)
	defer ref.Close()

	assert.InDelta(t, 23.98, meta.FPS, 1e-9)
	assert.Equal(t, 32, meta.Width)
	assert.Equal(t, 24, meta.Height)
	assert.Equal(t, gocv.MatTypeCV32F, ref.Type())
}
