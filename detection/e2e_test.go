package detection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"benthoscan/detection"
	"benthoscan/tracking"
)

// deviationFrame builds a neutral mid-gray frame with one darker rectangle,
// the way the pipeline hands frames to the detector.
func deviationFrame(x, y, w, h int, value uint8) gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 0, 0, 0),
		240, 320, gocv.MatTypeCV8UC1)
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			frame.SetUCharAt(row, col, value)
		}
	}
	return frame
}

// TestTwoFrameOrganismProducesOneValidTrack runs the full detector →
// manager → validator chain over two synthetic frames where a single dark
// organism shifts 5 pixels to the right.
func TestTwoFrameOrganismProducesOneValidTrack(t *testing.T) {
	detector := detection.NewDetector(detection.DefaultParams(), nil)
	manager := tracking.NewManager(tracking.Params{
		MaxDistance:    50,
		MaxSkipFrames:  60,
		RestZoneRadius: 100,
	}, nil)

	frame0 := deviationFrame(90, 95, 20, 10, 90)
	defer frame0.Close()
	frame1 := deviationFrame(95, 95, 20, 10, 90)
	defer frame1.Close()

	blobs0 := detector.Detect(frame0, 0)
	require.Len(t, blobs0, 1)
	manager.Update(0, blobs0)

	blobs1 := detector.Detect(frame1, 1)
	require.Len(t, blobs1, 1)
	manager.Update(1, blobs1)

	tracks := manager.Finish()
	require.Len(t, tracks, 1)

	valid := tracking.ValidateAll(tracks, tracking.ValidationParams{
		MinTrackLength:  2,
		MinDisplacement: 3.0,
		MinSpeed:        0.1,
		MaxSpeed:        30,
	})
	assert.Equal(t, 1, valid)

	tr := tracks[0]
	assert.True(t, tr.Valid)
	assert.Equal(t, 2, tr.Length())
	assert.Equal(t, 2, tr.TotalDuration())
	assert.Equal(t, 0, tr.RestPeriods())
	assert.InDelta(t, 5.0, tr.Displacement(), 0.5)
	assert.InDelta(t, 5.0, tr.AvgSpeed(), 0.5)
}
