package results

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benthoscan/background"
	"benthoscan/detection"
	"benthoscan/tracking"
)

func sampleTrack(id int, valid bool) *tracking.Track {
	return &tracking.Track{
		ID:                id,
		Frames:            []int{0, 1, 2},
		BBoxes:            []image.Rectangle{image.Rect(90, 95, 110, 105), image.Rect(95, 95, 115, 105), image.Rect(100, 95, 120, 105)},
		Centroids:         []detection.Point{{X: 100, Y: 100}, {X: 105, Y: 100}, {X: 110, Y: 100}},
		Areas:             []float64{200, 198, 201},
		Confidences:       []float64{0.8, 1.04, 0.82},
		Valid:             valid,
		PositionHistory:   []detection.Point{{X: 100, Y: 100}, {X: 105, Y: 100}, {X: 110, Y: 100}},
		CoupledDetections: 1,
		TotalDetections:   3,
	}
}

func sampleInfo() VideoInfo {
	return NewVideoInfo("clip.mp4", 30, 320, 240, 3, 100, background.Meta{
		FramesUsed: 50,
		Method:     background.MethodMedian,
	})
}

func TestBuildSummarizesTracks(t *testing.T) {
	tracks := []*tracking.Track{sampleTrack(1, true), sampleTrack(2, false)}

	report := Build(tracks, sampleInfo(), Parameters{}, nil, 10, 4, 2*time.Second)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2.0, report.ProcessingTime)
	assert.Equal(t, 2, report.Summary.TotalTracks)
	assert.Equal(t, 1, report.Summary.ValidTracks)
	assert.Equal(t, 6, report.Summary.TotalDetections)
	assert.Equal(t, 10, report.Summary.TotalBlobDetections)
	assert.Equal(t, 4, report.Summary.TotalCoupled)
	assert.InDelta(t, 40.0, report.Summary.OverallCouplingRate, 1e-9)
	assert.InDelta(t, 5.0, report.Summary.MeanValidSpeed, 1e-9)
	assert.InDelta(t, 10.0, report.Summary.MeanValidDisplacement, 1e-9)

	require.Len(t, report.Tracks, 2)
	rec := report.Tracks[0]
	assert.Equal(t, 1, rec.TrackID)
	assert.Equal(t, [4]int{90, 95, 20, 10}, rec.BBoxes[0])
	assert.Equal(t, [2]float64{100, 100}, rec.Centroids[0])
	assert.Equal(t, 3, rec.Length)
	assert.InDelta(t, 10.0, rec.Displacement, 1e-9)
	assert.InDelta(t, 5.0, rec.AvgSpeed, 1e-9)
	assert.Equal(t, 3, rec.TotalDuration)
	assert.Equal(t, 0, rec.RestPeriods)
	assert.InDelta(t, 33.33, rec.CouplingRate, 0.01)
}

func TestTimelineRecords(t *testing.T) {
	timeline := []tracking.FrameSummary{
		{FrameIdx: 0, ActiveTracks: 1, Blobs: 1},
		{FrameIdx: 1, ActiveTracks: 2, RestingCount: 1, Blobs: 2, CoupledBlobs: 1},
	}
	report := Build(nil, sampleInfo(), Parameters{}, timeline, 3, 1, time.Second)

	require.Len(t, report.Timeline, 2)
	assert.Equal(t, 1, report.Timeline[1].FrameIdx)
	assert.Equal(t, 1, report.Timeline[1].RestingCount)
	assert.Equal(t, 1, report.Timeline[1].CoupledBlobs)
}

func TestSaveWritesPlainJSON(t *testing.T) {
	report := Build([]*tracking.Track{sampleTrack(1, true)}, sampleInfo(), Parameters{}, nil, 3, 1, time.Second)

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, report.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "run_id")
	assert.Contains(t, decoded, "video_info")
	assert.Contains(t, decoded, "tracks")
	assert.Contains(t, decoded, "summary")

	info := decoded["video_info"].(map[string]interface{})
	assert.Equal(t, "median", info["background_method"])
	assert.InDelta(t, 10.0, info["output_fps"].(float64), 1e-9)
}

func TestNewVideoInfoComputesOutputFPS(t *testing.T) {
	info := NewVideoInfo("clip.mp4", 29.97, 1920, 1080, 3, 315, background.Meta{FramesUsed: 150, Method: background.MethodMean})
	assert.InDelta(t, 9.99, info.OutputFPS, 1e-9)
	assert.Equal(t, "mean", info.BackgroundMethod)
	assert.Equal(t, 150, info.BackgroundFrames)
}
