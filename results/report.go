// Package results assembles the final report: every track with its
// per-detection sequences and scalar metrics, plus clip-wide summary
// statistics. Everything is plain Go numerics so the JSON is free of any
// library-specific wrapper types.
package results

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"benthoscan/background"
	"benthoscan/tracking"
)

// VideoInfo echoes the source clip properties and how the background
// reference was derived from them.
type VideoInfo struct {
	Path             string  `json:"path"`
	OriginalFPS      float64 `json:"original_fps"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	OutputFPS        float64 `json:"output_fps"`
	ProcessedFrames  int     `json:"processed_frames"`
	FrameStride      int     `json:"frame_stride"`
	BackgroundFrames int     `json:"background_frames_used"`
	BackgroundMethod string  `json:"background_method"`
}

// TrackRecord is the serialized form of one track.
type TrackRecord struct {
	TrackID           int          `json:"track_id"`
	Frames            []int        `json:"frames"`
	BBoxes            [][4]int     `json:"bboxes"`
	Centroids         [][2]float64 `json:"centroids"`
	Areas             []float64    `json:"areas"`
	Confidences       []float64    `json:"confidences"`
	IsValid           bool         `json:"is_valid"`
	Length            int          `json:"length"`
	Displacement      float64      `json:"displacement"`
	AvgSpeed          float64      `json:"avg_speed"`
	TotalDuration     int          `json:"total_duration"`
	RestPeriods       int          `json:"rest_periods"`
	CouplingRate      float64      `json:"coupling_rate"`
	CoupledDetections int          `json:"coupled_detections"`
	TotalDetections   int          `json:"total_detections"`
}

// FrameRecord is one per-frame summary counter sample for timeline
// visualization.
type FrameRecord struct {
	FrameIdx     int `json:"frame_idx"`
	ActiveTracks int `json:"active_tracks"`
	RestingCount int `json:"resting_count"`
	Blobs        int `json:"blobs"`
	CoupledBlobs int `json:"coupled_blobs"`
}

// Summary aggregates over the whole clip.
type Summary struct {
	TotalTracks           int     `json:"total_tracks"`
	ValidTracks           int     `json:"valid_tracks"`
	TotalDetections       int     `json:"total_detections"`
	TotalCoupled          int     `json:"total_coupled_detections"`
	TotalBlobDetections   int     `json:"total_blob_detections"`
	OverallCouplingRate   float64 `json:"overall_coupling_rate"`
	MeanValidSpeed        float64 `json:"mean_valid_speed"`
	MaxValidSpeed         float64 `json:"max_valid_speed"`
	MeanValidDisplacement float64 `json:"mean_valid_displacement"`
}

// Report is the top-level result document for one clip.
type Report struct {
	RunID          string        `json:"run_id"`
	Timestamp      string        `json:"timestamp"`
	ProcessingTime float64       `json:"processing_time_seconds"`
	VideoInfo      VideoInfo     `json:"video_info"`
	Parameters     Parameters    `json:"parameters"`
	Tracks         []TrackRecord `json:"tracks"`
	Timeline       []FrameRecord `json:"timeline,omitempty"`
	Summary        Summary       `json:"summary"`
}

// Parameters echoes the full configuration bundle used for the run.
type Parameters struct {
	Detection  interface{} `json:"detection"`
	Tracking   interface{} `json:"tracking"`
	Validation interface{} `json:"validation"`
	Background interface{} `json:"background"`
}

// Build assembles the report from completed tracks and run metadata.
func Build(tracks []*tracking.Track, info VideoInfo, params Parameters,
	timeline []tracking.FrameSummary, totalBlobs, totalCoupled int, elapsed time.Duration) *Report {

	report := &Report{
		RunID:          uuid.NewString(),
		Timestamp:      time.Now().Format(time.RFC3339),
		ProcessingTime: elapsed.Seconds(),
		VideoInfo:      info,
		Parameters:     params,
	}

	var validSpeeds, validDisplacements []float64
	totalDetections := 0
	for _, t := range tracks {
		report.Tracks = append(report.Tracks, recordTrack(t))
		totalDetections += t.Length()
		if t.Valid {
			report.Summary.ValidTracks++
			validSpeeds = append(validSpeeds, t.AvgSpeed())
			validDisplacements = append(validDisplacements, t.Displacement())
		}
	}

	for _, fs := range timeline {
		report.Timeline = append(report.Timeline, FrameRecord{
			FrameIdx:     fs.FrameIdx,
			ActiveTracks: fs.ActiveTracks,
			RestingCount: fs.RestingCount,
			Blobs:        fs.Blobs,
			CoupledBlobs: fs.CoupledBlobs,
		})
	}

	report.Summary.TotalTracks = len(tracks)
	report.Summary.TotalDetections = totalDetections
	report.Summary.TotalCoupled = totalCoupled
	report.Summary.TotalBlobDetections = totalBlobs
	if totalBlobs > 0 {
		report.Summary.OverallCouplingRate = float64(totalCoupled) / float64(totalBlobs) * 100
	}
	if len(validSpeeds) > 0 {
		report.Summary.MeanValidSpeed = stat.Mean(validSpeeds, nil)
		report.Summary.MaxValidSpeed = maxOf(validSpeeds)
		report.Summary.MeanValidDisplacement = stat.Mean(validDisplacements, nil)
	}
	return report
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "results: can't marshal report")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "results: can't write %s", path)
	}
	return nil
}

// NewVideoInfo builds the video info block from source properties and
// background metadata.
func NewVideoInfo(path string, fps float64, width, height, stride, processed int, meta background.Meta) VideoInfo {
	outputFPS := fps
	if stride > 0 {
		outputFPS = fps / float64(stride)
	}
	return VideoInfo{
		Path:             path,
		OriginalFPS:      fps,
		Width:            width,
		Height:           height,
		OutputFPS:        outputFPS,
		ProcessedFrames:  processed,
		FrameStride:      stride,
		BackgroundFrames: meta.FramesUsed,
		BackgroundMethod: string(meta.Method),
	}
}

func recordTrack(t *tracking.Track) TrackRecord {
	rec := TrackRecord{
		TrackID:           t.ID,
		Frames:            append([]int(nil), t.Frames...),
		Areas:             append([]float64(nil), t.Areas...),
		Confidences:       append([]float64(nil), t.Confidences...),
		IsValid:           t.Valid,
		Length:            t.Length(),
		Displacement:      t.Displacement(),
		AvgSpeed:          t.AvgSpeed(),
		TotalDuration:     t.TotalDuration(),
		RestPeriods:       t.RestPeriods(),
		CouplingRate:      t.CouplingRate(),
		CoupledDetections: t.CoupledDetections,
		TotalDetections:   t.TotalDetections,
	}
	for _, b := range t.BBoxes {
		rec.BBoxes = append(rec.BBoxes, [4]int{b.Min.X, b.Min.Y, b.Dx(), b.Dy()})
	}
	for _, c := range t.Centroids {
		rec.Centroids = append(rec.Centroids, [2]float64{c.X, c.Y})
	}
	return rec
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
