// Package video wraps gocv capture and writing behind the thin interfaces
// the pipeline consumes. Container and codec concerns stay here, out of the
// detection and tracking core.
package video

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Source reads frames sequentially from a recorded clip. A failed or
// partial read is end of stream; the caller decides whether accumulated
// results are still worth keeping.
type Source struct {
	path string
	cap  *gocv.VideoCapture
}

// Open opens a clip for sequential reading.
func Open(path string) (*Source, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "video: can't open %s", path)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, errors.Errorf("video: can't open %s", path)
	}
	return &Source{path: path, cap: cap}, nil
}

// Read fetches the next frame into dst, returning false at end of stream.
func (s *Source) Read(dst *gocv.Mat) bool {
	if ok := s.cap.Read(dst); !ok || dst.Empty() {
		return false
	}
	return true
}

// FPS returns the container-reported frame rate.
func (s *Source) FPS() float64 {
	return s.cap.Get(gocv.VideoCaptureFPS)
}

// Width returns the frame width in pixels.
func (s *Source) Width() int {
	return int(s.cap.Get(gocv.VideoCaptureFrameWidth))
}

// Height returns the frame height in pixels.
func (s *Source) Height() int {
	return int(s.cap.Get(gocv.VideoCaptureFrameHeight))
}

// FrameCount returns the container-reported frame count, 0 when unknown.
func (s *Source) FrameCount() int {
	n := int(s.cap.Get(gocv.VideoCaptureFrameCount))
	if n < 0 {
		return 0
	}
	return n
}

// Path returns the clip path this source was opened from.
func (s *Source) Path() string {
	return s.path
}

// Close releases the capture.
func (s *Source) Close() error {
	return s.cap.Close()
}
