package video

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Writer writes frames to an output clip. The fourcc is passed straight
// through to the backend; codec selection and fallback belong to the
// operator, not the pipeline.
type Writer struct {
	path string
	w    *gocv.VideoWriter
}

// NewWriter opens an output clip with the given fourcc (e.g. "avc1").
func NewWriter(path, fourcc string, fps float64, width, height int) (*Writer, error) {
	w, err := gocv.VideoWriterFile(path, fourcc, fps, width, height, true)
	if err != nil {
		return nil, errors.Wrapf(err, "video: can't create %s", path)
	}
	if !w.IsOpened() {
		w.Close()
		return nil, errors.Errorf("video: writer for %s did not open", path)
	}
	return &Writer{path: path, w: w}, nil
}

// Write appends one frame.
func (w *Writer) Write(frame gocv.Mat) error {
	if err := w.w.Write(frame); err != nil {
		return errors.Wrapf(err, "video: write to %s failed", w.path)
	}
	return nil
}

// Path returns the output clip path.
func (w *Writer) Path() string {
	return w.path
}

// Close flushes and releases the writer.
func (w *Writer) Close() error {
	return w.w.Close()
}
