package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gocv.io/x/gocv"
	"gopkg.in/natefinch/lumberjack.v2"

	"benthoscan/background"
	"benthoscan/detection"
	"benthoscan/overlay"
	"benthoscan/results"
	"benthoscan/tracking"
	"benthoscan/video"
)

const (
	// blurKernel is the Gaussian blur applied to the deviation frame
	// before segmentation.
	blurKernel = 5

	// progressInterval is how often (in processed frames) a progress line
	// is logged during the detection pass.
	progressInterval = 50
)

var (
	// Command-line flags
	inputPath = flag.String("input", "", "Input video clip (required)\n\t\tExample: -input=dive_0412_site7.mp4")
	outputDir = flag.String("output", "results", "Output directory for report, background image and annotated video")
	debugMode = flag.Bool("debug", false, "Enable detailed per-frame detection and tracking logs")
	logFile   = flag.String("log-file", "", "Rotating debug log file (empty = console only)\n\t\tExample: -log-file=/var/log/benthoscan/run.log")

	// Frame sampling
	frameStride = flag.Int("stride", 3, "Process every Nth frame; output fps = input fps / stride")

	// Background estimation
	bgSampleStride = flag.Int("bg-sample-stride", 3, "Sample every Nth frame for the background reference")
	bgMaxFrames    = flag.Int("bg-max-frames", 0, "Cap on background frames sampled (0 = whole clip)")
	bgMaxBuffered  = flag.Int("bg-max-buffered", 150, "Max frames buffered for the median background; beyond this the incremental mean is used")

	// Detection thresholds. All of these drifted between field seasons, so
	// every one is a flag rather than a constant.
	stdThreshold    = flag.Int("threshold", 30, "Symmetric deviation threshold for the standard motion segmentation")
	darkThreshold   = flag.Int("dark-threshold", 10, "Deviation below neutral for the dark (shadow) mask; low values catch faint shadows")
	brightThreshold = flag.Int("bright-threshold", 25, "Deviation above neutral for the bright (reflection) mask")
	minArea         = flag.Int("min-area", 30, "Minimum blob area in pixels")
	maxArea         = flag.Int("max-area", 2000, "Maximum blob area in pixels")
	minCircularity  = flag.Float64("min-circularity", 0.3, "Minimum blob circularity (4*pi*area/perimeter^2)")
	maxAspectRatio  = flag.Float64("max-aspect-ratio", 3.0, "Maximum blob aspect ratio (max side / min side)")
	morphKernel     = flag.Int("morph-kernel", 5, "Side of the elliptical structuring element for mask cleanup")
	couplingDist    = flag.Float64("coupling-distance", 100, "Max centroid distance (pixels) for shadow-reflection coupling")
	couplingBoost   = flag.Float64("coupling-boost", 1.3, "Confidence multiplier for coupled detections")
	requireCoupling = flag.Bool("require-coupling", false, "Drop uncoupled dark blobs (default keeps partial shadows)")
	duplicateRadius = flag.Float64("duplicate-radius", 20, "Centroid distance under which a standard blob duplicates an accepted one")

	// Tracking thresholds
	maxDistance   = flag.Float64("max-distance", 50, "Max centroid distance for blob-to-track association")
	maxSkipFrames = flag.Int("max-skip-frames", 60, "Skip budget: unmatched frames a track survives before termination")
	restRadius    = flag.Int("rest-zone-radius", 100, "Radius around a resting track's last position that biases re-matching")

	// Validation thresholds
	minTrackLength  = flag.Int("min-track-length", 5, "Minimum detections for a valid track")
	minDisplacement = flag.Float64("min-displacement", 10.0, "Minimum cumulative path length (pixels) for a valid track")
	minSpeed        = flag.Float64("min-speed", 0.1, "Minimum average speed (pixels per detection step)")
	maxSpeed        = flag.Float64("max-speed", 30.0, "Maximum average speed (pixels per detection step)")

	// Output videos
	saveAnnotated  = flag.Bool("save-annotated", true, "Write the annotated video with track trails")
	saveSubtracted = flag.Bool("save-subtracted", false, "Write the background-subtracted deviation video")
	fourcc         = flag.String("fourcc", "avc1", "Fourcc for output videos, passed through to the writer")
)

// DebugLogger provides unified component-tagged logging for console and a
// rotating log file. Verbosity is an explicit value here, not package
// state: components receive Msg as a plain function so they stay testable
// without any of this.
type DebugLogger struct {
	debug bool
	file  *lumberjack.Logger
}

// NewDebugLogger creates the logger. path may be empty for console-only.
func NewDebugLogger(debug bool, path string) *DebugLogger {
	l := &DebugLogger{debug: debug}
	if path != "" {
		l.file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}
	}
	return l
}

// Msg logs one component-tagged message. Console output is gated on the
// debug flag; the log file (when configured) gets everything.
func (l *DebugLogger) Msg(component, message string) {
	line := fmt.Sprintf("[%s][%s] %s\n", time.Now().Format("15:04:05.000"), component, message)
	if l.debug {
		fmt.Print(line)
	}
	if l.file != nil {
		l.file.Write([]byte(line))
	}
}

// Info logs unconditionally to the console and the log file.
func (l *DebugLogger) Info(component, message string) {
	line := fmt.Sprintf("[%s][%s] %s\n", time.Now().Format("15:04:05.000"), component, message)
	fmt.Print(line)
	if l.file != nil {
		l.file.Write([]byte(line))
	}
}

// Close flushes the rotating log file.
func (l *DebugLogger) Close() {
	if l.file != nil {
		l.file.Close()
	}
}

func main() {
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "ERROR: -input is required")
		flag.Usage()
		os.Exit(1)
	}

	logger := NewDebugLogger(*debugMode, *logFile)
	defer logger.Close()

	if err := run(logger); err != nil {
		logger.Info("MAIN", fmt.Sprintf("FAILED: %v", err))
		os.Exit(1)
	}
}

func run(logger *DebugLogger) error {
	detParams := detection.Params{
		Threshold:        *stdThreshold,
		DarkThreshold:    *darkThreshold,
		BrightThreshold:  *brightThreshold,
		MinArea:          *minArea,
		MaxArea:          *maxArea,
		MinCircularity:   *minCircularity,
		MaxAspectRatio:   *maxAspectRatio,
		MorphKernelSize:  *morphKernel,
		CouplingDistance: *couplingDist,
		CouplingBoost:    *couplingBoost,
		RequireCoupling:  *requireCoupling,
		DuplicateRadius:  *duplicateRadius,
	}
	trackParams := tracking.Params{
		MaxDistance:    *maxDistance,
		MaxSkipFrames:  *maxSkipFrames,
		RestZoneRadius: *restRadius,
	}
	validationParams := tracking.ValidationParams{
		MinTrackLength:  *minTrackLength,
		MinDisplacement: *minDisplacement,
		MinSpeed:        *minSpeed,
		MaxSpeed:        *maxSpeed,
	}
	bgParams := background.Params{
		SampleStride: *bgSampleStride,
		MaxFrames:    *bgMaxFrames,
		MaxBuffered:  *bgMaxBuffered,
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		return fmt.Errorf("can't create output directory: %w", err)
	}

	started := time.Now()
	clipName := strings.TrimSuffix(filepath.Base(*inputPath), filepath.Ext(*inputPath))

	// Pass 1: background reference over the whole clip.
	logger.Info("BACKGROUND", fmt.Sprintf("estimating reference from %s", *inputPath))
	src, err := video.Open(*inputPath)
	if err != nil {
		return err
	}
	ref, bgMeta, err := background.Estimate(src, bgParams)
	src.Close()
	if err != nil {
		return err
	}
	defer ref.Close()
	logger.Info("BACKGROUND", fmt.Sprintf("%s reference from %d frames (%dx%d @ %.2f fps)",
		bgMeta.Method, bgMeta.FramesUsed, bgMeta.Width, bgMeta.Height, bgMeta.FPS))

	bgPath := filepath.Join(*outputDir, clipName+"_background.jpg")
	saveBackgroundImage(ref, bgPath)
	logger.Msg("BACKGROUND", "reference saved to "+bgPath)

	// Pass 2: detection and tracking, streaming frame by frame.
	src, err = video.Open(*inputPath)
	if err != nil {
		return err
	}
	defer src.Close()

	outputFPS := src.FPS() / float64(*frameStride)
	width, height := src.Width(), src.Height()

	var subtractedWriter, annotatedWriter *video.Writer
	if *saveSubtracted {
		subtractedWriter, err = video.NewWriter(
			filepath.Join(*outputDir, clipName+"_background_subtracted.mp4"),
			*fourcc, outputFPS, width, height)
		if err != nil {
			return err
		}
		defer subtractedWriter.Close()
	}
	if *saveAnnotated {
		annotatedWriter, err = video.NewWriter(
			filepath.Join(*outputDir, clipName+"_benthic_activity.mp4"),
			*fourcc, outputFPS, width, height)
		if err != nil {
			return err
		}
		defer annotatedWriter.Close()
	}

	detector := detection.NewDetector(detParams, logger.Msg)
	manager := tracking.NewManager(trackParams, logger.Msg)
	renderer := overlay.NewRenderer(true)

	var timeline []tracking.FrameSummary

	frame := gocv.NewMat()
	defer frame.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	grayF := gocv.NewMat()
	defer grayF.Close()
	diff := gocv.NewMat()
	defer diff.Close()
	deviation := gocv.NewMat()
	defer deviation.Close()
	blurred := gocv.NewMat()
	defer blurred.Close()
	annotated := gocv.NewMat()
	defer annotated.Close()
	deviationBGR := gocv.NewMat()
	defer deviationBGR.Close()

	frameIdx := 0
	processedIdx := 0
	for src.Read(&frame) {
		if frameIdx%*frameStride != 0 {
			frameIdx++
			continue
		}
		frameIdx++

		// Deviation frame: signed difference from the reference, centered
		// on mid-gray 128 with saturation.
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
		gray.ConvertTo(&grayF, gocv.MatTypeCV32F)
		gocv.Subtract(grayF, ref, &diff)
		diff.ConvertToWithParams(&deviation, gocv.MatTypeCV8U, 1.0, 128.0)
		gocv.GaussianBlur(deviation, &blurred, image.Pt(blurKernel, blurKernel), 0, 0, gocv.BorderDefault)

		blobs := detector.Detect(blurred, processedIdx)
		summary := manager.Update(processedIdx, blobs)
		timeline = append(timeline, summary)

		if subtractedWriter != nil {
			gocv.CvtColor(deviation, &deviationBGR, gocv.ColorGrayToBGR)
			if err := subtractedWriter.Write(deviationBGR); err != nil {
				return err
			}
		}
		if annotatedWriter != nil {
			frame.CopyTo(&annotated)
			renderer.Annotate(&annotated, manager.ActiveTracks(), processedIdx)
			if err := annotatedWriter.Write(annotated); err != nil {
				return err
			}
		}

		processedIdx++
		if processedIdx%progressInterval == 0 {
			logger.Info("PIPELINE", fmt.Sprintf("frame %d - %d tracks (%d resting, %.1f%% coupled)",
				processedIdx, summary.ActiveTracks, summary.RestingCount, manager.CouplingRate()))
		}
	}

	// A read failure mid-stream lands here the same as a clean end of
	// clip: whatever accumulated is still validated and reported.
	tracks := manager.Finish()
	validCount := tracking.ValidateAll(tracks, validationParams)
	logger.Info("VALIDATE", fmt.Sprintf("valid tracks: %d/%d", validCount, len(tracks)))
	for _, t := range tracks {
		if !t.Valid {
			continue
		}
		logger.Info("VALIDATE", fmt.Sprintf("track %d: %d detections, %d frame span, %d rest periods, %.1f%% coupled",
			t.ID, t.Length(), t.TotalDuration(), t.RestPeriods(), t.CouplingRate()))
	}

	info := results.NewVideoInfo(*inputPath, src.FPS(), width, height, *frameStride, processedIdx, bgMeta)
	report := results.Build(tracks, info, results.Parameters{
		Detection:  detParams,
		Tracking:   trackParams,
		Validation: validationParams,
		Background: bgParams,
	}, timeline, manager.TotalDetections(), manager.CoupledDetections(), time.Since(started))

	reportPath := filepath.Join(*outputDir, clipName+"_benthic_activity.json")
	if err := report.Save(reportPath); err != nil {
		return err
	}

	logger.Info("MAIN", fmt.Sprintf("done in %.1fs: %d/%d valid tracks, %.1f%% coupling, report %s",
		time.Since(started).Seconds(), validCount, len(tracks), manager.CouplingRate(), reportPath))
	return nil
}

// saveBackgroundImage writes the float32 reference as an 8-bit grayscale
// image for inspection.
func saveBackgroundImage(ref gocv.Mat, path string) {
	bg8 := gocv.NewMat()
	defer bg8.Close()
	ref.ConvertTo(&bg8, gocv.MatTypeCV8U)
	gocv.IMWrite(path, bg8)
}
