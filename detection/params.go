package detection

// Params holds every detection threshold. The upstream tuning of these
// values changed several times between field seasons, so nothing in the
// detector hard-codes them: construct with DefaultParams and override per
// deployment.
type Params struct {
	// Threshold is the symmetric deviation threshold for the generic
	// "standard" motion segmentation.
	Threshold int

	// DarkThreshold is the deviation below neutral required for a pixel to
	// join the dark (shadow) mask. Kept low: shadows of small organisms on
	// silty seafloor are faint.
	DarkThreshold int

	// BrightThreshold is the deviation above neutral required for a pixel
	// to join the bright (specular reflection) mask.
	BrightThreshold int

	// MinArea and MaxArea bound accepted blob pixel counts.
	MinArea int
	MaxArea int

	// MinCircularity rejects ragged noise regions. Circularity is
	// 4*pi*area/perimeter^2, 1.0 for a perfect circle.
	MinCircularity float64

	// MaxAspectRatio rejects elongated regions (drifting weed, scan lines).
	MaxAspectRatio float64

	// MorphKernelSize is the side of the elliptical structuring element
	// used for the close-then-open cleanup of each binary mask.
	MorphKernelSize int

	// CouplingDistance is the maximum centroid distance (pixels) between a
	// dark blob and a bright blob for them to be paired.
	CouplingDistance float64

	// CouplingBoost multiplies the confidence of a coupled detection.
	CouplingBoost float64

	// RequireCoupling drops uncoupled dark blobs when true. Off by
	// default: a partial shadow without a visible reflection is common.
	RequireCoupling bool

	// DuplicateRadius is the centroid distance under which a standard blob
	// is considered a duplicate of an already accepted dark/bright/coupled
	// blob and discarded.
	DuplicateRadius float64
}

// DefaultParams returns the detection thresholds from the latest field
// tuning.
func DefaultParams() Params {
	return Params{
		Threshold:        30,
		DarkThreshold:    10,
		BrightThreshold:  25,
		MinArea:          30,
		MaxArea:          2000,
		MinCircularity:   0.3,
		MaxAspectRatio:   3.0,
		MorphKernelSize:  5,
		CouplingDistance: 100,
		CouplingBoost:    1.3,
		RequireCoupling:  false,
		DuplicateRadius:  20,
	}
}
