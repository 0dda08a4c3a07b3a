package tracking

// ValidationParams holds the track acceptance thresholds.
type ValidationParams struct {
	// MinTrackLength is the minimum number of detection events.
	MinTrackLength int

	// MinDisplacement is the minimum cumulative path length in pixels.
	// Rejects background noise oscillating in place.
	MinDisplacement float64

	// MinSpeed and MaxSpeed bound the average speed in pixels per
	// detection step. Too fast means two different blobs got linked or a
	// non-organism artifact; too slow is indistinguishable from noise.
	MinSpeed float64
	MaxSpeed float64
}

// DefaultValidationParams returns the acceptance thresholds from the latest
// field tuning.
func DefaultValidationParams() ValidationParams {
	return ValidationParams{
		MinTrackLength:  5,
		MinDisplacement: 10.0,
		MinSpeed:        0.1,
		MaxSpeed:        30.0,
	}
}

// Validate judges a completed track. A track with fewer than two detections
// is never valid: displacement and speed are undefined for a single point,
// so it cannot clear the displacement floor.
func Validate(t *Track, params ValidationParams) bool {
	if t.Length() < params.MinTrackLength {
		return false
	}
	if t.Length() < 2 {
		return false
	}
	if t.Displacement() < params.MinDisplacement {
		return false
	}
	speed := t.AvgSpeed()
	if speed < params.MinSpeed || speed > params.MaxSpeed {
		return false
	}
	return true
}

// ValidateAll sets the validity flag on every completed track and returns
// the count of valid ones.
func ValidateAll(tracks []*Track, params ValidationParams) int {
	valid := 0
	for _, t := range tracks {
		t.Valid = Validate(t, params)
		if t.Valid {
			valid++
		}
	}
	return valid
}
