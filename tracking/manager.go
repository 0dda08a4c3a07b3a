package tracking

import (
	"fmt"
	"sort"

	"benthoscan/detection"
)

// Params holds the track association thresholds.
type Params struct {
	// MaxDistance is the largest (possibly rest-adjusted) centroid
	// distance at which a blob may join an existing track.
	MaxDistance float64

	// MaxSkipFrames is the skip budget: the number of consecutive
	// unmatched frames a track survives before termination. Benthic
	// organisms scoot, rest, scoot; a short budget fragments one animal
	// into many short invalid tracks every time it pauses.
	MaxSkipFrames int

	// RestZoneRadius is the radius around a resting track's last known
	// position inside which candidate blobs get their matching distance
	// halved. It biases re-matching toward the resting spot without hard
	// gating: a fast mover slightly outside can still match on raw
	// distance.
	RestZoneRadius int
}

// DefaultParams returns the association thresholds from the latest field
// tuning. MaxSkipFrames 60 is roughly 7.5 seconds of rest at the usual
// processed frame rate.
func DefaultParams() Params {
	return Params{
		MaxDistance:    50.0,
		MaxSkipFrames:  60,
		RestZoneRadius: 100,
	}
}

// FrameSummary holds per-frame counters for timeline visualization.
type FrameSummary struct {
	FrameIdx     int
	ActiveTracks int
	RestingCount int
	Blobs        int
	CoupledBlobs int
	NewTracks    int
}

// matchPair is one blob/track candidate assignment.
type matchPair struct {
	blobIdx  int
	trackIdx int
	distance float64
}

// Manager owns the set of live tracks across frames. It must see frames in
// strictly increasing order: the rest and skip semantics at frame n+1
// depend on the outcome at frame n.
type Manager struct {
	params    Params
	active    []*Track
	completed []*Track
	nextID    int
	debugf    func(component, message string)

	totalDetections   int
	coupledDetections int
}

// NewManager creates an empty track manager. debugf may be nil.
func NewManager(params Params, debugf func(component, message string)) *Manager {
	return &Manager{params: params, nextID: 1, debugf: debugf}
}

func (m *Manager) debug(message string) {
	if m.debugf != nil {
		m.debugf("TRACK", message)
	}
}

// Update runs one frame of association: match blobs to tracks greedily by
// adjusted distance, rest or terminate unmatched tracks, and open new
// tracks for unmatched blobs. Blobs are consumed; their data is copied into
// the tracks they join.
func (m *Manager) Update(frameIdx int, blobs []detection.Blob) FrameSummary {
	for _, b := range blobs {
		m.totalDetections++
		if b.Kind == detection.KindCoupled {
			m.coupledDetections++
		}
	}

	matchedBlobs, matchedTracks := m.matchGreedy(frameIdx, blobs)

	// Unmatched existing tracks: rest within the skip budget, terminate
	// beyond it.
	survivors := m.active[:0]
	for i, t := range m.active {
		if _, ok := matchedTracks[i]; ok {
			survivors = append(survivors, t)
			continue
		}
		t.FramesSinceDetection++
		if t.FramesSinceDetection > m.params.MaxSkipFrames {
			m.completed = append(m.completed, t)
			m.debug(fmt.Sprintf("frame %d: track %d terminated after %d unmatched frames",
				frameIdx, t.ID, t.FramesSinceDetection))
			continue
		}
		if !t.Resting {
			t.enterRest(m.params.RestZoneRadius)
			m.debug(fmt.Sprintf("frame %d: track %d resting at (%.1f, %.1f)",
				frameIdx, t.ID, t.LastKnownPosition.X, t.LastKnownPosition.Y))
		}
		survivors = append(survivors, t)
	}
	m.active = survivors

	// Unmatched blobs become new tracks.
	newTracks := 0
	for i, b := range blobs {
		if _, ok := matchedBlobs[i]; ok {
			continue
		}
		t := newTrack(m.nextID, b, frameIdx)
		m.nextID++
		m.active = append(m.active, t)
		newTracks++
	}

	summary := FrameSummary{
		FrameIdx:     frameIdx,
		ActiveTracks: len(m.active),
		Blobs:        len(blobs),
		NewTracks:    newTracks,
	}
	for _, b := range blobs {
		if b.Kind == detection.KindCoupled {
			summary.CoupledBlobs++
		}
	}
	for _, t := range m.active {
		if t.Resting {
			summary.RestingCount++
		}
	}
	return summary
}

// matchGreedy assigns each blob to at most one track and each track to at
// most one blob, closest adjusted distance first. The rest-zone bias halves
// the distance of any blob inside a resting track's rest radius.
func (m *Manager) matchGreedy(frameIdx int, blobs []detection.Blob) (matchedBlobs, matchedTracks map[int]struct{}) {
	matchedBlobs = make(map[int]struct{})
	matchedTracks = make(map[int]struct{})
	if len(blobs) == 0 || len(m.active) == 0 {
		return matchedBlobs, matchedTracks
	}

	var pairs []matchPair
	for bi := range blobs {
		for ti, t := range m.active {
			dist := t.distanceToLast(blobs[bi].Centroid)
			if t.Resting && m.inRestZone(blobs[bi], t) {
				dist *= 0.5
			}
			if dist <= m.params.MaxDistance {
				pairs = append(pairs, matchPair{blobIdx: bi, trackIdx: ti, distance: dist})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].distance < pairs[b].distance })

	for _, p := range pairs {
		if _, taken := matchedBlobs[p.blobIdx]; taken {
			continue
		}
		if _, taken := matchedTracks[p.trackIdx]; taken {
			continue
		}
		matchedBlobs[p.blobIdx] = struct{}{}
		matchedTracks[p.trackIdx] = struct{}{}
		m.active[p.trackIdx].addDetection(blobs[p.blobIdx], frameIdx)
	}
	return matchedBlobs, matchedTracks
}

// inRestZone reports whether the blob centroid lies within the rest radius
// of the track's last known position, on raw (unadjusted) distance.
func (m *Manager) inRestZone(blob detection.Blob, t *Track) bool {
	return blob.Centroid.DistanceTo(t.LastKnownPosition) <= float64(m.params.RestZoneRadius)
}

// ActiveTracks returns the live tracks. The slice is the manager's own;
// callers must not mutate it.
func (m *Manager) ActiveTracks() []*Track {
	return m.active
}

// Finish moves every remaining active track to the completed pool and
// returns all tracks accumulated over the clip, in creation order.
// Ownership passes to the caller.
func (m *Manager) Finish() []*Track {
	m.completed = append(m.completed, m.active...)
	m.active = nil
	sort.Slice(m.completed, func(i, j int) bool { return m.completed[i].ID < m.completed[j].ID })
	return m.completed
}

// TotalDetections returns the number of blobs seen over the whole clip.
func (m *Manager) TotalDetections() int {
	return m.totalDetections
}

// CoupledDetections returns how many of those blobs were coupled pairs.
func (m *Manager) CoupledDetections() int {
	return m.coupledDetections
}

// CouplingRate is the clip-wide percentage of coupled detections.
func (m *Manager) CouplingRate() float64 {
	if m.totalDetections == 0 {
		return 0
	}
	return float64(m.coupledDetections) / float64(m.totalDetections) * 100
}
