package detection

import "sort"

// couplePair is one dark/bright candidate pairing.
type couplePair struct {
	darkIdx   int
	brightIdx int
	distance  float64
}

// Couple pairs dark (shadow) blobs with bright (specular reflection) blobs
// from the same frame. A hard-shelled organism casts both at once, so a
// pair raises confidence well above either single-polarity detection.
//
// All dark-bright centroid pairs within CouplingDistance are sorted
// ascending by distance and accepted greedily, each blob claimed at most
// once. Greedy matching is not globally optimal, but true pairs sit much
// closer than false ones in practice and the outcome is deterministic and
// independent of input order when no two distances tie exactly.
//
// Returns the coupled blobs plus the residual uncoupled dark and bright
// blobs. A coupled blob inherits the dark blob's geometry, multiplies its
// confidence by CouplingBoost, and records the bright index it paired with.
func Couple(dark, bright []Blob, params Params) (coupled, uncoupledDark, uncoupledBright []Blob) {
	if len(dark) == 0 || len(bright) == 0 {
		return nil, dark, bright
	}

	var pairs []couplePair
	for i := range dark {
		for j := range bright {
			dist := dark[i].Centroid.DistanceTo(bright[j].Centroid)
			if dist <= params.CouplingDistance {
				pairs = append(pairs, couplePair{darkIdx: i, brightIdx: j, distance: dist})
			}
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].distance < pairs[b].distance })

	matchedDark := make(map[int]struct{})
	matchedBright := make(map[int]struct{})
	for _, p := range pairs {
		if _, taken := matchedDark[p.darkIdx]; taken {
			continue
		}
		if _, taken := matchedBright[p.brightIdx]; taken {
			continue
		}
		matchedDark[p.darkIdx] = struct{}{}
		matchedBright[p.brightIdx] = struct{}{}

		c := dark[p.darkIdx]
		c.Confidence *= params.CouplingBoost
		c.Kind = KindCoupled
		c.CoupledWith = p.brightIdx
		coupled = append(coupled, c)
	}

	for i := range dark {
		if _, taken := matchedDark[i]; !taken {
			uncoupledDark = append(uncoupledDark, dark[i])
		}
	}
	for j := range bright {
		if _, taken := matchedBright[j]; !taken {
			uncoupledBright = append(uncoupledBright, bright[j])
		}
	}
	return coupled, uncoupledDark, uncoupledBright
}
