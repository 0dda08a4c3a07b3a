package detection

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func darkBlob(x, y float64) Blob {
	return Blob{
		BBox:        image.Rect(int(x)-10, int(y)-5, int(x)+10, int(y)+5),
		Centroid:    Point{X: x, Y: y},
		Area:        200,
		Circularity: 0.8,
		AspectRatio: 2.0,
		Confidence:  0.8,
		Kind:        KindDark,
		CoupledWith: -1,
	}
}

func brightBlob(x, y float64) Blob {
	b := darkBlob(x, y)
	b.Kind = KindBright
	return b
}

func TestCoupleSinglePair(t *testing.T) {
	params := DefaultParams()
	dark := []Blob{darkBlob(100, 100)}
	bright := []Blob{brightBlob(130, 100)} // 30px apart, cutoff 100

	coupled, uncoupledDark, uncoupledBright := Couple(dark, bright, params)
	require.Len(t, coupled, 1)
	assert.Empty(t, uncoupledDark)
	assert.Empty(t, uncoupledBright)

	c := coupled[0]
	assert.Equal(t, KindCoupled, c.Kind)
	assert.Equal(t, dark[0].BBox, c.BBox, "coupled blob inherits the dark blob's geometry")
	assert.Equal(t, dark[0].Centroid, c.Centroid)
	assert.InDelta(t, dark[0].Confidence*params.CouplingBoost, c.Confidence, 1e-9)
	assert.Equal(t, 0, c.CoupledWith)
}

func TestCoupleRespectsDistanceCutoff(t *testing.T) {
	params := DefaultParams()
	params.CouplingDistance = 50

	dark := []Blob{darkBlob(100, 100)}
	bright := []Blob{brightBlob(200, 100)} // 100px apart

	coupled, uncoupledDark, uncoupledBright := Couple(dark, bright, params)
	assert.Empty(t, coupled)
	assert.Len(t, uncoupledDark, 1)
	assert.Len(t, uncoupledBright, 1)
}

func TestCoupleGreedyTakesClosestPairFirst(t *testing.T) {
	params := DefaultParams()

	// One bright blob between two dark blobs: the nearer dark blob wins,
	// the other stays uncoupled.
	dark := []Blob{darkBlob(100, 100), darkBlob(150, 100)}
	bright := []Blob{brightBlob(140, 100)}

	coupled, uncoupledDark, uncoupledBright := Couple(dark, bright, params)
	require.Len(t, coupled, 1)
	assert.Equal(t, Point{X: 150, Y: 100}, coupled[0].Centroid)
	require.Len(t, uncoupledDark, 1)
	assert.Equal(t, Point{X: 100, Y: 100}, uncoupledDark[0].Centroid)
	assert.Empty(t, uncoupledBright)
}

func TestCoupleOrderIndependent(t *testing.T) {
	// Permuting the input lists must yield the same set of coupled pairs
	// when no two distances tie exactly.
	params := DefaultParams()

	dark := []Blob{darkBlob(100, 100), darkBlob(300, 100), darkBlob(500, 110)}
	bright := []Blob{brightBlob(120, 100), brightBlob(310, 107), brightBlob(560, 100)}

	pairCentroids := func(coupled []Blob) map[Point]struct{} {
		set := make(map[Point]struct{})
		for _, c := range coupled {
			set[c.Centroid] = struct{}{}
		}
		return set
	}

	base, _, _ := Couple(dark, bright, params)

	darkRev := []Blob{dark[2], dark[0], dark[1]}
	brightRev := []Blob{bright[1], bright[2], bright[0]}
	permuted, _, _ := Couple(darkRev, brightRev, params)

	assert.Equal(t, pairCentroids(base), pairCentroids(permuted))
	assert.Len(t, permuted, len(base))
}

func TestCoupleEmptyInputs(t *testing.T) {
	params := DefaultParams()

	coupled, uncoupledDark, uncoupledBright := Couple(nil, []Blob{brightBlob(1, 1)}, params)
	assert.Empty(t, coupled)
	assert.Empty(t, uncoupledDark)
	assert.Len(t, uncoupledBright, 1)

	coupled, uncoupledDark, uncoupledBright = Couple([]Blob{darkBlob(1, 1)}, nil, params)
	assert.Empty(t, coupled)
	assert.Len(t, uncoupledDark, 1)
	assert.Empty(t, uncoupledBright)
}
