package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	paris := Record{City: "Paris", Lat: 48.8566, Lon: 2.3522}
	london := Record{City: "London", Lat: 51.5074, Lon: -0.1278}

	assert.InDelta(t, 343.5, Distance(paris, london), 1.0)
	assert.Equal(t, Distance(paris, london), Distance(london, paris))
	assert.Zero(t, Distance(paris, paris))

	// antipodes: half the circumference, no NaN from rounding past 1
	got := Distance(Record{Lat: 0, Lon: 0}, Record{Lat: 0, Lon: 180})
	assert.InDelta(t, math.Pi*EarthRadiusKm, got, 1e-6)
	assert.False(t, math.IsNaN(Distance(Record{Lat: 90}, Record{Lat: -90, Lon: 37})))
}

func TestLatGapKmIsLowerBound(t *testing.T) {
	a := Record{Lat: 10, Lon: 20}
	b := Record{Lat: 13, Lon: -150}
	assert.InDelta(t, 333.585, LatGapKm(3), 0.01)
	assert.Equal(t, LatGapKm(3), LatGapKm(-3))
	assert.LessOrEqual(t, LatGapKm(b.Lat-a.Lat), Distance(a, b))
}

func TestRect(t *testing.T) {
	r, err := NewRect(40, -5, 45, 15)
	require.NoError(t, err)

	assert.True(t, r.Contains(Record{Lat: 40, Lon: -5}), "corners are inside")
	assert.True(t, r.Contains(Record{Lat: 45, Lon: 15}))
	assert.False(t, r.Contains(Record{Lat: 45.0001, Lon: 0}))
	assert.Equal(t, 40.0, r.Min(AxisLat))
	assert.Equal(t, -5.0, r.Min(AxisLon))
	assert.Equal(t, 45.0, r.Max(AxisLat))
	assert.Equal(t, 15.0, r.Max(AxisLon))

	inverted, err := NewRect(10, 0, 0, 1)
	require.NoError(t, err)
	assert.False(t, inverted.Contains(Record{Lat: 5, Lon: 0.5}), "inverted rectangle is empty")

	_, err = NewRect(math.NaN(), 0, 1, 1)
	assert.Error(t, err)
}

func TestAxisAlternates(t *testing.T) {
	r := Record{Lat: 1, Lon: 2}
	for depth := 0; depth < 6; depth++ {
		want := 1.0
		if depth%2 == 1 {
			want = 2.0
		}
		assert.Equal(t, want, r.Coord(AxisAt(depth)), "depth %d", depth)
	}
	assert.Equal(t, "lat", AxisLat.String())
	assert.Equal(t, "lon", AxisLon.String())
}
