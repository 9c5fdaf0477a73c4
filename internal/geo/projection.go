// Package geo provides the spatial machinery for the map service: web
// mercator projection and the zoom-aware cluster index the marker
// reconciler queries on every viewport change.
package geo

import "math"

// Project converts lng/lat to normalized web mercator coordinates in [0, 1].
// All clustering distance math happens in this space: it is zoom-independent,
// and a pixel radius at zoom z is simply radius/(extent*2^z) normalized units.
//
// Go Learning Note — Why normalize instead of tile coordinates:
// Projecting once into [0,1] and scaling the *radius* per zoom level means the
// points are projected a single time at load, not once per zoom level. The
// alternative (projecting points into tile space per zoom) does the same math
// but repeats it for every level of the pyramid.
func Project(lng, lat float64) (x, y float64) {
	sin := math.Sin(lat * math.Pi / 180)
	x = lng/360 + 0.5
	y = 0.5 - 0.25*math.Log((1+sin)/(1-sin))/math.Pi

	// Web mercator is undefined at the poles; clamp so degenerate input
	// cannot produce Inf coordinates that poison the index.
	if y < 0 {
		y = 0
	}
	if y > 1 {
		y = 1
	}
	return x, y
}

// Unproject converts normalized web mercator coordinates back to lng/lat.
func Unproject(x, y float64) (lng, lat float64) {
	lng = (x - 0.5) * 360
	y2 := (180 - y*360) * math.Pi / 180
	lat = 360*math.Atan(math.Exp(y2))/math.Pi - 90
	return lng, lat
}
