package domain

import "math"

// Point is a WGS-84 latitude/longitude pair in degrees, west-negative.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// TrackPoint is a position with the wind observed there.
type TrackPoint struct {
	Point
	Wind int
}

// Points drops the wind from a track.
func Points(track []TrackPoint) []Point {
	pts := make([]Point, len(track))
	for i, tp := range track {
		pts[i] = tp.Point
	}
	return pts
}

// Midpoint returns the geographic midpoint of the points: each is projected
// onto the unit sphere, the Cartesian axes are averaged independently, and
// the mean vector is converted back to degrees. Every averaging method in
// this file goes through it and differs only in which points it selects.
func Midpoint(points []Point) (Point, error) {
	if len(points) == 0 {
		return Point{}, &Error{Kind: ErrEmptySequence, Op: "midpoint"}
	}
	var sx, sy, sz float64
	for _, p := range points {
		lat := p.Lat * math.Pi / 180
		lon := p.Lon * math.Pi / 180
		sx += math.Cos(lat) * math.Cos(lon)
		sy += math.Cos(lat) * math.Sin(lon)
		sz += math.Sin(lat)
	}
	n := float64(len(points))
	x, y, z := sx/n, sy/n, sz/n

	return Point{
		Lat: math.Atan2(z, math.Hypot(x, y)) * 180 / math.Pi,
		Lon: math.Atan2(y, x) * 180 / math.Pi,
	}, nil
}

// AvgAll is the midpoint of the whole track.
func AvgAll(points []Point) (Point, error) {
	return Midpoint(points)
}

// AvgMid is the midpoint of the samples around peak wind: numMeas before the
// first maximum up to, but not including, numMeas after it, clipped to the
// track. When the maximum is the very first sample the whole track is used.
func AvgMid(track []TrackPoint, numMeas int) (Point, error) {
	if err := checkNumMeas("avg mid", numMeas); err != nil {
		return Point{}, err
	}
	if len(track) == 0 {
		return Point{}, &Error{Kind: ErrEmptySequence, Op: "avg mid"}
	}

	peak := 0
	for i, tp := range track {
		if tp.Wind > track[peak].Wind {
			peak = i
		}
	}
	pts := Points(track)
	if peak == 0 {
		return Midpoint(pts)
	}
	lo := max(peak-numMeas, 0)
	hi := min(peak+numMeas, len(pts))
	return Midpoint(pts[lo:hi])
}

// AvgFirst is the midpoint of the first numMeas samples, or all of them if the
// track is shorter.
func AvgFirst(points []Point, numMeas int) (Point, error) {
	if err := checkNumMeas("avg first", numMeas); err != nil {
		return Point{}, err
	}
	return Midpoint(points[:min(numMeas, len(points))])
}

// AvgLast is the midpoint of the last numMeas samples.
func AvgLast(points []Point, numMeas int) (Point, error) {
	if err := checkNumMeas("avg last", numMeas); err != nil {
		return Point{}, err
	}
	return Midpoint(points[max(len(points)-numMeas, 0):])
}

// CalcScale is the summed absolute latitude change between successive samples
// times the summed absolute longitude change. It measures how far a track
// wanders and is only meaningful relative to other storms.
func CalcScale(points []Point) float64 {
	var dLat, dLon float64
	for i := 1; i < len(points); i++ {
		dLat += math.Abs(points[i].Lat - points[i-1].Lat)
		dLon += math.Abs(points[i].Lon - points[i-1].Lon)
	}
	return dLat * dLon
}

// WeightedAvgCoords scales the whole-track midpoint component-wise by
// scale/scaleMax. The result is not a position on the track; it is used to
// compare storms against the largest one in a batch.
func WeightedAvgCoords(points []Point, scale, scaleMax float64) (Point, error) {
	if scaleMax <= 0 {
		return Point{}, invalidInput("weighted avg", "scale max %g must be positive", scaleMax)
	}
	mid, err := Midpoint(points)
	if err != nil {
		return Point{}, err
	}
	return weigh(mid, scale/scaleMax), nil
}

func weigh(p Point, w float64) Point {
	return Point{Lat: p.Lat * w, Lon: p.Lon * w}
}

func checkNumMeas(op string, numMeas int) error {
	if numMeas < 1 {
		return invalidInput(op, "numMeas %d must be at least 1", numMeas)
	}
	return nil
}
