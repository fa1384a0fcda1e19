package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/ucs-fleet/livemap/pkg/core"
)

// TrailLineString builds a geom.LineString from an ordered trail.
// Trails shorter than two points produce an empty line string, which
// the render layer treats as "no trail to draw".
func TrailLineString(points []core.TrailPoint) geom.LineString {
	if len(points) < 2 {
		return geom.LineString{}
	}
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.Lng, p.Lat)
	}
	seq := geom.NewSequence(flat, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}
	}
	return ls
}
