// Package arena holds the arena catalog and the planar geometry used for
// telegraph footprints and danger queries. Coordinates are game-map yalms;
// each arena records where its center sits on the map.
package arena

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/stratsim/engine/pkg/core"
)

// Definition describes one arena.
type Definition struct {
	Name        string  // catalog key
	DisplayName string
	Size        geom.XY // width/height in yalms
	Center      geom.XY // game-map coordinates of the center, for import/export only
	MapID       uint32
}

// Catalog is the built-in arena table.
var Catalog = map[string]Definition{
	"kokytos": {
		Name:        "kokytos",
		DisplayName: "P9S: Anabaseios: The Ninth Circle (Kokytos)",
		Size:        geom.XY{X: 44, Y: 44},
		Center:      geom.XY{X: 100, Y: 100},
		MapID:       937,
	},
}

// Lookup returns the arena definition for a catalog key, falling back to
// kokytos when the key is unknown or empty.
func Lookup(name string) Definition {
	if d, ok := Catalog[name]; ok {
		return d
	}
	return Catalog["kokytos"]
}

// Contains reports whether a point lies within the arena bounds.
func (d Definition) Contains(p geom.XY) bool {
	return math.Abs(p.X-d.Center.X) <= d.Size.X/2 && math.Abs(p.Y-d.Center.Y) <= d.Size.Y/2
}

// circleSteps is the number of edge vertices used to approximate arcs.
const circleSteps = 32

func closeRing(coords []float64) geom.Polygon {
	coords = append(coords, coords[0], coords[1])
	seq := geom.NewSequence(coords, geom.DimXY)
	ring := geom.NewLineString(seq)
	return geom.NewPolygon([]geom.LineString{ring})
}

// CirclePolygon approximates a circular footprint.
func CirclePolygon(center geom.XY, radius float64) geom.Polygon {
	coords := make([]float64, 0, circleSteps*2+2)
	for i := 0; i < circleSteps; i++ {
		a := 2 * math.Pi * float64(i) / circleSteps
		coords = append(coords, center.X+radius*math.Cos(a), center.Y+radius*math.Sin(a))
	}
	return closeRing(coords)
}

// ConePolygon approximates a cone footprint with its apex at pos, opening
// halfAngle radians to each side of facing.
func ConePolygon(apex geom.XY, facing, halfAngle, radius float64) geom.Polygon {
	coords := []float64{apex.X, apex.Y}
	for i := 0; i <= circleSteps; i++ {
		a := facing - halfAngle + 2*halfAngle*float64(i)/circleSteps
		coords = append(coords, apex.X+radius*math.Cos(a), apex.Y+radius*math.Sin(a))
	}
	return closeRing(coords)
}

// RectPolygon builds a rectangle footprint centered on pos, its length
// axis along facing.
func RectPolygon(center geom.XY, facing, width, length float64) geom.Polygon {
	sin, cos := math.Sincos(facing)
	hw, hl := width/2, length/2
	corners := [][2]float64{{-hw, -hl}, {hw, -hl}, {hw, hl}, {-hw, hl}}
	coords := make([]float64, 0, 10)
	for _, c := range corners {
		// rotate the local (w,l) frame so +l points along facing
		x := center.X + c[1]*cos - c[0]*sin
		y := center.Y + c[1]*sin + c[0]*cos
		coords = append(coords, x, y)
	}
	return closeRing(coords)
}

// FootprintPolygon places a footprint at an entity state.
func FootprintPolygon(fp core.Footprint, st core.PropertyState) geom.Polygon {
	switch fp.Kind {
	case FootprintKindCone:
		return ConePolygon(st.Pos, st.Facing, fp.Angle, fp.Radius)
	case FootprintKindRect:
		return RectPolygon(st.Pos, st.Facing, fp.Width, fp.Length)
	default:
		return CirclePolygon(st.Pos, fp.Radius)
	}
}

// Aliases so callers can switch without importing core constants.
const (
	FootprintKindCircle = core.FootprintCircle
	FootprintKindCone   = core.FootprintCone
	FootprintKindRect   = core.FootprintRect
)

// FootprintContains reports whether target (expanded by its hitbox radius)
// touches the footprint placed at st.
func FootprintContains(fp core.Footprint, st core.PropertyState, target geom.XY, hitboxRadius float64) bool {
	poly := FootprintPolygon(fp, st)
	if hitboxRadius <= 0 {
		pt := geom.NewPoint(geom.Coordinates{XY: target, Type: geom.DimXY})
		return geom.Intersects(poly.AsGeometry(), pt.AsGeometry())
	}
	hitbox := CirclePolygon(target, hitboxRadius)
	return geom.Intersects(poly.AsGeometry(), hitbox.AsGeometry())
}
