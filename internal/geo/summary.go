package geo

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Summary condenses a stored project-location payload for display.
type Summary struct {
	Features int         `json:"features"`
	Types    []string    `json:"types,omitempty"`
	BBox     *[4]float64 `json:"bbox,omitempty"`
	Center   *[2]float64 `json:"center,omitempty"`
}

// Summarize parses a GeoJSON payload and reports feature count, geometry
// types, bounding box, and box center. It accepts a FeatureCollection, a
// single Feature, or a bare geometry.
func Summarize(payload json.RawMessage) (*Summary, error) {
	geoms, types, err := parseGeometries(payload)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Features: len(geoms), Types: types}
	if len(geoms) == 0 {
		return sum, nil
	}

	bounds := geom.NewBounds(geom.XY)
	for _, g := range geoms {
		bounds.Extend(g)
	}
	if bounds.IsEmpty() {
		return sum, nil
	}

	minX, minY := bounds.Min(0), bounds.Min(1)
	maxX, maxY := bounds.Max(0), bounds.Max(1)
	sum.BBox = &[4]float64{minX, minY, maxX, maxY}
	sum.Center = &[2]float64{(minX + maxX) / 2, (minY + maxY) / 2}
	return sum, nil
}

func parseGeometries(payload json.RawMessage) ([]geom.T, []string, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(payload, &fc); err == nil && len(fc.Features) > 0 {
		var geoms []geom.T
		var types []string
		seen := make(map[string]bool)
		for _, f := range fc.Features {
			if f.Geometry == nil {
				continue
			}
			geoms = append(geoms, f.Geometry)
			name := geometryType(f.Geometry)
			if !seen[name] {
				seen[name] = true
				types = append(types, name)
			}
		}
		return geoms, types, nil
	}

	var feat geojson.Feature
	if err := json.Unmarshal(payload, &feat); err == nil && feat.Geometry != nil {
		return []geom.T{feat.Geometry}, []string{geometryType(feat.Geometry)}, nil
	}

	var g geom.T
	if err := geojson.Unmarshal(payload, &g); err == nil && g != nil {
		return []geom.T{g}, []string{geometryType(g)}, nil
	}

	return nil, nil, eris.New("geo: payload is not GeoJSON")
}

func geometryType(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "Point"
	case *geom.MultiPoint:
		return "MultiPoint"
	case *geom.LineString:
		return "LineString"
	case *geom.MultiLineString:
		return "MultiLineString"
	case *geom.Polygon:
		return "Polygon"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	case *geom.GeometryCollection:
		return "GeometryCollection"
	default:
		return "Unknown"
	}
}
