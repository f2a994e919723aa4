// Package tiger reads Census TIGER/Line block-group shapefiles into source
// polygons for dissolving.
package tiger

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/boundary-cli/internal/boundary"
)

// Filter selects shapefile records.
type Filter struct {
	// GEOIDPrefix keeps records whose GEOID starts with it, e.g. "13121"
	// for Fulton County, GA. Empty keeps everything.
	GEOIDPrefix string
}

func (f Filter) keep(geoid string) bool {
	return f.GEOIDPrefix == "" || strings.HasPrefix(geoid, f.GEOIDPrefix)
}

var geoidFields = []string{"geoid", "geoid20", "geoid10"}

// ReadPolygons reads a polygon shapefile and returns one source polygon per
// outer ring of every matching record. Record attributes become the
// polygon properties.
func ReadPolygons(shpPath string, filter Filter) ([]boundary.SourcePolygon, error) {
	log := zap.L().With(
		zap.String("component", "tiger.shapefile"),
		zap.String("path", shpPath),
	)

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	geoidIdx := -1
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
		for _, g := range geoidFields {
			if geoidIdx < 0 && strings.EqualFold(names[i], g) {
				geoidIdx = i
			}
		}
	}

	var (
		out      []boundary.SourcePolygon
		skipped  int
		filtered int
	)
	for reader.Next() {
		n, shape := reader.Shape()

		props := make(map[string]any, len(names))
		for i, name := range names {
			props[name] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}

		geoid := ""
		if geoidIdx >= 0 {
			geoid, _ = props[names[geoidIdx]].(string)
		}
		if !filter.keep(geoid) {
			filtered++
			continue
		}
		if geoid == "" {
			geoid = "record/" + strconv.Itoa(n)
		}

		g := shapeGeometry(shape)
		if g == nil {
			skipped++
			continue
		}
		out = append(out, boundary.SourcePolygons(geoid, props, g)...)
	}

	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "tiger: read shapefile %s", shpPath)
	}

	if skipped > 0 {
		log.Debug("tiger: skipped non-polygon records", zap.Int("skipped", skipped))
	}
	log.Info("tiger: shapefile read",
		zap.Int("polygons", len(out)),
		zap.Int("filtered", filtered),
	)
	return out, nil
}
