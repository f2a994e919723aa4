// Package overpass queries the Overpass API for administrative boundary
// relations with resolved member geometry.
package overpass

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/boundary-cli/internal/boundary"
)

// DefaultTimeout is the server-side query timeout in seconds.
const DefaultTimeout = 25

// AreaQuery selects administrative boundary relations by name.
type AreaQuery struct {
	Name string
	// AdminLevel filters on admin_level when positive. 8 is a US city.
	AdminLevel int
	// Within restricts the search to a named state-level area (admin_level 4).
	Within string
	// BBox restricts the search to a box.
	BBox *boundary.BBox
	// Timeout in seconds; DefaultTimeout when zero.
	Timeout int
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}

// BuildQuery renders q as Overpass QL asking for full member geometry.
func BuildQuery(q AreaQuery) string {
	timeout := q.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n", timeout)
	if q.Within != "" {
		fmt.Fprintf(&b, "area[\"boundary\"=\"administrative\"][\"admin_level\"=\"4\"][\"name\"=%s]->.searchArea;\n", quote(q.Within))
	}
	b.WriteString("(\n  relation[\"boundary\"=\"administrative\"][\"name\"=")
	b.WriteString(quote(q.Name))
	b.WriteString("]")
	if q.AdminLevel > 0 {
		b.WriteString(`["admin_level"="` + strconv.Itoa(q.AdminLevel) + `"]`)
	}
	if q.Within != "" {
		b.WriteString("(area.searchArea)")
	}
	if q.BBox != nil {
		fmt.Fprintf(&b, "(%s,%s,%s,%s)",
			ftoa(q.BBox.SW.Lat()), ftoa(q.BBox.SW.Lon()),
			ftoa(q.BBox.NE.Lat()), ftoa(q.BBox.NE.Lon()))
	}
	b.WriteString(";\n);\nout geom;")
	return b.String()
}

// CensusTimeout is the default server-side timeout for census tract queries.
const CensusTimeout = 60

// CensusQuery selects boundary=census relations and ways inside a city area,
// a box, or both.
type CensusQuery struct {
	// City names the area to search; matched with AdminLevel.
	City string
	// AdminLevel of the city area; 8 when zero.
	AdminLevel int
	BBox       *boundary.BBox
	// Timeout in seconds; CensusTimeout when zero.
	Timeout int
}

// BuildCensusQuery renders q as Overpass QL asking for full geometry.
func BuildCensusQuery(q CensusQuery) string {
	timeout := q.Timeout
	if timeout <= 0 {
		timeout = CensusTimeout
	}
	level := q.AdminLevel
	if level <= 0 {
		level = 8
	}

	var filter string
	if q.City != "" {
		filter += "(area.city)"
	}
	if q.BBox != nil {
		filter += fmt.Sprintf("(%s,%s,%s,%s)",
			ftoa(q.BBox.SW.Lat()), ftoa(q.BBox.SW.Lon()),
			ftoa(q.BBox.NE.Lat()), ftoa(q.BBox.NE.Lon()))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n", timeout)
	if q.City != "" {
		fmt.Fprintf(&b, "area[\"name\"=%s][\"admin_level\"=\"%d\"]->.city;\n", quote(q.City), level)
	}
	b.WriteString("(\n")
	fmt.Fprintf(&b, "  relation[\"boundary\"=\"census\"]%s;\n", filter)
	fmt.Fprintf(&b, "  way[\"boundary\"=\"census\"]%s;\n", filter)
	b.WriteString(");\nout geom;")
	return b.String()
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
