// Package tigerweb queries the Census TIGERweb ArcGIS REST services for
// pre-tiled boundary polygons (block groups, tracts, counties, states).
package tigerweb

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/boundary-cli/internal/boundary"
	"github.com/sells-group/boundary-cli/internal/fetcher"
)

// DefaultPageSize is the resultRecordCount requested per page.
const DefaultPageSize = 1000

// Layers names the MapServer layer paths relative to the base URL.
type Layers struct {
	BlockGroup string
	Tract      string
	State      string
	County     string
}

// Client queries TIGERweb layers as GeoJSON.
type Client struct {
	baseURL  string
	layers   Layers
	fetcher  fetcher.Fetcher
	pageSize int
}

// NewClient returns a client for baseURL, e.g.
// https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb.
func NewClient(baseURL string, layers Layers, f fetcher.Fetcher) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		layers:   layers,
		fetcher:  f,
		pageSize: DefaultPageSize,
	}
}

// BlockGroups returns the block groups of a county.
func (c *Client) BlockGroups(ctx context.Context, stateFIPS, countyFIPS string) ([]boundary.SourcePolygon, error) {
	where := "STATE=" + sqlString(stateFIPS)
	if countyFIPS != "" {
		where += " AND COUNTY=" + sqlString(countyFIPS)
	}
	return c.Query(ctx, c.layers.BlockGroup, where)
}

// Tracts returns the tracts whose GEOID starts with prefix.
func (c *Client) Tracts(ctx context.Context, geoidPrefix string) ([]boundary.SourcePolygon, error) {
	return c.Query(ctx, c.layers.Tract, "GEOID LIKE "+sqlString(geoidPrefix+"%"))
}

// State returns the polygons of a state by name or FIPS code.
func (c *Client) State(ctx context.Context, name string) ([]boundary.SourcePolygon, error) {
	fips, ok := StateFIPS(name)
	if !ok {
		return nil, eris.Errorf("tigerweb: unknown state %q", name)
	}
	return c.Query(ctx, c.layers.State, "STATE="+sqlString(fips))
}

// County returns the polygons of counties in a state whose base name
// contains name.
func (c *Client) County(ctx context.Context, stateFIPS, name string) ([]boundary.SourcePolygon, error) {
	where := "GEOID LIKE " + sqlString(stateFIPS+"%") + " AND BASENAME LIKE " + sqlString("%"+name+"%")
	return c.Query(ctx, c.layers.County, where)
}

// envelope holds the non-feature members of an ArcGIS GeoJSON response.
type envelope struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	ExceededTransferLimit bool `json:"exceededTransferLimit"`
	Properties            struct {
		ExceededTransferLimit bool `json:"exceededTransferLimit"`
	} `json:"properties"`
}

// Query pages through a layer query and returns every polygon.
func (c *Client) Query(ctx context.Context, layer, where string) ([]boundary.SourcePolygon, error) {
	var out []boundary.SourcePolygon
	err := c.pages(ctx, layer, where, func(data []byte) (int, error) {
		polys, err := boundary.ReadFeatureCollection(bytes.NewReader(data), nil)
		if err != nil {
			return 0, eris.Wrap(err, "tigerweb: decode features")
		}
		out = append(out, polys...)
		return len(polys), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TractFeatures returns the tracts of a county as whole features, one per
// tract, with the service attributes as properties.
func (c *Client) TractFeatures(ctx context.Context, stateFIPS, countyFIPS string) ([]boundary.Feature, error) {
	where := "STATE=" + sqlString(stateFIPS)
	if countyFIPS != "" {
		where += " AND COUNTY=" + sqlString(countyFIPS)
	}
	var out []boundary.Feature
	err := c.pages(ctx, c.layers.Tract, where, func(data []byte) (int, error) {
		features, err := boundary.ReadFeatures(bytes.NewReader(data))
		if err != nil {
			return 0, eris.Wrap(err, "tigerweb: decode features")
		}
		out = append(out, features...)
		return len(features), nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// pages runs a layer query page by page, handing each response body to
// decode, which returns the number of items it took.
func (c *Client) pages(ctx context.Context, layer, where string, decode func([]byte) (int, error)) error {
	log := zap.L().With(
		zap.String("component", "tigerweb.client"),
		zap.String("layer", layer),
	)

	total := 0
	for offset := 0; ; offset += c.pageSize {
		data, more, err := c.page(ctx, layer, where, offset)
		if err != nil {
			return err
		}
		n, err := decode(data)
		if err != nil {
			return err
		}
		total += n
		log.Debug("tigerweb: page fetched",
			zap.Int("offset", offset),
			zap.Int("items", n),
			zap.Bool("more", more),
		)
		if !more || n == 0 {
			break
		}
	}

	log.Info("tigerweb: query complete", zap.String("where", where), zap.Int("items", total))
	return nil
}

func (c *Client) page(ctx context.Context, layer, where string, offset int) ([]byte, bool, error) {
	params := url.Values{
		"where":             {where},
		"outFields":         {"*"},
		"outSR":             {"4326"},
		"f":                 {"geojson"},
		"resultOffset":      {strconv.Itoa(offset)},
		"resultRecordCount": {strconv.Itoa(c.pageSize)},
	}
	u := c.baseURL + "/" + strings.Trim(layer, "/") + "/query?" + params.Encode()

	body, err := c.fetcher.Download(ctx, u)
	if err != nil {
		return nil, false, eris.Wrap(err, "tigerweb: request")
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, false, eris.Wrap(err, "tigerweb: read response")
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false, eris.Wrap(err, "tigerweb: decode response")
	}
	if env.Error != nil {
		return nil, false, eris.Errorf("tigerweb: service error %d: %s", env.Error.Code, env.Error.Message)
	}
	return data, env.ExceededTransferLimit || env.Properties.ExceededTransferLimit, nil
}

// sqlString quotes s as an ArcGIS where-clause literal.
func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
