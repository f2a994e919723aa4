package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/boundary-cli/internal/boundary"
	"github.com/sells-group/boundary-cli/internal/overpass"
	"github.com/sells-group/boundary-cli/internal/store"
	"github.com/sells-group/boundary-cli/internal/tigerweb"
)

var tractsCmd = &cobra.Command{
	Use:   "tracts <city> [state] | --source tigerweb <state> <county>",
	Short: "Write census tracts for a city or county as a FeatureCollection",
	Long: `Fetches census tract polygons and writes them as one GeoJSON
FeatureCollection under --out.

  --source osm       boundary=census relations and ways inside <city>
                     (admin_level --admin-level), or inside --bbox.
                     Written to {out}/{city-slug}.json.
  --source tigerweb  TIGERweb tracts of <state> <county>; state is a name or
                     FIPS code, county a three-digit FIPS code.
                     Written to {out}/{state}-{county}.json.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runTracts,
}

func init() {
	f := tractsCmd.Flags()
	f.String("source", "osm", "tract source: osm or tigerweb")
	f.Int("admin-level", 8, "admin_level of the city area (osm)")
	f.String("bbox", "", "search box minLon,minLat,maxLon,maxLat instead of the city area (osm)")
	f.String("out", "", "output directory (default from store.tracts_dir)")
	rootCmd.AddCommand(tractsCmd)
}

func runTracts(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, _ := cmd.Flags().GetString("source")
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = cfg.Store.TractsDir
	}

	var (
		fc   boundary.FeatureCollection
		name string
		err  error
	)
	switch source {
	case "osm":
		fc, name, err = osmTracts(ctx, cmd, args)
	case "tigerweb":
		fc, name, err = tigerwebTracts(ctx, args)
	default:
		return eris.Errorf("tracts: unknown source %q (want osm or tigerweb)", source)
	}
	if err != nil {
		return err
	}

	path, err := store.WriteCollection(out, name, fc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d census tracts written to %s\n", len(fc.Features), path)
	return nil
}

func osmTracts(ctx context.Context, cmd *cobra.Command, args []string) (boundary.FeatureCollection, string, error) {
	city := args[0]
	state := ""
	if len(args) > 1 {
		state = args[1]
	}
	adminLevel, _ := cmd.Flags().GetInt("admin-level")
	bboxFlag, _ := cmd.Flags().GetString("bbox")
	log := zap.L().With(zap.String("command", "tracts"), zap.String("city", city))

	q := overpass.CensusQuery{City: city, AdminLevel: adminLevel, Timeout: cfg.Overpass.TimeoutSecs}
	if bboxFlag != "" {
		box, err := parseBBox(bboxFlag)
		if err != nil {
			return boundary.FeatureCollection{}, "", err
		}
		q.City = ""
		q.BBox = &box
	}

	els, err := newOverpassClient(newFetcher()).FetchCensus(ctx, q)
	if err != nil {
		return boundary.FeatureCollection{}, "", eris.Wrapf(err, "tracts: fetch census tracts for %s", city)
	}
	features, issues := boundary.ElementFeatures(els)
	for _, is := range issues {
		log.Warn("element dropped", zap.Int("index", is.Index), zap.String("id", is.ID), zap.String("code", string(is.Code)), zap.String("msg", is.Msg))
	}
	if len(features) == 0 {
		return boundary.FeatureCollection{}, "", eris.Errorf("tracts: none of %d elements for %s has usable geometry", len(els), city)
	}
	log.Info("census tracts converted", zap.Int("elements", len(els)), zap.Int("features", len(features)))

	slug := store.Slugify(city)
	props := map[string]any{
		"city":        city,
		"slug":        slug,
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
		"source":      boundary.SourceOSMTracts,
		"count":       len(features),
	}
	if state != "" {
		props["state"] = state
	}
	return boundary.FeatureCollection{Features: features, Properties: props}, slug, nil
}

func tigerwebTracts(ctx context.Context, args []string) (boundary.FeatureCollection, string, error) {
	if len(args) != 2 {
		return boundary.FeatureCollection{}, "", eris.New("tracts: --source tigerweb needs <state> <county>")
	}
	state, ok := tigerweb.StateFIPS(args[0])
	if !ok {
		return boundary.FeatureCollection{}, "", eris.Errorf("tracts: unknown state %q", args[0])
	}
	county := strings.TrimSpace(args[1])
	if len(county) != 3 {
		return boundary.FeatureCollection{}, "", eris.Errorf("tracts: county must be a three-digit FIPS code, got %q", county)
	}

	raw, err := newTIGERwebClient(newFetcher()).TractFeatures(ctx, state, county)
	if err != nil {
		return boundary.FeatureCollection{}, "", eris.Wrapf(err, "tracts: fetch %s-%s", state, county)
	}
	if len(raw) == 0 {
		return boundary.FeatureCollection{}, "", eris.Errorf("tracts: no census tracts found for state %s, county %s", state, county)
	}

	features := boundary.TractFeatures(raw)
	props := map[string]any{
		"state":       state,
		"county":      county,
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
		"source":      boundary.SourceTIGERwebTracts,
		"count":       len(features),
	}
	return boundary.FeatureCollection{Features: features, Properties: props}, state + "-" + county, nil
}

// parseBBox reads "minLon,minLat,maxLon,maxLat".
func parseBBox(s string) (boundary.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return boundary.BBox{}, eris.Errorf("bbox %q: want minLon,minLat,maxLon,maxLat", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return boundary.BBox{}, eris.Wrapf(err, "bbox %q", s)
		}
		v[i] = f
	}
	box := boundary.BBox{SW: boundary.Coord{v[0], v[1]}, NE: boundary.Coord{v[2], v[3]}}
	if box.SW[0] > box.NE[0] || box.SW[1] > box.NE[1] || !box.SW.Valid() || !box.NE.Valid() {
		return boundary.BBox{}, eris.Errorf("bbox %q is not a valid box", s)
	}
	return box, nil
}
