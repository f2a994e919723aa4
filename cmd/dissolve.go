package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/boundary-cli/internal/boundary"
	"github.com/sells-group/boundary-cli/internal/store"
	"github.com/sells-group/boundary-cli/internal/tiger"
	"github.com/sells-group/boundary-cli/internal/tigerweb"
)

var dissolveCmd = &cobra.Command{
	Use:   "dissolve",
	Short: "Dissolve block groups or tracts into one boundary",
	Long: `Unions many small Census polygons into one outer boundary. Pick one source:
  --geojson FILE       a FeatureCollection such as tl_2024_13_bg.json
  --shapefile FILE     a TIGER/Line block-group shapefile
  --tiger-state STATE  download the statewide TIGER/Line block groups
  --tigerweb           block groups from TIGERweb for --geoid-prefix
  --tracts             tracts from TIGERweb for --geoid-prefix
  --county NAME        county polygons from TIGERweb (needs --state)
--geoid-prefix keeps polygons whose GEOID starts with it, e.g. 13121.`,
	RunE: runDissolve,
}

func init() {
	f := dissolveCmd.Flags()
	f.String("name", "", "boundary name (required)")
	f.String("slug", "", "store key (default: slugified name)")
	f.String("geoid-prefix", "", "keep polygons whose GEOID starts with this prefix")
	f.String("state", "", "state name or FIPS code")
	f.String("center", "", "center mode: midpoint or centroid (default from config)")
	f.Int("workers", 0, "parallel dissolve workers (default from config)")
	f.String("geojson", "", "GeoJSON FeatureCollection file")
	f.String("shapefile", "", "polygon shapefile")
	f.String("tiger-state", "", "download TIGER/Line block groups for this state")
	f.Bool("tigerweb", false, "query TIGERweb block groups")
	f.Bool("tracts", false, "query TIGERweb tracts")
	f.String("county", "", "query TIGERweb counties by name")
	_ = dissolveCmd.MarkFlagRequired("name")
	dissolveCmd.MarkFlagsMutuallyExclusive("geojson", "shapefile", "tiger-state", "tigerweb", "tracts", "county")
	dissolveCmd.MarkFlagsOneRequired("geojson", "shapefile", "tiger-state", "tigerweb", "tracts", "county")
	rootCmd.AddCommand(dissolveCmd)
}

func runDissolve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	name, _ := cmd.Flags().GetString("name")
	slug, _ := cmd.Flags().GetString("slug")
	prefix, _ := cmd.Flags().GetString("geoid-prefix")
	state, _ := cmd.Flags().GetString("state")
	center, _ := cmd.Flags().GetString("center")
	workers, _ := cmd.Flags().GetInt("workers")
	if slug == "" {
		slug = store.Slugify(name)
	}
	if workers > 0 {
		cfg.Boundary.Workers = workers
	}

	log := zap.L().With(zap.String("command", "dissolve"), zap.String("name", name))

	asm, err := newAssembler(center, false)
	if err != nil {
		return err
	}

	polys, source, err := loadPolygons(ctx, cmd, prefix, state)
	if err != nil {
		return err
	}
	log.Info("source polygons loaded", zap.String("source", source), zap.Int("polygons", len(polys)))

	attrs := map[string]any{"source": source}
	if state != "" {
		attrs["state"] = state
	}
	var ids []string
	if prefix != "" {
		ids = append(ids, "geoid:"+prefix)
	}
	res, err := asm.Assemble(boundary.Batch{
		Name:        name,
		Identifiers: ids,
		Polygons:    polys,
		Attributes:  attrs,
	})
	if err != nil {
		return eris.Wrapf(err, "dissolve: assemble %s", name)
	}
	for _, is := range res.Report.Skipped {
		log.Debug("polygon skipped", zap.Int("index", is.Index), zap.String("id", is.ID), zap.String("msg", is.Msg))
	}

	rec, err := saveResult(ctx, slug, res)
	if err != nil {
		return err
	}
	log.Info("boundary stored",
		zap.String("slug", slug),
		zap.Int("merged", res.Report.Merged),
		zap.Int("skipped", len(res.Report.Skipped)),
	)
	printResult(cmd.OutOrStdout(), rec, res.Report)
	return nil
}

// loadPolygons reads the source selected by flags and returns its polygons
// and a short description of where they came from.
func loadPolygons(ctx context.Context, cmd *cobra.Command, prefix, state string) ([]boundary.SourcePolygon, string, error) {
	flags := cmd.Flags()
	geojsonPath, _ := flags.GetString("geojson")
	shpPath, _ := flags.GetString("shapefile")
	tigerState, _ := flags.GetString("tiger-state")
	useTIGERweb, _ := flags.GetBool("tigerweb")
	useTracts, _ := flags.GetBool("tracts")
	county, _ := flags.GetString("county")

	switch {
	case geojsonPath != "":
		f, err := os.Open(geojsonPath)
		if err != nil {
			return nil, "", eris.Wrap(err, "dissolve: open geojson")
		}
		defer f.Close() //nolint:errcheck
		keep := func(props map[string]any) bool {
			return strings.HasPrefix(boundary.FeatureID(props, ""), prefix)
		}
		polys, err := boundary.ReadFeatureCollection(f, keep)
		return polys, geojsonPath, err

	case shpPath != "":
		polys, err := tiger.ReadPolygons(shpPath, tiger.Filter{GEOIDPrefix: prefix})
		return polys, shpPath, err

	case tigerState != "":
		fips, ok := tigerweb.StateFIPS(tigerState)
		if !ok {
			return nil, "", eris.Errorf("dissolve: unknown state %q", tigerState)
		}
		url := tiger.BlockGroupURL(cfg.TIGER.BaseURL, cfg.TIGER.Year, fips)
		dl := &tiger.Downloader{Fetcher: newFetcher(), Dir: cfg.TIGER.TempDir}
		path, err := dl.Download(ctx, url)
		if err != nil {
			return nil, "", err
		}
		polys, err := tiger.ReadPolygons(path, tiger.Filter{GEOIDPrefix: prefix})
		return polys, url, err

	case useTIGERweb, useTracts:
		if len(prefix) < 2 {
			return nil, "", eris.New("dissolve: --geoid-prefix with at least a state FIPS code is required for TIGERweb")
		}
		client := newTIGERwebClient(newFetcher())
		if useTracts {
			polys, err := client.Tracts(ctx, prefix)
			return polys, "tigerweb:tracts", err
		}
		countyFIPS := ""
		if len(prefix) >= 5 {
			countyFIPS = prefix[2:5]
		}
		polys, err := client.BlockGroups(ctx, prefix[:2], countyFIPS)
		if err != nil {
			return nil, "", err
		}
		return filterPrefix(polys, prefix), "tigerweb:block_groups", nil

	case county != "":
		fips, ok := tigerweb.StateFIPS(state)
		if !ok {
			return nil, "", eris.Errorf("dissolve: --county needs a known --state, got %q", state)
		}
		polys, err := newTIGERwebClient(newFetcher()).County(ctx, fips, county)
		return polys, "tigerweb:counties", err
	}
	return nil, "", eris.New("dissolve: no source selected")
}

func filterPrefix(polys []boundary.SourcePolygon, prefix string) []boundary.SourcePolygon {
	out := polys[:0]
	for _, p := range polys {
		if strings.HasPrefix(p.ID, prefix) {
			out = append(out, p)
		}
	}
	return out
}
