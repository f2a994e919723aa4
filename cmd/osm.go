package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/boundary-cli/internal/boundary"
	"github.com/sells-group/boundary-cli/internal/overpass"
	"github.com/sells-group/boundary-cli/internal/store"
)

var osmCmd = &cobra.Command{
	Use:   "osm <city> [state]",
	Short: "Build a city boundary from an OpenStreetMap relation",
	Long: `Queries Overpass for administrative relations named <city>, stitches their
outer ways into one ring, and stores the boundary. [state] restricts the
search to a state-level area.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runOSM,
}

func init() {
	osmCmd.Flags().Int("admin-level", 8, "OSM admin_level to match (0 matches any)")
	osmCmd.Flags().String("country", "US", "country recorded in the boundary attributes")
	osmCmd.Flags().String("slug", "", "store key (default: slugified city)")
	osmCmd.Flags().String("center", "", "center mode: midpoint or centroid (default from config)")
	osmCmd.Flags().Bool("diagnostic", false, "store the unstitched outer ways as a MultiLineString")
	rootCmd.AddCommand(osmCmd)
}

func runOSM(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	city := args[0]
	state := ""
	if len(args) > 1 {
		state = args[1]
	}
	adminLevel, _ := cmd.Flags().GetInt("admin-level")
	country, _ := cmd.Flags().GetString("country")
	slug, _ := cmd.Flags().GetString("slug")
	center, _ := cmd.Flags().GetString("center")
	diagnostic, _ := cmd.Flags().GetBool("diagnostic")
	if slug == "" {
		slug = store.Slugify(city)
	}

	log := zap.L().With(zap.String("command", "osm"), zap.String("city", city))

	asm, err := newAssembler(center, diagnostic)
	if err != nil {
		return err
	}

	els, err := newOverpassClient(newFetcher()).FetchElements(ctx, overpass.AreaQuery{
		Name:       city,
		AdminLevel: adminLevel,
		Within:     state,
		Timeout:    cfg.Overpass.TimeoutSecs,
	})
	if err != nil {
		return eris.Wrapf(err, "osm: fetch %s", city)
	}

	attrs := map[string]any{"country": country}
	if state != "" {
		attrs["state"] = state
	}
	res, err := asm.Assemble(boundary.Batch{
		Name:       city,
		AdminLevel: adminLevel,
		Elements:   els,
		Attributes: attrs,
	})
	if err != nil {
		return eris.Wrapf(err, "osm: assemble %s", city)
	}
	for _, is := range res.Report.Issues {
		log.Warn("element dropped", zap.Int("index", is.Index), zap.String("id", is.ID), zap.String("code", string(is.Code)), zap.String("msg", is.Msg))
	}

	rec, err := saveResult(ctx, slug, res)
	if err != nil {
		return err
	}
	log.Info("boundary stored", zap.String("slug", slug), zap.Int("elements", res.Report.Elements))
	printResult(cmd.OutOrStdout(), rec, res.Report)
	return nil
}
