package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/boundary-cli/internal/boundary"
)

var boundsCmd = &cobra.Command{
	Use:   "bounds <file.json>",
	Short: "Print the bounding box and center of a GeoJSON file",
	Long: `Reads a GeoJSON Feature or FeatureCollection and prints its bounding box
as [[west, south], [east, north]] and a center. --write stores both in the
feature's properties.`,
	Args: cobra.ExactArgs(1),
	RunE: runBounds,
}

func init() {
	boundsCmd.Flags().Bool("centroid", false, "use the area-weighted centroid instead of the box midpoint")
	boundsCmd.Flags().Bool("write", false, "write bounds and center back into the feature properties")
	rootCmd.AddCommand(boundsCmd)
}

func runBounds(cmd *cobra.Command, args []string) error {
	path := args[0]
	useCentroid, _ := cmd.Flags().GetBool("centroid")
	write, _ := cmd.Flags().GetBool("write")

	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "bounds: read file")
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return eris.Wrap(err, "bounds: decode json")
	}

	box, err := boundary.BoundsOfNested(documentCoordinates(doc))
	if err != nil {
		return eris.Wrapf(err, "bounds: %s", path)
	}

	center := boundary.Midpoint(box)
	if useCentroid || write {
		if doc["type"] != "Feature" {
			return eris.Errorf("bounds: --centroid and --write need a Feature, got %v", doc["type"])
		}
	}
	if useCentroid {
		var f boundary.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		if center, err = boundary.AreaCentroid(f.Geometry); err != nil {
			return eris.Wrapf(err, "bounds: centroid of %s", path)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "bounds: [[%g, %g], [%g, %g]]\n", box.SW.Lon(), box.SW.Lat(), box.NE.Lon(), box.NE.Lat())
	fmt.Fprintf(out, "center: [%g, %g]\n", center.Lon(), center.Lat())

	if !write {
		return nil
	}
	props, _ := doc["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}
	props["bounds"] = box.Corners()
	props["center"] = [2]float64{center[0], center[1]}
	doc["properties"] = props

	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "bounds: encode json")
	}
	if err := os.WriteFile(path, append(buf, '\n'), 0o644); err != nil {
		return eris.Wrap(err, "bounds: write file")
	}
	zap.L().Info("bounds written", zap.String("path", path))
	return nil
}

// documentCoordinates collects the coordinate trees of a Feature,
// FeatureCollection or bare geometry.
func documentCoordinates(doc map[string]any) any {
	switch doc["type"] {
	case "Feature":
		g, _ := doc["geometry"].(map[string]any)
		return geometryCoordinates(g)
	case "FeatureCollection":
		features, _ := doc["features"].([]any)
		var all []any
		for _, f := range features {
			fm, _ := f.(map[string]any)
			g, _ := fm["geometry"].(map[string]any)
			if c := geometryCoordinates(g); c != nil {
				all = append(all, c)
			}
		}
		return all
	}
	return geometryCoordinates(doc)
}

func geometryCoordinates(g map[string]any) any {
	if g == nil {
		return nil
	}
	if gs, ok := g["geometries"].([]any); ok {
		var all []any
		for _, child := range gs {
			cm, _ := child.(map[string]any)
			if c := geometryCoordinates(cm); c != nil {
				all = append(all, c)
			}
		}
		return all
	}
	return g["coordinates"]
}
