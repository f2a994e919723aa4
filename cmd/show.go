package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/boundary-cli/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Print a stored boundary as GeoJSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().Bool("summary", false, "print only the summary fields")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	slug := args[0]
	summary, _ := cmd.Flags().GetBool("summary")

	if !store.ValidSlug(slug) {
		return eris.Errorf("invalid slug %q", slug)
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	rec, err := st.GetBoundary(ctx, slug)
	if err != nil {
		return err
	}
	if rec == nil {
		return eris.Errorf("boundary %q not found", slug)
	}

	out := cmd.OutOrStdout()
	if summary {
		buf, err := json.MarshalIndent(rec.Summary(), "", "  ")
		if err != nil {
			return eris.Wrap(err, "show: encode summary")
		}
		fmt.Fprintln(out, string(buf))
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, rec.Feature, "", "  "); err != nil {
		return eris.Wrap(err, "show: indent feature")
	}
	fmt.Fprintln(out, pretty.String())
	return nil
}
