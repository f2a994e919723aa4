package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/boundary-cli/internal/boundary"
	"github.com/sells-group/boundary-cli/internal/fetcher"
	"github.com/sells-group/boundary-cli/internal/overpass"
	"github.com/sells-group/boundary-cli/internal/resilience"
	"github.com/sells-group/boundary-cli/internal/store"
	"github.com/sells-group/boundary-cli/internal/tigerweb"
)

// newFetcher builds the shared HTTP/FTP fetcher. The Overpass host gets the
// configured rate.
func newFetcher() *fetcher.Router {
	limiters := map[string]*rate.Limiter{}
	if u, err := url.Parse(cfg.Overpass.URL); err == nil && cfg.Overpass.RatePerSec > 0 {
		limiters[u.Host] = rate.NewLimiter(rate.Limit(cfg.Overpass.RatePerSec), 1)
	}
	return fetcher.NewRouter(fetcher.HTTPOptions{
		UserAgent:    cfg.Overpass.UserAgent,
		Timeout:      time.Duration(cfg.Overpass.TimeoutSecs+35) * time.Second,
		MaxRetries:   cfg.Overpass.MaxRetries,
		RateLimiters: limiters,
	}, fetcher.FTPOptions{})
}

func newOverpassClient(f fetcher.Fetcher) *overpass.Client {
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Overpass.MaxRetries
	return overpass.NewClient(cfg.Overpass.URL, f, retry)
}

func newTIGERwebClient(f fetcher.Fetcher) *tigerweb.Client {
	return tigerweb.NewClient(cfg.TIGERweb.BaseURL, tigerweb.Layers{
		BlockGroup: cfg.TIGERweb.BlockGroupLayer,
		Tract:      cfg.TIGERweb.TractLayer,
		State:      cfg.TIGERweb.StateLayer,
		County:     cfg.TIGERweb.CountyLayer,
	}, f)
}

// newAssembler applies the boundary config. An empty center keeps the
// configured mode.
func newAssembler(center string, diagnostic bool) (*boundary.Assembler, error) {
	if center == "" {
		center = cfg.Boundary.Center
	}
	mode, err := boundary.ParseCenterMode(center)
	if err != nil {
		return nil, err
	}
	return boundary.NewAssembler(boundary.Options{
		Center:     mode,
		Diagnostic: diagnostic,
		Provenance: cfg.Boundary.Provenance,
		Dissolver: boundary.Dissolver{
			Workers:       cfg.Boundary.Workers,
			ProgressEvery: cfg.Boundary.ProgressEvery,
		},
	}), nil
}

func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// saveResult writes res under slug and returns the stored record.
func saveResult(ctx context.Context, slug string, res *boundary.Result) (*store.Record, error) {
	if !store.ValidSlug(slug) {
		return nil, eris.Errorf("invalid slug %q", slug)
	}
	rec, err := store.FromResult(slug, res)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck

	if err := st.Migrate(ctx); err != nil {
		return nil, eris.Wrap(err, "migrate store")
	}
	if err := st.SaveBoundary(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func printResult(w io.Writer, rec *store.Record, rep boundary.Report) {
	fmt.Fprintf(w, "%s (%s)\n", rec.Name, rec.Slug)
	fmt.Fprintf(w, "  bounds: [[%g, %g], [%g, %g]]\n",
		rec.BBox.SW.Lon(), rec.BBox.SW.Lat(), rec.BBox.NE.Lon(), rec.BBox.NE.Lat())
	fmt.Fprintf(w, "  center: [%g, %g]\n", rec.Center.Lon(), rec.Center.Lat())
	fmt.Fprintf(w, "  merged: %d  skipped: %d  issues: %d  forced closures: %d\n",
		rep.Merged, len(rep.Skipped), len(rep.Issues), rep.ForcedClosures)
}
