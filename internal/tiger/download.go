package tiger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/boundary-cli/internal/fetcher"
)

// BlockGroupURL returns the statewide block-group archive URL, e.g.
// https://www2.census.gov/geo/tiger/TIGER2024/BG/tl_2024_13_bg.zip.
func BlockGroupURL(baseURL string, year int, stateFIPS string) string {
	return fmt.Sprintf("%s/TIGER%d/BG/tl_%d_%s_bg.zip", strings.TrimRight(baseURL, "/"), year, year, stateFIPS)
}

// Downloader fetches TIGER/Line archives into a cache directory.
type Downloader struct {
	Fetcher fetcher.Fetcher
	Dir     string
}

// Download fetches a TIGER/Line ZIP file and extracts it. Returns the path
// to the extracted .shp file. Archives already on disk are not fetched
// again.
func (d *Downloader) Download(ctx context.Context, url string) (string, error) {
	log := zap.L().With(
		zap.String("component", "tiger.download"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create dest dir")
	}

	zipName := url[strings.LastIndex(url, "/")+1:]
	if zipName == "" {
		return "", eris.Errorf("tiger: no file name in url %q", url)
	}
	zipPath := filepath.Join(d.Dir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already exists, skipping download", zap.String("path", zipPath))
	} else {
		log.Info("downloading TIGER shapefile")
		n, err := d.Fetcher.DownloadToFile(ctx, url, zipPath)
		if err != nil {
			_ = os.Remove(zipPath)
			return "", eris.Wrap(err, "tiger: download shapefile")
		}
		log.Info("download complete", zap.Int64("bytes", n))
	}

	extractDir := filepath.Join(d.Dir, strings.TrimSuffix(zipName, ".zip"))
	files, err := fetcher.ExtractZIP(zipPath, extractDir)
	if err != nil {
		return "", eris.Wrap(err, "tiger: extract ZIP")
	}

	shpPath, err := fetcher.FindByExt(files, ".shp")
	if err != nil {
		return "", eris.Wrap(err, "tiger: find .shp file")
	}
	return shpPath, nil
}
