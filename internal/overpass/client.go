package overpass

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/boundary-cli/internal/boundary"
	"github.com/sells-group/boundary-cli/internal/fetcher"
	"github.com/sells-group/boundary-cli/internal/resilience"
)

// ErrNotFound is returned when a query matches no elements.
var ErrNotFound = eris.New("overpass: no matching elements")

// Client runs Overpass QL queries through a fetcher.
type Client struct {
	endpoint string
	fetcher  fetcher.Fetcher
	retry    resilience.RetryConfig
}

// NewClient returns a client for the interpreter endpoint, e.g.
// https://overpass-api.de/api/interpreter.
func NewClient(endpoint string, f fetcher.Fetcher, retry resilience.RetryConfig) *Client {
	return &Client{endpoint: endpoint, fetcher: f, retry: retry}
}

type response struct {
	Elements []boundary.Element `json:"elements"`
	// Remark carries server-side failures delivered with a 200 status.
	Remark string `json:"remark,omitempty"`
}

// remarks that indicate an overloaded server rather than a bad query.
var transientRemarks = []string{"runtime error", "timed out", "out of memory", "too many requests"}

// FetchElements runs q and returns the matched relations and ways.
func (c *Client) FetchElements(ctx context.Context, q AreaQuery) ([]boundary.Element, error) {
	log := zap.L().With(
		zap.String("component", "overpass.client"),
		zap.String("name", q.Name),
	)
	return c.fetch(ctx, log, "fetch_elements", BuildQuery(q))
}

// FetchCensus runs q and returns the census tract relations and ways.
func (c *Client) FetchCensus(ctx context.Context, q CensusQuery) ([]boundary.Element, error) {
	if q.City == "" && q.BBox == nil {
		return nil, eris.New("overpass: census query needs a city or a bbox")
	}
	log := zap.L().With(
		zap.String("component", "overpass.client"),
		zap.String("city", q.City),
	)
	return c.fetch(ctx, log, "fetch_census", BuildCensusQuery(q))
}

func (c *Client) fetch(ctx context.Context, log *zap.Logger, op, ql string) ([]boundary.Element, error) {
	log.Debug("overpass: query", zap.String("ql", ql))

	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("overpass", op)
	}
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*response, error) {
		return c.run(ctx, ql)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Elements) == 0 {
		return nil, ErrNotFound
	}

	log.Info("overpass: elements fetched", zap.Int("count", len(resp.Elements)))
	return resp.Elements, nil
}

func (c *Client) run(ctx context.Context, ql string) (*response, error) {
	u := c.endpoint + "?" + url.Values{"data": {ql}}.Encode()
	body, err := c.fetcher.Download(ctx, u)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: request")
	}
	defer body.Close() //nolint:errcheck

	var resp response
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, eris.Wrap(err, "overpass: decode response")
	}
	if resp.Remark != "" {
		remark := strings.ToLower(resp.Remark)
		for _, p := range transientRemarks {
			if strings.Contains(remark, p) {
				return nil, resilience.NewTransientError(eris.Errorf("overpass: server remark: %s", resp.Remark), 0)
			}
		}
		zap.L().Warn("overpass: server remark", zap.String("remark", resp.Remark))
	}
	return &resp, nil
}
