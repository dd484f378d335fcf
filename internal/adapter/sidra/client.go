package sidra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dadoscon/municipal-etl/internal/domain"
	"github.com/dadoscon/municipal-etl/internal/observability"
)

// Census 2022 population by age group and sex, per municipality.
const (
	DefaultTable             = "9514"
	DefaultTerritorialLevel  = "6"
	DefaultVariable          = "93"
	DefaultTerritories       = "all"
	DefaultPeriod            = "last"
	DefaultAgeClassification = "287"
)

// DefaultClassifications restricts every query to sex = total.
var DefaultClassifications = map[string]string{"2": "6794"}

// Client implements domain.PopulationSource using the IBGE SIDRA values API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a SIDRA API client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// NewBandQuery returns the default census query for one age band.
func NewBandQuery(band domain.AgeBand) domain.BandQuery {
	return domain.BandQuery{
		Table:             DefaultTable,
		TerritorialLevel:  DefaultTerritorialLevel,
		Variable:          DefaultVariable,
		Territories:       DefaultTerritories,
		Period:            DefaultPeriod,
		Classifications:   DefaultClassifications,
		AgeClassification: DefaultAgeClassification,
		Band:              band,
	}
}

// FetchAgeBand returns one value per territory for the band's age categories.
// Rows for the same territory are returned separately; summing is left to the caller.
func (c *Client) FetchAgeBand(ctx context.Context, q domain.BandQuery) ([]domain.BandCount, error) {
	start := time.Now()
	counts, err := c.doRequest(ctx, c.baseURL+QueryPath(q))
	c.metrics.APIDuration.WithLabelValues(q.Band.Column).Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.APIRequests.WithLabelValues(q.Band.Column, "error").Inc()
		return nil, fmt.Errorf("fetch %s: %w", q.Band.Column, err)
	}
	c.metrics.APIRequests.WithLabelValues(q.Band.Column, "success").Inc()
	c.logger.Debug("sidra band fetched", "band", q.Band.Column, "rows", len(counts))
	return counts, nil
}

// QueryPath builds the path-style parameter list of a values request, e.g.
// /t/9514/n6/all/v/93/p/last/c2/6794/c287/93070,93084,93085.
func QueryPath(q domain.BandQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, "/t/%s/n%s/%s/v/%s/p/%s", q.Table, q.TerritorialLevel, q.Territories, q.Variable, q.Period)

	keys := make([]string, 0, len(q.Classifications))
	for k := range q.Classifications {
		if k != q.AgeClassification {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "/c%s/%s", k, q.Classifications[k])
	}
	if q.AgeClassification != "" && len(q.Band.Codes) > 0 {
		fmt.Fprintf(&b, "/c%s/%s", q.AgeClassification, strings.Join(q.Band.Codes, ","))
	}
	return b.String()
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.BandCount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sidra request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sidra API error: status %d: %s", resp.StatusCode, body)
	}

	var rows []row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// The first element repeats the column titles.
	counts := make([]domain.BandCount, 0, len(rows)-1)
	for _, r := range rows[1:] {
		counts = append(counts, domain.BandCount{
			Code:  r.TerritoryCode,
			Label: r.TerritoryName,
			Value: domain.ParseCount(r.Value),
		})
	}
	return counts, nil
}

// SIDRA values API row. Only the columns used downstream are decoded.
type row struct {
	TerritoryCode string `json:"D1C"`
	TerritoryName string `json:"D1N"`
	Value         string `json:"V"`
}
