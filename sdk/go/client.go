package sitegatesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Sitegate HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Snapshot represents an imported dataset.
type Snapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	ProjectID   string `json:"project_id"`
	Tasks       int    `json:"tasks"`
	SeriesDays  int    `json:"series_days"`
	Inspections int    `json:"inspections"`
	CreatedAt   string `json:"created_at"`
}

// Metrics is the project-level earned value reduction.
type Metrics struct {
	TotalBudget            float64 `json:"total_budget"`
	TotalTasks             int     `json:"total_tasks"`
	EarnedValueTraditional float64 `json:"earned_value_traditional"`
	EarnedValueQuality     float64 `json:"earned_value_quality_gated"`
	ActualCost             float64 `json:"actual_cost"`
	ReworkCost             float64 `json:"rework_cost"`
	SPITraditional         float64 `json:"spi_traditional"`
	SPIQuality             float64 `json:"spi_quality"`
	CPITraditional         float64 `json:"cpi_traditional"`
	CPIQuality             float64 `json:"cpi_quality"`
	ScheduleVariance       float64 `json:"schedule_variance"`
	CostVariance           float64 `json:"cost_variance"`
	FailureRate            float64 `json:"failure_rate"`
	FirstTimeRightRate     float64 `json:"first_time_right_rate"`
	EVOverstatement        float64 `json:"ev_overstatement"`
	AverageTaskValue       float64 `json:"average_task_value"`
}

// MetricsReport wraps the metrics with their snapshot context.
type MetricsReport struct {
	SnapshotID          string  `json:"snapshot_id"`
	ProjectDurationDays int     `json:"project_duration_days"`
	Metrics             Metrics `json:"metrics"`
}

// TemporalSummary aggregates derived response and rework figures.
type TemporalSummary struct {
	ResponseEvents             int     `json:"response_events"`
	ReworkCycles               int     `json:"rework_cycles"`
	UnresolvedFailures         int     `json:"unresolved_failures"`
	AvgResponseTimeHours       float64 `json:"avg_response_time_hours"`
	AvgResponseTimeDays        float64 `json:"avg_response_time_days"`
	AvgReworkTimeDays          float64 `json:"avg_rework_time_days"`
	TotalQualityDelayHours     float64 `json:"total_quality_delay_hours"`
	TotalQualityDelayDays      float64 `json:"total_quality_delay_days"`
	QualityDelayPctOfProject   float64 `json:"quality_delay_pct_of_project"`
	FirstTimeReworkSuccessRate float64 `json:"first_time_rework_success_rate"`
}

// Scenario is one improvement projection row.
type Scenario struct {
	Name          string  `json:"name"`
	ProjectedCost float64 `json:"projected_cost"`
	Savings       float64 `json:"savings"`
	SavingsPct    float64 `json:"savings_pct"`
	Description   string  `json:"description"`
	Effort        string  `json:"effort"`
}

// TimeSeriesPoint is one derived series row.
type TimeSeriesPoint struct {
	Date                   string   `json:"date"`
	PlannedValue           float64  `json:"planned_value"`
	EarnedValueTraditional float64  `json:"earned_value_traditional"`
	EarnedValueQuality     float64  `json:"earned_value_quality_gated"`
	ActualCost             float64  `json:"actual_cost"`
	ScheduleVariance       float64  `json:"schedule_variance"`
	CostVariance           float64  `json:"cost_variance"`
	SPITraditional         *float64 `json:"spi_traditional,omitempty"`
	SPIQuality             *float64 `json:"spi_quality,omitempty"`
	CPI                    *float64 `json:"cpi,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Snapshots lists imported snapshots.
func (c *Client) Snapshots(ctx context.Context) ([]Snapshot, error) {
	var resp []Snapshot
	err := c.do(ctx, http.MethodGet, "v0/snapshots", nil, &resp)
	return resp, err
}

// Snapshot fetches one snapshot by id.
func (c *Client) Snapshot(ctx context.Context, id string) (Snapshot, error) {
	var resp Snapshot
	err := c.do(ctx, http.MethodGet, c.snapshotPath(id, ""), nil, &resp)
	return resp, err
}

// Metrics fetches the project-level earned value metrics of a snapshot.
func (c *Client) Metrics(ctx context.Context, snapshotID string) (MetricsReport, error) {
	var resp MetricsReport
	err := c.do(ctx, http.MethodGet, c.snapshotPath(snapshotID, "metrics"), nil, &resp)
	return resp, err
}

// TemporalSummary fetches the temporal quality summary of a snapshot.
func (c *Client) TemporalSummary(ctx context.Context, snapshotID string) (TemporalSummary, error) {
	var resp struct {
		Summary TemporalSummary `json:"summary"`
	}
	err := c.do(ctx, http.MethodGet, c.snapshotPath(snapshotID, "temporal/summary"), nil, &resp)
	return resp.Summary, err
}

// Scenarios fetches the improvement projections of a snapshot.
func (c *Client) Scenarios(ctx context.Context, snapshotID string) ([]Scenario, error) {
	var resp []Scenario
	err := c.do(ctx, http.MethodGet, c.snapshotPath(snapshotID, "scenarios"), nil, &resp)
	return resp, err
}

// TimeSeries fetches the derived cumulative series of a snapshot.
func (c *Client) TimeSeries(ctx context.Context, snapshotID string) ([]TimeSeriesPoint, error) {
	var resp []TimeSeriesPoint
	err := c.do(ctx, http.MethodGet, c.snapshotPath(snapshotID, "timeseries"), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) snapshotPath(id, p string) string {
	endpoint := fmt.Sprintf("v0/snapshots/%s", url.PathEscape(id))
	if p != "" {
		endpoint += "/" + strings.TrimLeft(p, "/")
	}
	return endpoint
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
