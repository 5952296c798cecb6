package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"sitegate/internal/domain"
	"sitegate/internal/engine"
	"sitegate/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"snapshot not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the read API over imported
// snapshots. All report endpoints compute from stored inputs on each
// request, so handlers are safe to serve concurrently.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Sitegate API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerSnapshots(group, cfg.Engine)
	registerMetrics(group, cfg.Engine)
	registerTemporal(group, cfg.Engine)
	registerSteps(group, cfg.Engine)
	registerQuality(group, cfg.Engine)
	registerTimeSeries(group, cfg.Engine)
	registerScenarios(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "multiple snapshots"):
		return newAPIError(http.StatusConflict, "ambiguous_snapshot", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Sitegate API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type snapshotPath struct {
	SnapshotID string `path:"snapshot_id"`
}

func registerSnapshots(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-snapshots",
		Method:      http.MethodGet,
		Path:        "/snapshots",
		Summary:     "List snapshots",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Snapshot `json:"body"`
	}, error) {
		items, err := e.Repo.ListSnapshots(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Snapshot `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/snapshots/{snapshot_id}",
		Summary:     "Get snapshot",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *snapshotPath) (*struct {
		Body domain.Snapshot `json:"body"`
	}, error) {
		s, err := e.Repo.GetSnapshot(ctx, input.SnapshotID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Snapshot `json:"body"`
		}{Body: s}, nil
	})
}

func registerMetrics(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "snapshot-metrics",
		Method:      http.MethodGet,
		Path:        "/snapshots/{snapshot_id}/metrics",
		Summary:     "Project-level earned value metrics",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *snapshotPath) (*struct {
		Body MetricsResponse `json:"body"`
	}, error) {
		metrics, err := e.ScalarMetrics(ctx, input.SnapshotID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MetricsResponse `json:"body"`
		}{Body: MetricsResponse{
			SnapshotID:          input.SnapshotID,
			ProjectDurationDays: e.Config.Budget.DurationDays,
			Metrics:             metrics,
		}}, nil
	})
}

func registerTemporal(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "temporal-summary",
		Method:      http.MethodGet,
		Path:        "/snapshots/{snapshot_id}/temporal/summary",
		Summary:     "Temporal quality summary",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *snapshotPath) (*struct {
		Body TemporalSummaryResponse `json:"body"`
	}, error) {
		summary, err := e.TemporalSummary(ctx, input.SnapshotID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TemporalSummaryResponse `json:"body"`
		}{Body: TemporalSummaryResponse{SnapshotID: input.SnapshotID, Summary: summary}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "response-times",
		Method:      http.MethodGet,
		Path:        "/snapshots/{snapshot_id}/temporal/response-times",
		Summary:     "Failure response times",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *snapshotPath) (*struct {
		Body []domain.ResponseTimeEvent `json:"body"`
	}, error) {
		items, err := e.ResponseTimes(ctx, input.SnapshotID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ResponseTimeEvent `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rework-cycles",
		Method:      http.MethodGet,
		Path:        "/snapshots/{snapshot_id}/temporal/rework-cycles",
		Summary:     "Failure-to-pass rework cycles",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *snapshotPath) (*struct {
		Body []domain.ReworkCycle `json:"body"`
	}, error) {
		items, err := e.ReworkCycles(ctx, input.SnapshotID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ReworkCycle `json:"body"`
		}{Body: items}, nil
	})
}

func registerSteps(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "step-performance",
		Method:      http.MethodGet,
		Path:        "/snapshots/{snapshot_id}/steps",
		Summary:     "Per-step inspection performance and task rollups",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *snapshotPath) (*struct {
		Body StepsResponse `json:"body"`
	}, error) {
		rep, err := e.Steps(ctx, input.SnapshotID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StepsResponse `json:"body"`
		}{Body: stepsResponse(input.SnapshotID, rep)}, nil
	})
}

func registerQuality(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "quality-report",
		Method:      http.MethodGet,
		Path:        "/snapshots/{snapshot_id}/quality",
		Summary:     "Inspection outcome breakdown and daily timeline",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *snapshotPath) (*struct {
		Body QualityResponse `json:"body"`
	}, error) {
		rep, err := e.Quality(ctx, input.SnapshotID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body QualityResponse `json:"body"`
		}{Body: QualityResponse{SnapshotID: input.SnapshotID, Breakdown: rep.Breakdown, Daily: rep.Daily}}, nil
	})
}

func registerTimeSeries(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "time-series",
		Method:      http.MethodGet,
		Path:        "/snapshots/{snapshot_id}/timeseries",
		Summary:     "Cumulative series with variances and indices",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *snapshotPath) (*struct {
		Body []domain.TimeSeriesDerived `json:"body"`
	}, error) {
		items, err := e.TimeSeriesDerived(ctx, input.SnapshotID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TimeSeriesDerived `json:"body"`
		}{Body: items}, nil
	})
}

func registerScenarios(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "scenarios",
		Method:      http.MethodGet,
		Path:        "/snapshots/{snapshot_id}/scenarios",
		Summary:     "Improvement scenario projections",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *snapshotPath) (*struct {
		Body []domain.Scenario `json:"body"`
	}, error) {
		items, err := e.Scenarios(ctx, input.SnapshotID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Scenario `json:"body"`
		}{Body: items}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "snapshot-tasks",
		Method:      http.MethodGet,
		Path:        "/snapshots/{snapshot_id}/tasks",
		Summary:     "Task progress rows",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *snapshotPath) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		items, err := e.Tasks(ctx, input.SnapshotID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Latest audit log events",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"1" maximum:"500" default:"50"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		items, err := e.Repo.LatestEvents(ctx, limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}
