package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sitegate/internal/app"
	"sitegate/internal/config"
	"sitegate/internal/db"
	"sitegate/internal/domain"
	"sitegate/internal/engine"
	"sitegate/internal/migrate"
	"sitegate/internal/repo"
	"sitegate/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sg",
	Short: "Sitegate CLI",
	Long: `Sitegate turns construction inspection logs into quality-gated earned
value analytics. Import a snapshot (task progress, cumulative series and
inspection events as CSV), then run reports against it:
- summary: project-level SPI/CPI, traditional vs quality-gated
- temporal: failure response times and rework cycles
- steps: per-ITP-step pass/fail performance and task rollups
- scenarios: cost projections for quality improvement scenarios
Snapshots are immutable after import; reports always compute fresh.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SITEGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("snapshot", "", "snapshot id (defaults to the only imported snapshot)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("snapshot", rootCmd.PersistentFlags().Lookup("snapshot"))
}

func registerCommands() {
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func snapshotCmd() *cobra.Command {
	snap := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage imported snapshots",
		Long:  "A snapshot is one imported project dataset: the task progress table, the cumulative time series and the inspection event log. Rows are never mutated after import; re-import to refresh.",
	}
	snap.AddCommand(snapshotImportCmd())
	snap.AddCommand(snapshotListCmd())
	snap.AddCommand(snapshotShowCmd())
	snap.AddCommand(snapshotDeleteCmd())
	return snap
}

func snapshotImportCmd() *cobra.Command {
	var opts engine.ImportOptions
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a snapshot from CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.ImportSnapshot(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "snapshot id (generated if empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "snapshot name")
	cmd.Flags().StringVar(&opts.TasksPath, "tasks", "", "task progress CSV")
	cmd.Flags().StringVar(&opts.SeriesPath, "series", "", "time series CSV")
	cmd.Flags().StringVar(&opts.InspectionsPath, "inspections", "", "inspection log CSV")
	_ = cmd.MarkFlagRequired("tasks")
	_ = cmd.MarkFlagRequired("series")
	_ = cmd.MarkFlagRequired("inspections")
	return cmd
}

func snapshotListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListSnapshots(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Tasks", "Series days", "Inspections", "Created"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Name, s.Tasks, s.SeriesDays, s.Inspections, s.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func snapshotShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := app.ResolveSnapshot(ctx, viper.GetString("snapshot"), e.Repo)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func snapshotDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a snapshot and its rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := app.ResolveSnapshot(ctx, viper.GetString("snapshot"), e.Repo)
				if err != nil {
					return err
				}
				return e.DeleteSnapshot(ctx, s.ID, viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{
		Use:   "report",
		Short: "Run reports against a snapshot",
		Long:  "Reports compute from the stored snapshot on every run. Traditional earned value credits work when offered; quality-gated earned value credits it only once it passed inspection, so the gap between the two is schedule optimism.",
	}
	rep.AddCommand(reportSummaryCmd())
	rep.AddCommand(reportTemporalCmd())
	rep.AddCommand(reportStepsCmd())
	rep.AddCommand(reportResponseCmd())
	rep.AddCommand(reportReworkCmd())
	rep.AddCommand(reportQualityCmd())
	rep.AddCommand(reportTimeSeriesCmd())
	rep.AddCommand(reportScenariosCmd())
	rep.AddCommand(reportTasksCmd())
	return rep
}

func reportSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Project-level earned value metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshot(cmd.Context(), func(ctx context.Context, e engine.Engine, s domain.Snapshot) error {
				m, err := e.ScalarMetrics(ctx, s.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(m)
				}
				fmt.Printf("Snapshot: %s (%d tasks)\n", s.ID, m.TotalTasks)
				fmt.Printf("Budget:            %12.2f\n", m.TotalBudget)
				fmt.Printf("EV (traditional):  %12.2f   SPI %0.4f  CPI %0.4f\n", m.EarnedValueTraditional, m.SPITraditional, m.CPITraditional)
				fmt.Printf("EV (quality):      %12.2f   SPI %0.4f  CPI %0.4f\n", m.EarnedValueQuality, m.SPIQuality, m.CPIQuality)
				fmt.Printf("Actual cost:       %12.2f   rework %0.2f\n", m.ActualCost, m.ReworkCost)
				fmt.Printf("Schedule variance: %12.2f   cost variance %0.2f\n", m.ScheduleVariance, m.CostVariance)
				fmt.Printf("EV overstatement:  %12.2f\n", m.EVOverstatement)
				fmt.Printf("Failure rate: %0.1f%%   first-time-right: %0.1f%%\n", m.FailureRate, m.FirstTimeRightRate)
				return nil
			})
		},
	}
	return cmd
}

func reportTemporalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "temporal",
		Short: "Temporal quality summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshot(cmd.Context(), func(ctx context.Context, e engine.Engine, s domain.Snapshot) error {
				sum, err := e.TemporalSummary(ctx, s.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				fmt.Printf("Response events: %d   rework cycles: %d   unresolved failures: %d\n",
					sum.ResponseEvents, sum.ReworkCycles, sum.UnresolvedFailures)
				fmt.Printf("Avg response: %0.1f h (%0.2f d)   avg rework: %0.2f d\n",
					sum.AvgResponseTimeHours, sum.AvgResponseTimeDays, sum.AvgReworkTimeDays)
				fmt.Printf("Total quality delay: %0.1f h (%0.2f d, %0.1f%% of project)\n",
					sum.TotalQualityDelayHours, sum.TotalQualityDelayDays, sum.QualityDelayPctOfProject)
				fmt.Printf("First-time rework success: %0.1f%%\n", sum.FirstTimeReworkSuccessRate)
				return nil
			})
		},
	}
	return cmd
}

func reportStepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Per-step performance and task rollups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshot(cmd.Context(), func(ctx context.Context, e engine.Engine, s domain.Snapshot) error {
				rep, err := e.Steps(ctx, s.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Step", "Inspections", "Pass", "Fail", "Pass %", "Fail %"})
				for _, p := range rep.Performance {
					tw.AppendRow(table.Row{p.StepID, p.TotalInspections, p.Passes, p.Failures, p.PassRate, p.FailureRate})
				}
				tw.Render()
				tw = table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Step", "Tasks", "PV", "EV (quality)", "AC", "Rework", "Failures"})
				for _, t := range rep.Tasks {
					tw.AppendRow(table.Row{t.StepID, t.Tasks, money(t.PlannedValue), money(t.EarnedValueQuality), money(t.ActualCost), money(t.ReworkCost), t.FailureCount})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func reportResponseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "response",
		Short: "Failure response times",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshot(cmd.Context(), func(ctx context.Context, e engine.Engine, s domain.Snapshot) error {
				items, err := e.ResponseTimes(ctx, s.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Component", "Step", "Failed at", "Response (h)", "Next status"})
				for _, rt := range items {
					tw.AppendRow(table.Row{rt.ComponentKey, rt.StepID, rt.FailureDate.Format(time.RFC3339), fmt.Sprintf("%0.1f", rt.ResponseTimeHours), rt.NextStatus})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func reportReworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rework",
		Short: "Failure-to-pass rework cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshot(cmd.Context(), func(ctx context.Context, e engine.Engine, s domain.Snapshot) error {
				items, err := e.ReworkCycles(ctx, s.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Component", "Step", "Failed at", "Resolved at", "Rework (d)", "Attempts"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ComponentKey, c.StepID, c.FailureDate.Format(time.RFC3339), c.ResolutionDate.Format(time.RFC3339), fmt.Sprintf("%0.2f", c.ReworkTimeDays), c.TotalAttempts})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func reportQualityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Inspection outcome breakdown and daily timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshot(cmd.Context(), func(ctx context.Context, e engine.Engine, s domain.Snapshot) error {
				rep, err := e.Quality(ctx, s.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				b := rep.Breakdown
				fmt.Printf("Inspections: %d   pass: %d   fail: %d   offered: %d   pass-of-offered: %0.1f%%\n",
					b.TotalInspections, b.Passes, b.Failures, b.Offered, b.PassOfOfferedRate)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Date", "Status", "Count"})
				for _, d := range rep.Daily {
					tw.AppendRow(table.Row{d.Date, d.Status, d.Count})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func reportTimeSeriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeseries",
		Short: "Cumulative series with variances and indices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshot(cmd.Context(), func(ctx context.Context, e engine.Engine, s domain.Snapshot) error {
				items, err := e.TimeSeriesDerived(ctx, s.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Date", "PV", "EV (trad)", "EV (quality)", "AC", "SV", "CV", "SPI(t)", "SPI(q)", "CPI"})
				for _, p := range items {
					tw.AppendRow(table.Row{
						p.Date.Format("2006-01-02"),
						money(p.PlannedValue), money(p.EarnedValueTraditional), money(p.EarnedValueQuality), money(p.ActualCost),
						money(p.ScheduleVariance), money(p.CostVariance),
						ratioCell(p.SPITraditional), ratioCell(p.SPIQuality), ratioCell(p.CPI),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func reportScenariosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Improvement scenario projections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshot(cmd.Context(), func(ctx context.Context, e engine.Engine, s domain.Snapshot) error {
				items, err := e.Scenarios(ctx, s.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Scenario", "Projected cost", "Savings", "Savings %", "Effort"})
				for _, sc := range items {
					tw.AppendRow(table.Row{sc.Name, money(sc.ProjectedCost), money(sc.Savings), fmt.Sprintf("%0.1f", sc.SavingsPct), sc.Effort})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func reportTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task progress rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshot(cmd.Context(), func(ctx context.Context, e engine.Engine, s domain.Snapshot) error {
				items, err := e.Tasks(ctx, s.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Component", "Step", "Status", "Failures", "Duration (d)", "PV", "EV (quality)", "AC"})
				for _, t := range items {
					dur := ""
					if d := t.DurationDays(); d != nil {
						dur = fmt.Sprintf("%d", *d)
					}
					tw.AppendRow(table.Row{t.ComponentKey, t.StepID, t.FinalStatus, t.FailureCount, dur, money(t.PlannedValue), money(t.EarnedValueQuality), money(t.ActualCost)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is sitegate.yml in the workspace: project id, total budget, planned duration and the scenario simulation reference values.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default sitegate.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(projectID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "default-project", "project id")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of workspace changes: snapshot imports and deletions, with row counts in the payload.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				authCfg := server.AuthConfig{JWTSecret: os.Getenv("SITEGATE_JWT_SECRET")}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				fmt.Printf("Serving Sitegate API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace, "default-project")
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func withSnapshot(ctx context.Context, fn func(context.Context, engine.Engine, domain.Snapshot) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		s, err := app.ResolveSnapshot(ctx, viper.GetString("snapshot"), e.Repo)
		if err != nil {
			return err
		}
		return fn(ctx, e, s)
	})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func money(v float64) string {
	return fmt.Sprintf("%0.2f", v)
}

func ratioCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%0.4f", *v)
}
