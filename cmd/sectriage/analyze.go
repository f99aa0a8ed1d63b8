package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/sectriage/internal/connector"
	"github.com/crimson-sun/sectriage/internal/pipeline"
)

// overrides are command-line values that win over config when set.
type overrides struct {
	connector string
	endpoint  string
	format    string
	verbosity string
	out       string
	csv       string
	rules     string
	workers   int
	top       int
	quiet     bool
}

func (o *overrides) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.connector, "connector", "", "connector: file, tail, splunk (default from config)")
	f.StringVar(&o.endpoint, "endpoint", "", "connector endpoint, e.g. a Splunk management URL")
	f.StringVar(&o.format, "format", "", "stdout finding format: json or text")
	f.StringVar(&o.verbosity, "verbosity", "", "raw record detail: minimal, standard, full")
	f.StringVar(&o.out, "out", "", "also append findings as NDJSON to this file")
	f.StringVar(&o.csv, "csv", "", "write findings to this CSV file")
	f.StringVar(&o.rules, "rules", "", "YAML file of extra scoring rules")
	f.IntVar(&o.workers, "workers", 0, "classification workers (default from config)")
	f.IntVar(&o.top, "top", 0, "number of event ids in the top-events summary")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "do not print findings to stdout")
}

// apply copies every flag the user actually set onto the loaded config.
func (o *overrides) apply(cmd *cobra.Command, a *app) error {
	cfg := a.cfg
	changed := cmd.Flags().Changed
	if changed("connector") {
		cfg.Connector.Provider = o.connector
	}
	if changed("endpoint") {
		cfg.Connector.Endpoint = o.endpoint
	}
	if changed("format") {
		cfg.Output.Format = o.format
	}
	if changed("verbosity") {
		cfg.Engine.Verbosity = o.verbosity
	}
	if changed("out") {
		cfg.Output.File.Path = o.out
	}
	if changed("csv") {
		cfg.Output.CSV = o.csv
	}
	if changed("rules") {
		cfg.Engine.RulesPath = o.rules
	}
	if changed("workers") {
		cfg.Engine.Workers = o.workers
	}
	if changed("top") {
		cfg.Report.TopN = o.top
	}
	if o.quiet {
		cfg.Output.Stdout = false
	}
	return cfg.Validate()
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		ov      overrides
		since   string
		until   string
		limit   int
		filter  string
		summary string
	)

	cmd := &cobra.Command{
		Use:   "analyze [file...]",
		Short: "Classify an exported event log and print a summary",
		Long: `Read Windows Security records, write every suspicious one to the
configured outputs, and print a summary report.

Files may be a JSON array of {"result": {...}} records, as Splunk exports
them, or NDJSON. With no file the configured connector is queried; the file
connector then reads stdin.

Examples:
  sectriage analyze security.json --csv suspicious_events.csv --quiet
  sectriage analyze --connector splunk --endpoint https://splunk:8089 --since 2016-08-24T00:00:00Z
  cat export.ndjson | sectriage analyze --format text`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ov.apply(cmd, a); err != nil {
				return err
			}
			params, err := queryParams(since, until, limit, filter)
			if err != nil {
				return err
			}

			cfg := a.cfg
			sources := []string{cfg.Connector.Endpoint}
			if len(args) > 0 {
				cfg.Connector.Provider = "file"
				sources = args
			} else if cfg.Connector.Provider == "file" && cfg.Connector.Endpoint == "" {
				sources = []string{"-"}
			}

			ctor, err := connector.Get(cfg.Connector.Provider)
			if err != nil {
				return err
			}
			eng, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			out, err := buildOutputs(cfg, eng, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			p := pipeline.New(ctor(), eng, out,
				pipeline.WithWorkers(cfg.Engine.Workers),
				pipeline.WithReportOptions(reportOptions(cfg)),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for _, src := range sources {
				cc := connector.ConnectorConfig{
					Provider: cfg.Connector.Provider,
					APIKey:   cfg.Connector.APIKey,
					Endpoint: src,
					Extra:    cfg.Connector.Extra,
				}
				if err := p.Query(ctx, cc, params); err != nil {
					_ = p.Close()
					return err
				}
			}
			if err := p.Close(); err != nil {
				return fmt.Errorf("close outputs: %w", err)
			}

			w := cmd.ErrOrStderr()
			if !cfg.Output.Stdout {
				w = cmd.OutOrStdout()
			}
			return writeSummary(w, summary, p.Report())
		},
	}

	ov.register(cmd)
	cmd.Flags().StringVar(&since, "since", "", "only records at or after this RFC 3339 time")
	cmd.Flags().StringVar(&until, "until", "", "only records before this RFC 3339 time")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many records (0 = no limit)")
	cmd.Flags().StringVar(&filter, "filter", "", "connector-specific filter, e.g. a Splunk search")
	cmd.Flags().StringVar(&summary, "summary", "text", "summary format: text, json or none")
	return cmd
}

func queryParams(since, until string, limit int, filter string) (connector.QueryParams, error) {
	params := connector.QueryParams{Limit: limit, Filter: filter}
	if since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return params, fmt.Errorf("invalid --since: %w", err)
		}
		params.Start = t
	}
	if until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return params, fmt.Errorf("invalid --until: %w", err)
		}
		params.End = t
	}
	if !params.Start.IsZero() && !params.End.IsZero() && !params.End.After(params.Start) {
		return params, fmt.Errorf("--until must be after --since")
	}
	return params, nil
}
