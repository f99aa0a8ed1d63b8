package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/sectriage/internal/connector"
	"github.com/crimson-sun/sectriage/internal/pipeline"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		ov            overrides
		fromStart     bool
		poll          bool
		flushInterval time.Duration
		summary       string
	)

	cmd := &cobra.Command{
		Use:   "watch [file]",
		Short: "Follow a growing NDJSON log and stream findings",
		Long: `Follow a log file (tail connector) or poll a remote source and write
findings as records arrive. Runs until interrupted, then prints the summary
for everything seen.

Examples:
  sectriage watch /var/log/winevents.ndjson --format text
  sectriage watch --connector splunk --endpoint https://splunk:8089`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ov.apply(cmd, a); err != nil {
				return err
			}
			cfg := a.cfg
			if len(args) == 1 {
				cfg.Connector.Provider = "tail"
				cfg.Connector.Endpoint = args[0]
			}

			extra := make(map[string]string, len(cfg.Connector.Extra)+2)
			for k, v := range cfg.Connector.Extra {
				extra[k] = v
			}
			if cfg.Connector.Provider == "tail" {
				if !fromStart && extra["from"] == "" {
					extra["from"] = "end"
				}
				if poll {
					extra["poll"] = "true"
				}
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
				pipeline.WithReportOptions(reportOptions(cfg)),
				pipeline.WithFlushInterval(flushInterval),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := p.Stream(ctx, connector.ConnectorConfig{
				Provider: cfg.Connector.Provider,
				APIKey:   cfg.Connector.APIKey,
				Endpoint: cfg.Connector.Endpoint,
				Extra:    extra,
			})
			closeErr := p.Close()
			if !isCancel(runErr) {
				return runErr
			}
			if closeErr != nil {
				return closeErr
			}
			return writeSummary(cmd.ErrOrStderr(), summary, p.Report())
		},
	}

	ov.register(cmd)
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "process existing lines before following")
	cmd.Flags().BoolVar(&poll, "poll", false, "poll the file instead of using inotify")
	cmd.Flags().DurationVar(&flushInterval, "flush-interval", time.Second, "how often buffered outputs are flushed")
	cmd.Flags().StringVar(&summary, "summary", "text", "summary format on exit: text, json or none")
	return cmd
}

// isCancel reports whether err is the normal end of a signal-driven run.
func isCancel(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}
