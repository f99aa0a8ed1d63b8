package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/crimson-sun/sectriage/internal/config"
	"github.com/crimson-sun/sectriage/internal/engine"
	"github.com/crimson-sun/sectriage/internal/engine/catalog"
	"github.com/crimson-sun/sectriage/internal/engine/classifier"
	"github.com/crimson-sun/sectriage/internal/engine/rules"
	"github.com/crimson-sun/sectriage/internal/output"
	"github.com/crimson-sun/sectriage/internal/output/async"
	"github.com/crimson-sun/sectriage/internal/output/csv"
	"github.com/crimson-sun/sectriage/internal/output/file"
	"github.com/crimson-sun/sectriage/internal/output/multi"
	natsout "github.com/crimson-sun/sectriage/internal/output/nats"
	"github.com/crimson-sun/sectriage/internal/output/stdout"
	"github.com/crimson-sun/sectriage/internal/output/webhook"
	"github.com/crimson-sun/sectriage/internal/report"
)

// buildEngine wires the default catalog, built-in heuristics and any custom
// rules from cfg.Engine.RulesPath.
func buildEngine(cfg *config.Config) (*engine.Engine, error) {
	cat := catalog.Default()

	var extra []classifier.Heuristic
	if cfg.Engine.RulesPath != "" {
		rs, err := rules.LoadFile(cfg.Engine.RulesPath)
		if err != nil {
			return nil, err
		}
		extra = rules.Heuristics(rs)
		slog.Info("loaded custom rules", "path", cfg.Engine.RulesPath, "count", len(rs))
	}

	return engine.New(cat, classifier.New(cat, extra...)), nil
}

// buildOutputs opens every configured destination. Network outputs are put
// behind an async buffer so a slow receiver cannot stall classification.
func buildOutputs(cfg *config.Config, eng *engine.Engine, w io.Writer) (*multi.Multi, error) {
	verbosity := cfg.Verbosity()
	oc := cfg.Output

	var outs []output.Output
	fail := func(err error) (*multi.Multi, error) {
		for _, o := range outs {
			_ = o.Close()
		}
		return nil, err
	}

	if oc.Stdout {
		format, err := output.ParseFormat(oc.Format)
		if err != nil {
			return fail(err)
		}
		outs = append(outs, multi.Named("stdout", stdout.NewWriter(w, verbosity, format, oc.Pretty)))
	}

	if oc.File.Path != "" {
		opts := []file.Option{file.WithMaxBackups(oc.File.MaxBackups)}
		if oc.File.MaxSizeMB > 0 {
			opts = append(opts, file.WithMaxSize(oc.File.MaxSizeMB))
		}
		if oc.File.Compress {
			opts = append(opts, file.WithCompress())
		}
		fo, err := file.New(oc.File.Path, verbosity, opts...)
		if err != nil {
			return fail(err)
		}
		outs = append(outs, multi.Named("file", fo))
	}

	if oc.CSV != "" {
		co, err := csv.New(oc.CSV)
		if err != nil {
			return fail(err)
		}
		outs = append(outs, multi.Named("csv", co))
	}

	if oc.Webhook.URL != "" {
		opts := []webhook.Option{
			webhook.WithHeaders(oc.Webhook.Headers),
			webhook.WithMinScore(oc.Webhook.MinScore),
			webhook.WithTier(eng.Catalog().Tier),
		}
		if oc.Webhook.BatchSize > 0 {
			opts = append(opts, webhook.WithBatchSize(oc.Webhook.BatchSize))
		}
		if oc.Webhook.FlushInterval > 0 {
			opts = append(opts, webhook.WithFlushInterval(oc.Webhook.FlushInterval))
		}
		wh := async.New(webhook.New(oc.Webhook.URL, opts...), async.WithName("webhook"), async.WithDropOnFull())
		outs = append(outs, multi.Named("webhook", wh))
	}

	if oc.NATS.URL != "" {
		nc := natsout.DefaultConfig()
		nc.URL = oc.NATS.URL
		if oc.NATS.Subject != "" {
			nc.Subject = oc.NATS.Subject
		}
		nc.Token = oc.NATS.Token
		no, err := natsout.Connect(nc, eng.Catalog().Tier, verbosity)
		if err != nil {
			return fail(err)
		}
		outs = append(outs, multi.Named("nats", async.New(no, async.WithName("nats"))))
	}

	if len(outs) == 0 {
		return nil, fmt.Errorf("no outputs configured")
	}
	return multi.New(outs...), nil
}

func reportOptions(cfg *config.Config) report.Options {
	opts := report.DefaultOptions()
	opts.TopN = cfg.Report.TopN
	opts.HighRiskLimit = cfg.Report.HighRiskLimit
	if cfg.Report.BurstWindow > 0 {
		opts.BurstWindow = cfg.Report.BurstWindow
	}
	return opts
}

// writeSummary renders the run report in the requested format; "none"
// suppresses it.
func writeSummary(w io.Writer, format string, r report.Report) error {
	switch format {
	case "none", "":
		return nil
	case "json":
		return report.WriteJSON(w, r)
	case "text":
		return report.WriteText(w, r)
	default:
		return fmt.Errorf("unknown summary format %q (want text, json or none)", format)
	}
}
