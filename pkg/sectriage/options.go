package sectriage

type options struct {
	verbosity string
	rulesPath string
	rulesYAML []byte
	workers   int
	topN      int
	highRiskN int
}

// Option configures a Triage instance.
type Option func(*options)

// WithVerbosity trims the raw record of returned findings: "minimal" drops it,
// "standard" drops empty and "-" fields and shortens long values. The default,
// "full", returns an exact copy of the input record.
func WithVerbosity(v string) Option {
	return func(o *options) {
		o.verbosity = v
	}
}

// WithRulesFile loads extra scoring rules from a YAML file.
func WithRulesFile(path string) Option {
	return func(o *options) {
		o.rulesPath = path
	}
}

// WithRules adds extra scoring rules from an in-memory YAML document.
//
//	rules:
//	  - name: admin_failure
//	    when: EventID == 4625 && User == "admin"
//	    score: 2
func WithRules(yaml []byte) Option {
	return func(o *options) {
		o.rulesYAML = yaml
	}
}

// WithWorkers sets the parallelism of ClassifyBatch and Analyze. Default: 1.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithSummaryLimits sizes the top-events ranking and the high-risk sample in
// Summary. Defaults: 10 and 5.
func WithSummaryLimits(topN, highRisk int) Option {
	return func(o *options) {
		o.topN = topN
		o.highRiskN = highRisk
	}
}

func defaultOptions() options {
	return options{
		verbosity: "full",
		workers:   1,
		topN:      10,
		highRiskN: 5,
	}
}
